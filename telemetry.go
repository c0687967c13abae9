// telemetry.go - Lock-free last-value mirror of parameter state

package rack

import (
	"math"
	"sync/atomic"
)

// TelemetrySlot publishes the last raw and last effective value of one
// parameter. The real-time thread is the sole writer; any number of external
// threads may read without further synchronization. Semantics are strictly
// last-value-wins: readers must tolerate coalesced or missed intermediate
// values, and a read is never newer than the block that wrote it.
//
// The two cells are independently atomic; a reader may observe the raw value
// of block N alongside the effective value of block N+1. What it can never
// observe is a torn float.
type TelemetrySlot struct {
	raw       atomic.Uint64
	effective atomic.Uint64
}

// StoreRaw publishes the stored (pre-modulation) parameter value.
func (s *TelemetrySlot) StoreRaw(v float64) {
	s.raw.Store(math.Float64bits(v))
}

// StoreEffective publishes the post-modulation value actually used.
func (s *TelemetrySlot) StoreEffective(v float64) {
	s.effective.Store(math.Float64bits(v))
}

// Raw returns the last published raw value.
func (s *TelemetrySlot) Raw() float64 {
	return math.Float64frombits(s.raw.Load())
}

// Effective returns the last published effective value.
func (s *TelemetrySlot) Effective() float64 {
	return math.Float64frombits(s.effective.Load())
}
