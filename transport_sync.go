// transport_sync.go - Transport context broadcast and tempo sync state machine

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

// TransportContext describes playback position and tempo for one processing
// block. It is a plain value, copied into every module instance before the
// block runs; every module in a block observes an identical context. No
// module reads shared mutable transport state.
type TransportContext struct {
	Playing           bool
	SongPositionBeats float64 // Quarter-note beats since transport start
	BPM               float64
	// GlobalDivisionIndex overrides every SyncLocked runner's local division
	// selection when non-negative; -1 means no process-wide override.
	GlobalDivisionIndex int
	// ForceGlobalReset is a one-block pulse forcing every runner back to
	// origin regardless of playing state. Loop-point masters use it to
	// re-synchronize all dependents.
	ForceGlobalReset bool
}

// SyncMode is the per-module transport synchronization state.
type SyncMode int32

const (
	// SyncStopped holds position at origin and advances nothing.
	SyncStopped SyncMode = iota
	// SyncFreeRun advances a local phase accumulator each sample at the
	// runner's own rate, ignoring the song position.
	SyncFreeRun
	// SyncLocked derives position from the song position and the selected
	// beat division, wrapped modulo the runner's cycle length.
	SyncLocked
)

// BeatDivisions is the fixed ordered division table, in quarter-note beats
// per division step, from a 1/32 note up to 8 bars of 4/4. Out-of-range
// indices clamp to the nearest valid entry.
var BeatDivisions = [...]float64{
	0.125,     // 1/32
	0.25,      // 1/16
	1.0 / 3.0, // 1/8 triplet
	0.5,       // 1/8
	0.75,      // dotted 1/8
	1,         // 1/4
	1.5,       // dotted 1/4
	2,         // 1/2
	4,         // 1 bar
	8,         // 2 bars
	16,        // 4 bars
	32,        // 8 bars
}

// BeatDivisionNames labels BeatDivisions entry for entry.
var BeatDivisionNames = [...]string{
	"1/32", "1/16", "1/8T", "1/8", "1/8.", "1/4", "1/4.", "1/2",
	"1 bar", "2 bars", "4 bars", "8 bars",
}

// ClampDivisionIndex clamps an index into the division table.
func ClampDivisionIndex(idx int) int {
	if idx < 0 {
		return 0
	}
	if idx >= len(BeatDivisions) {
		return len(BeatDivisions) - 1
	}
	return idx
}

// SyncRunner is the transport state machine embedded by every tempo-aware
// module. Position is expressed in division steps and wraps modulo
// CycleLength. All methods run on the real-time thread; configuration
// setters must be applied through module parameters or before the runner is
// first advanced.
type SyncRunner struct {
	Mode          SyncMode
	RateHz        float64 // FreeRun advance rate, cycles per second
	DivisionIndex int     // Local division selection for SyncLocked
	CycleLength   float64 // Steps per cycle; position wraps modulo this

	position   float64
	wasPlaying bool
}

// Position returns the runner's current position in [0, CycleLength).
func (s *SyncRunner) Position() float64 { return s.position }

// StepIndex returns the integer step the runner is on.
func (s *SyncRunner) StepIndex() int { return int(s.position) }

// Reset returns the runner to origin.
func (s *SyncRunner) Reset() { s.position = 0 }

// Advance moves the runner across one block of n frames. The false→true
// edge of tc.Playing resets position to origin exactly once; a
// ForceGlobalReset pulse resets immediately regardless of playing state.
func (s *SyncRunner) Advance(tc TransportContext, sampleRate float64, n int) {
	if tc.ForceGlobalReset {
		s.position = 0
	}
	if tc.Playing && !s.wasPlaying {
		// Reset-on-start, never hold-over.
		s.position = 0
	}
	s.wasPlaying = tc.Playing

	cycle := s.CycleLength
	if cycle <= 0 {
		cycle = 1
	}

	switch s.Mode {
	case SyncStopped:
		return
	case SyncFreeRun:
		s.position += s.RateHz * cycle * float64(n) / sampleRate
		for s.position >= cycle {
			s.position -= cycle
		}
	case SyncLocked:
		if !tc.Playing {
			return
		}
		idx := s.DivisionIndex
		if tc.GlobalDivisionIndex >= 0 {
			idx = tc.GlobalDivisionIndex
		}
		div := BeatDivisions[ClampDivisionIndex(idx)]
		steps := tc.SongPositionBeats / div
		s.position = steps - float64(int(steps/cycle))*cycle
	}
}
