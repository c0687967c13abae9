// graph_types.go - Identifiers, connections and structural errors for the rack graph

package rack

import (
	"errors"
	"fmt"
)

// LogicalID is the stable, process-lifetime-unique identity of a module.
// It is assigned at AddModule, survives every graph rebuild, and is the only
// identifier external callers (editors, patch loaders, generators) may hold
// or persist. A LogicalID is never reused while the module it names exists.
type LogicalID uint32

// InvalidLogicalID is the zero LogicalID; no module ever carries it.
const InvalidLogicalID LogicalID = 0

// nodeID is the volatile per-snapshot identity of a module: its index in the
// snapshot's topological order. It is meaningful only within one snapshot
// generation and is never exposed across a commit boundary.
type nodeID int32

// Connection routes one producer channel into one consumer channel.
// Channel indices address the flattened channel space across a module's
// declared buses. Invariants enforced by the engine: both endpoints exist in
// the same snapshot generation, no destination channel has two producers,
// and the full connection set is acyclic.
type Connection struct {
	Src        LogicalID // Producer module
	SrcChannel int       // Flattened output channel on Src
	Dst        LogicalID // Consumer module
	DstChannel int       // Flattened input channel on Dst
}

// Structural errors. All are rejected synchronously at the offending call,
// leaving engine state exactly as it was; none of them ever crosses into the
// real-time path.
var (
	ErrUnknownType   = errors.New("unknown module type")
	ErrUnknownModule = errors.New("unknown module id")
	ErrChannelRange  = errors.New("channel out of range")
	ErrWouldCycle    = errors.New("connection would create a cycle")
	ErrChannelDriven = errors.New("channel already driven")
	ErrNotConnected  = errors.New("no such connection")
)

// GraphError provides detailed error context for graph mutations
type GraphError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying sentinel, if any
}

func (e *GraphError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("graph %s failed: %s", e.Operation, e.Details)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func graphErr(op string, err error, format string, args ...any) error {
	return &GraphError{Operation: op, Details: fmt.Sprintf(format, args...), Err: err}
}
