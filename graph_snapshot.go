// graph_snapshot.go - Immutable, topologically ordered published graph state

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

// moduleInstance pairs a live Module with its engine-side identity and its
// pre-allocated channel buffers. Instances are created and released on the
// control thread; between a commit that introduces one and the deferred
// reclaim that follows its retirement, the real-time thread has exclusive
// use of the buffers. An instance whose LogicalID survives a commit with an
// unchanged type name is adopted into the new snapshot as-is, so internal
// DSP state carries across topology changes.
type moduleInstance struct {
	id       LogicalID
	typeName string
	info     ModuleTypeInfo
	mod      Module
	in       [][]float32 // Flattened input channels, maxBlock frames each
	out      [][]float32 // Flattened output channels, maxBlock frames each
}

// inputFeed names the producer of one consumer channel. srcNode < 0 marks
// the channel undriven; the routing pass keeps undriven channels silent.
type inputFeed struct {
	srcNode nodeID
	srcCh   int32
}

// snapNode is one entry of a snapshot's topological order.
type snapNode struct {
	inst   *moduleInstance
	feeds  []inputFeed // Indexed by flattened input channel
	driven []bool      // Indexed by flattened input channel
}

// Snapshot is the unit of publication: an immutable, topologically ordered
// set of module instances plus their connection set. It is built complete on
// the control thread, published with one atomic pointer store and never
// mutated afterwards; superseded snapshots are reclaimed only after the
// real-time thread can no longer be referencing them.
type Snapshot struct {
	generation uint64
	nodes      []snapNode
	conns      []Connection
	byLogical  map[LogicalID]nodeID
	terminals  []nodeID
}

// Generation returns the snapshot's commit generation, starting at 0 for
// the empty snapshot an engine is born with.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Modules returns the LogicalIDs in the snapshot's topological order.
func (s *Snapshot) Modules() []LogicalID {
	ids := make([]LogicalID, len(s.nodes))
	for i := range s.nodes {
		ids[i] = s.nodes[i].inst.id
	}
	return ids
}

// Connections returns a copy of the snapshot's connection set.
func (s *Snapshot) Connections() []Connection {
	return append([]Connection(nil), s.conns...)
}

// ModuleType reports the type name of a module in this snapshot.
func (s *Snapshot) ModuleType(id LogicalID) (string, bool) {
	n, ok := s.byLogical[id]
	if !ok {
		return "", false
	}
	return s.nodes[n].inst.typeName, true
}

// IsInputConnected reports whether the (bus, channel) input of the named
// module has a producer in this snapshot. This is the query modulation
// routing resolves against.
func (s *Snapshot) IsInputConnected(id LogicalID, bus, channel int) bool {
	n, ok := s.byLogical[id]
	if !ok {
		return false
	}
	node := &s.nodes[n]
	flat := node.inst.info.Buses.FlatInput(bus, channel)
	if flat < 0 || flat >= len(node.driven) {
		return false
	}
	return node.driven[flat]
}

// module returns the instance for a LogicalID, or nil.
func (s *Snapshot) module(id LogicalID) *moduleInstance {
	n, ok := s.byLogical[id]
	if !ok {
		return nil
	}
	return s.nodes[n].inst
}
