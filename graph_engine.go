// graph_engine.go - Graph engine: validation, commit, atomic publish, deferred reclaim

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

const (
	SAMPLE_RATE    = 44100 // Default engine sample rate
	MAX_BLOCK_SIZE = 1024  // Default maximum frames per processing block
	DEFAULT_BPM    = 120.0
)

// Engine owns the pending edit state, builds and validates snapshots, and
// atomically republishes the processing topology. Structural mutations and
// CommitChanges run on control threads under one mutex; the real-time thread
// touches only the published snapshot pointer, the transport atomics and the
// block epoch, and is never blocked by a concurrent commit.
type Engine struct {
	sampleRate float64
	maxBlock   int

	// Control-side state, guarded by mutex. Never touched on the RT path.
	mutex      sync.Mutex
	pending    pendingState
	nextID     LogicalID
	live       map[LogicalID]*moduleInstance
	generation uint64
	retired    []retiredSet

	published atomic.Pointer[Snapshot]

	// epoch counts completed blocks. A retired snapshot observed at epoch E
	// is reclaimable once the counter reaches E+2: by then at least one full
	// block has both started and finished after the supersede, so the RT
	// thread holds the new pointer.
	epoch atomic.Uint64

	// Transport controls, set by control threads, consumed once per block.
	playing     atomic.Bool
	bpmBits     atomic.Uint64
	globalDiv   atomic.Int32
	resetPulse  atomic.Bool
	seekPending atomic.Bool
	seekBits    atomic.Uint64

	// RT-thread-owned transport accumulator.
	songPos      float64
	rtWasPlaying bool

	output AudioOutput
}

// retiredSet holds everything a superseded commit left behind, pinned until
// the epoch proves the real-time thread has moved past it.
type retiredSet struct {
	epoch     uint64
	snapshot  *Snapshot
	instances []*moduleInstance
}

// NewEngine creates an engine with an empty published snapshot, so the
// real-time loop can run before the first commit.
func NewEngine(sampleRate float64, maxBlock int) *Engine {
	if sampleRate <= 0 {
		sampleRate = SAMPLE_RATE
	}
	if maxBlock <= 0 {
		maxBlock = MAX_BLOCK_SIZE
	}
	e := &Engine{
		sampleRate: sampleRate,
		maxBlock:   maxBlock,
		pending:    newPendingState(),
		live:       make(map[LogicalID]*moduleInstance),
	}
	e.bpmBits.Store(math.Float64bits(DEFAULT_BPM))
	e.globalDiv.Store(-1)
	e.published.Store(&Snapshot{byLogical: map[LogicalID]nodeID{}})
	return e
}

// SampleRate returns the engine's sample rate.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// MaxBlockSize returns the largest block RenderBlock will process at once.
func (e *Engine) MaxBlockSize() int { return e.maxBlock }

// Snapshot returns the currently published snapshot. The pointer is loaded
// atomically; the snapshot behind it never changes.
func (e *Engine) Snapshot() *Snapshot {
	return e.published.Load()
}

// CommitChanges validates the pending description and publishes it as a new
// snapshot with a single atomic pointer swap. On any validation failure the
// commit is rejected whole: the published snapshot, the live instances and
// the pending state are all left exactly as they were. Instances whose
// LogicalID and type survive are adopted unchanged, preserving their DSP
// state across the topology change; removed or retyped instances are parked
// for deferred release off the real-time thread.
func (e *Engine) CommitChanges() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	order, err := e.topoSortLocked()
	if err != nil {
		return err
	}

	// Adopt or create instances. Creation (and Prepare) happens here on the
	// control thread; nothing is published until every instance is ready.
	newLive := make(map[LogicalID]*moduleInstance, len(order))
	var created []*moduleInstance
	for _, id := range order {
		typeName := e.pending.modules[id]
		if inst := e.live[id]; inst != nil && inst.typeName == typeName {
			newLive[id] = inst
			continue
		}
		info, ok := LookupModuleType(typeName)
		if !ok {
			abortCreated(created)
			return graphErr("commit", ErrUnknownType, "%q", typeName)
		}
		inst, err := e.buildInstance(id, typeName, info)
		if err != nil {
			abortCreated(created)
			return err
		}
		newLive[id] = inst
		created = append(created, inst)
	}

	snap := e.buildSnapshotLocked(order, newLive)

	// Retire instances the new snapshot no longer reaches. A retyped
	// LogicalID retires its old instance the same way.
	var dropped []*moduleInstance
	for id, inst := range e.live {
		if newLive[id] != inst {
			dropped = append(dropped, inst)
		}
	}

	old := e.published.Swap(snap)
	e.live = newLive
	e.retired = append(e.retired, retiredSet{
		epoch:     e.epoch.Load(),
		snapshot:  old,
		instances: dropped,
	})
	e.reclaimLocked(false)
	return nil
}

// Reclaim releases whatever retired state the block epoch has proven
// unreachable. CommitChanges calls it automatically; hosts may call it
// periodically to bound how long retired instances linger between commits.
func (e *Engine) Reclaim() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.reclaimLocked(false)
}

// Close releases every instance, live and retired. The caller must have
// stopped the real-time consumer first; after Close the engine must not
// render.
func (e *Engine) Close() {
	if e.output != nil {
		e.output.Close()
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.reclaimLocked(true)
	for _, inst := range e.live {
		inst.mod.Release()
	}
	e.live = make(map[LogicalID]*moduleInstance)
	e.published.Store(&Snapshot{generation: e.generation, byLogical: map[LogicalID]nodeID{}})
	e.pending = newPendingState()
}

func (e *Engine) buildInstance(id LogicalID, typeName string, info ModuleTypeInfo) (*moduleInstance, error) {
	mod := info.New()
	if err := mod.Prepare(e.sampleRate, e.maxBlock); err != nil {
		return nil, graphErr("commit", err, "prepare %q (id %d)", typeName, id)
	}
	inst := &moduleInstance{
		id:       id,
		typeName: typeName,
		info:     info,
		mod:      mod,
		in:       makeChannelBufs(info.Buses.InputChannels(), e.maxBlock),
		out:      makeChannelBufs(info.Buses.OutputChannels(), e.maxBlock),
	}
	return inst, nil
}

func (e *Engine) buildSnapshotLocked(order []LogicalID, live map[LogicalID]*moduleInstance) *Snapshot {
	e.generation++
	snap := &Snapshot{
		generation: e.generation,
		nodes:      make([]snapNode, len(order)),
		byLogical:  make(map[LogicalID]nodeID, len(order)),
	}
	for i, id := range order {
		inst := live[id]
		nIn := inst.info.Buses.InputChannels()
		node := snapNode{
			inst:   inst,
			feeds:  make([]inputFeed, nIn),
			driven: make([]bool, nIn),
		}
		for ch := range node.feeds {
			node.feeds[ch].srcNode = -1
		}
		snap.nodes[i] = node
		snap.byLogical[id] = nodeID(i)
		if inst.info.Terminal {
			snap.terminals = append(snap.terminals, nodeID(i))
		}
	}
	for _, conn := range e.pending.conns {
		snap.conns = append(snap.conns, conn)
		dst := snap.byLogical[conn.Dst]
		snap.nodes[dst].feeds[conn.DstChannel] = inputFeed{
			srcNode: snap.byLogical[conn.Src],
			srcCh:   int32(conn.SrcChannel),
		}
		snap.nodes[dst].driven[conn.DstChannel] = true
	}
	sort.Slice(snap.conns, func(i, j int) bool {
		a, b := snap.conns[i], snap.conns[j]
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		return a.DstChannel < b.DstChannel
	})
	return snap
}

// topoSortLocked orders the pending modules so every producer precedes its
// consumers. Kahn's algorithm over the pending connection set, with ready
// nodes taken in ascending LogicalID order so repeated commits of the same
// description produce the same order. A remaining edge after the sort means
// a cycle; the commit is rejected without touching published state.
func (e *Engine) topoSortLocked() ([]LogicalID, error) {
	ids := make([]LogicalID, 0, len(e.pending.modules))
	for id := range e.pending.modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	indegree := make(map[LogicalID]int, len(ids))
	for _, conn := range e.pending.conns {
		indegree[conn.Dst]++
	}

	ready := make([]LogicalID, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]LogicalID, 0, len(ids))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		// Edges out of cur, in deterministic destination order.
		next := make([]LogicalID, 0, 4)
		for _, conn := range e.pending.conns {
			if conn.Src != cur {
				continue
			}
			indegree[conn.Dst]--
			if indegree[conn.Dst] == 0 {
				next = append(next, conn.Dst)
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		ready = append(ready, next...)
	}
	if len(order) != len(ids) {
		return nil, graphErr("commit", ErrWouldCycle, "connection set is cyclic")
	}
	return order, nil
}

func (e *Engine) reclaimLocked(force bool) {
	cur := e.epoch.Load()
	kept := e.retired[:0]
	for _, set := range e.retired {
		if !force && cur < set.epoch+2 {
			kept = append(kept, set)
			continue
		}
		for _, inst := range set.instances {
			inst.mod.Release()
		}
	}
	e.retired = kept
}

func abortCreated(created []*moduleInstance) {
	for _, inst := range created {
		inst.mod.Release()
	}
}

func makeChannelBufs(channels, frames int) [][]float32 {
	bufs := make([][]float32, channels)
	for i := range bufs {
		bufs[i] = make([]float32, frames)
	}
	return bufs
}
