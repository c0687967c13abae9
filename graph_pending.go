// graph_pending.go - Staged structural edits applied transactionally at commit

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

// endpoint addresses one flattened input channel of one module; the pending
// connection set is keyed by it, which makes the single-producer rule
// structural.
type endpoint struct {
	id LogicalID
	ch int
}

// pendingState is the mutable description structural edits act on. It is
// guarded by the engine's control mutex and shared with nothing on the
// real-time path; edits become observable only through CommitChanges.
type pendingState struct {
	modules map[LogicalID]string    // LogicalID → registered type name
	conns   map[endpoint]Connection // keyed by destination endpoint
}

func newPendingState() pendingState {
	return pendingState{
		modules: make(map[LogicalID]string),
		conns:   make(map[endpoint]Connection),
	}
}

// AddModule stages a new module of the registered type and returns its
// LogicalID. The module joins the published graph at the next commit.
func (e *Engine) AddModule(typeName string) (LogicalID, error) {
	if _, ok := LookupModuleType(typeName); !ok {
		return InvalidLogicalID, graphErr("addModule", ErrUnknownType, "%q", typeName)
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.nextID++
	id := e.nextID
	e.pending.modules[id] = typeName
	return id, nil
}

// RemoveModule stages removal of a module and of every pending connection
// touching it. Effective at the next commit; the instance itself is
// destroyed off the real-time thread once no snapshot can reach it.
func (e *Engine) RemoveModule(id LogicalID) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if _, ok := e.pending.modules[id]; !ok {
		return graphErr("removeModule", ErrUnknownModule, "id %d", id)
	}
	delete(e.pending.modules, id)
	for key, conn := range e.pending.conns {
		if conn.Src == id || conn.Dst == id {
			delete(e.pending.conns, key)
		}
	}
	return nil
}

// Connect stages a producer→consumer channel connection. It fails, leaving
// the pending state untouched, when either endpoint is unknown, a channel
// index is out of the declared range, the destination channel already has a
// producer, or the edge would make the connection set cyclic.
func (e *Engine) Connect(src LogicalID, srcCh int, dst LogicalID, dstCh int) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	srcType, ok := e.pending.modules[src]
	if !ok {
		return graphErr("connect", ErrUnknownModule, "source id %d", src)
	}
	dstType, ok := e.pending.modules[dst]
	if !ok {
		return graphErr("connect", ErrUnknownModule, "dest id %d", dst)
	}
	srcInfo, _ := LookupModuleType(srcType)
	dstInfo, _ := LookupModuleType(dstType)
	if srcCh < 0 || srcCh >= srcInfo.Buses.OutputChannels() {
		return graphErr("connect", ErrChannelRange, "source channel %d of %q", srcCh, srcType)
	}
	if dstCh < 0 || dstCh >= dstInfo.Buses.InputChannels() {
		return graphErr("connect", ErrChannelRange, "dest channel %d of %q", dstCh, dstType)
	}
	key := endpoint{dst, dstCh}
	if _, taken := e.pending.conns[key]; taken {
		return graphErr("connect", ErrChannelDriven, "dest %d channel %d", dst, dstCh)
	}
	if src == dst || e.reachesLocked(dst, src) {
		return graphErr("connect", ErrWouldCycle, "%d → %d", src, dst)
	}
	e.pending.conns[key] = Connection{Src: src, SrcChannel: srcCh, Dst: dst, DstChannel: dstCh}
	return nil
}

// Disconnect stages removal of one exact connection.
func (e *Engine) Disconnect(src LogicalID, srcCh int, dst LogicalID, dstCh int) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	key := endpoint{dst, dstCh}
	conn, ok := e.pending.conns[key]
	if !ok || conn.Src != src || conn.SrcChannel != srcCh {
		return graphErr("disconnect", ErrNotConnected, "%d:%d → %d:%d", src, srcCh, dst, dstCh)
	}
	delete(e.pending.conns, key)
	return nil
}

// ClearAll stages removal of every module and connection. The published
// graph keeps running until the next commit.
func (e *Engine) ClearAll() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.pending = newPendingState()
}

// reachesLocked reports whether to is reachable from from over the pending
// connection set. Caller holds the control mutex.
func (e *Engine) reachesLocked(from, to LogicalID) bool {
	if from == to {
		return true
	}
	seen := map[LogicalID]bool{from: true}
	stack := []LogicalID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, conn := range e.pending.conns {
			if conn.Src != cur || seen[conn.Dst] {
				continue
			}
			if conn.Dst == to {
				return true
			}
			seen[conn.Dst] = true
			stack = append(stack, conn.Dst)
		}
	}
	return false
}
