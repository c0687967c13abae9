// graph_retention_test.go - Instance adoption and deferred reclaim tests

package rack

import (
	"testing"
)

// TestCommit_PreservesInstanceState: a module that survives a commit keeps
// its DSP state. An oscillator rendered across a topology change must stay
// phase-continuous with an identical oscillator rendered without the
// interruption.
func TestCommit_PreservesInstanceState(t *testing.T) {
	const blocks = 2

	render := func(e *Engine, osc, sink LogicalID, interrupt func()) []float32 {
		probe := e.ModuleOf(sink).(*probeModule)
		var got []float32
		for b := 0; b < blocks; b++ {
			renderOnce(t, e, testBlock)
			got = append(got, append([]float32(nil), probe.got[:testBlock]...)...)
			if b == 0 && interrupt != nil {
				interrupt()
			}
		}
		return got
	}

	build := func() (*Engine, LogicalID, LogicalID) {
		e := newTestEngine()
		osc, _ := e.AddModule("osc")
		sink, _ := e.AddModule("probe")
		mustOK(t, e.Connect(osc, 0, sink, 0))
		mustOK(t, e.CommitChanges())
		return e, osc, sink
	}

	eRef, oscRef, sinkRef := build()
	want := render(eRef, oscRef, sinkRef, nil)

	e, osc, sink := build()
	got := render(e, osc, sink, func() {
		// An unrelated structural change between the two blocks. The
		// oscillator's LogicalID and type are untouched, so its phase
		// accumulator must carry over.
		extra, _ := e.AddModule("const")
		mustOK(t, e.CommitChanges())
		mustOK(t, e.RemoveModule(extra))
		mustOK(t, e.CommitChanges())
	})

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %f, want %f: phase discontinuity across commit", i, got[i], want[i])
		}
	}
}

// TestCommit_RetypeDestroysState: re-adding a module under the same kind of
// role but a new LogicalID yields a fresh instance.
func TestCommit_RetypeDestroysState(t *testing.T) {
	e := newTestEngine()
	osc, _ := e.AddModule("osc")
	mustOK(t, e.CommitChanges())

	first := e.ModuleOf(osc)
	renderOnce(t, e, testBlock)

	mustOK(t, e.RemoveModule(osc))
	osc2, _ := e.AddModule("osc")
	mustOK(t, e.CommitChanges())

	second := e.ModuleOf(osc2)
	if first == second {
		t.Fatal("new LogicalID adopted the old instance")
	}
	if second.(*oscModule).phase != 0 {
		t.Fatal("fresh instance carries old phase")
	}
}

// TestReclaim_DeferredRelease verifies the epoch discipline: an instance
// dropped by a commit is not released until two block boundaries have
// passed, and is released after.
func TestReclaim_DeferredRelease(t *testing.T) {
	liveProbes.Store(0)
	e := newTestEngine()
	id, _ := e.AddModule("lifeprobe")
	mustOK(t, e.CommitChanges())
	if n := liveProbes.Load(); n != 1 {
		t.Fatalf("live count = %d after commit, want 1", n)
	}

	mustOK(t, e.RemoveModule(id))
	mustOK(t, e.CommitChanges())

	// Dropped but not yet provably unreachable: no release.
	e.Reclaim()
	if n := liveProbes.Load(); n != 1 {
		t.Fatalf("released before the epoch advanced: live count = %d", n)
	}

	// One completed block is not enough; the block may have been in flight
	// when the snapshot was swapped.
	renderOnce(t, e, testBlock)
	e.Reclaim()
	if n := liveProbes.Load(); n != 1 {
		t.Fatalf("released after one block: live count = %d", n)
	}

	renderOnce(t, e, testBlock)
	e.Reclaim()
	if n := liveProbes.Load(); n != 0 {
		t.Fatalf("not released after two blocks: live count = %d", n)
	}
}

// TestClose_ReleasesEverything: Close releases live and retired instances
// regardless of epoch.
func TestClose_ReleasesEverything(t *testing.T) {
	liveProbes.Store(0)
	e := newTestEngine()
	a, _ := e.AddModule("lifeprobe")
	_, _ = e.AddModule("lifeprobe")
	mustOK(t, e.CommitChanges())
	mustOK(t, e.RemoveModule(a))
	mustOK(t, e.CommitChanges())
	if n := liveProbes.Load(); n != 2 {
		t.Fatalf("live count = %d before close, want 2", n)
	}

	e.Close()
	if n := liveProbes.Load(); n != 0 {
		t.Fatalf("live count = %d after close, want 0", n)
	}
}

// TestCommit_FailedPrepareRollsBack: a module whose Prepare fails aborts the
// whole commit; instances created earlier in the same commit are released
// and the published snapshot is untouched.
func TestCommit_FailedPrepareRollsBack(t *testing.T) {
	e := newTestEngine()
	ok, _ := e.AddModule("const")
	mustOK(t, e.CommitChanges())
	before := e.Snapshot()

	bad, _ := e.AddModule("failprep")
	if err := e.CommitChanges(); err == nil {
		t.Fatal("commit succeeded with a failing Prepare")
	}
	if e.Snapshot() != before {
		t.Fatal("failed commit replaced the published snapshot")
	}

	// The description still holds the bad module; dropping it makes the
	// pending state committable again.
	mustOK(t, e.RemoveModule(bad))
	mustOK(t, e.CommitChanges())
	if _, found := e.Snapshot().ModuleType(ok); !found {
		t.Fatal("surviving module lost across failed commit")
	}
}
