// modulation_test.go - CV-to-parameter resolution and telemetry mirror tests

package rack

import (
	"math"
	"testing"
)

// cvPatch builds const(cv) → gain CV input, const(signal) → gain signal
// input, gain → probe, and commits. The gain's "gain" parameter is then
// driven by the cv source's constant output.
func cvPatch(t *testing.T) (e *Engine, cv, sig, g, sink LogicalID) {
	t.Helper()
	e = newTestEngine()
	cv, _ = e.AddModule("const")
	sig, _ = e.AddModule("const")
	g, _ = e.AddModule("gain")
	sink, _ = e.AddModule("probe")
	mustOK(t, e.Connect(sig, 0, g, 0)) // signal input, flat channel 0
	mustOK(t, e.Connect(cv, 0, g, 1))  // CV input, flat channel 1
	mustOK(t, e.Connect(g, 0, sink, 0))
	mustOK(t, e.CommitChanges())
	return
}

// TestModulation_Relative: gain declared over [0,1] with base 0.5; a CV of
// +0.2 in relative mode yields an effective 0.7.
func TestModulation_Relative(t *testing.T) {
	e, cv, sig, g, sink := cvPatch(t)
	e.ModuleParam(cv, "level").SetBase(0.2)
	e.ModuleParam(sig, "level").SetBase(1.0)
	p := e.ModuleParam(g, "gain")
	p.SetBase(0.5)
	p.SetMode(ModRelative)

	renderOnce(t, e, testBlock)

	probe := e.ModuleOf(sink).(*probeModule)
	if got := probe.got[0]; !closeF32(got, 0.7) {
		t.Fatalf("relative modulation output = %f, want 0.7", got)
	}
	raw, eff, ok := e.Telemetry(g, "gain")
	if !ok {
		t.Fatal("telemetry lookup failed")
	}
	if raw != 0.5 {
		t.Fatalf("telemetry raw = %f, want the untouched base 0.5", raw)
	}
	if math.Abs(eff-0.7) > 1e-6 {
		t.Fatalf("telemetry effective = %f, want 0.7", eff)
	}
}

// TestModulation_Absolute: a CV of +0.6 in absolute mode maps to 80% of the
// declared range, regardless of the stored base.
func TestModulation_Absolute(t *testing.T) {
	e, cv, sig, g, sink := cvPatch(t)
	e.ModuleParam(cv, "level").SetBase(0.6)
	e.ModuleParam(sig, "level").SetBase(1.0)
	p := e.ModuleParam(g, "gain")
	p.SetBase(0.1) // ignored while driven in absolute mode
	p.SetMode(ModAbsolute)

	renderOnce(t, e, testBlock)

	probe := e.ModuleOf(sink).(*probeModule)
	if got := probe.got[0]; !closeF32(got, 0.8) {
		t.Fatalf("absolute modulation output = %f, want 0.8", got)
	}
}

// TestModulation_RelativeClamps: a large positive CV pushes the effective
// value to the top of the declared range, never past it.
func TestModulation_RelativeClamps(t *testing.T) {
	e, cv, sig, g, sink := cvPatch(t)
	e.ModuleParam(cv, "level").SetBase(0.9)
	e.ModuleParam(sig, "level").SetBase(1.0)
	p := e.ModuleParam(g, "gain")
	p.SetBase(0.5)
	p.SetMode(ModRelative)

	renderOnce(t, e, testBlock)

	probe := e.ModuleOf(sink).(*probeModule)
	if got := probe.got[0]; !closeF32(got, 1.0) {
		t.Fatalf("clamped modulation output = %f, want 1.0", got)
	}
	_, eff, _ := e.Telemetry(g, "gain")
	if eff != 1.0 {
		t.Fatalf("telemetry effective = %f, want the clamped 1.0", eff)
	}
}

// TestModulation_UndrivenUsesBase: with nothing patched into the CV input,
// the parameter resolves to its stored base in either mode.
func TestModulation_UndrivenUsesBase(t *testing.T) {
	e := newTestEngine()
	sig, _ := e.AddModule("const")
	g, _ := e.AddModule("gain")
	sink, _ := e.AddModule("probe")
	mustOK(t, e.Connect(sig, 0, g, 0))
	mustOK(t, e.Connect(g, 0, sink, 0))
	mustOK(t, e.CommitChanges())

	e.ModuleParam(sig, "level").SetBase(1.0)
	p := e.ModuleParam(g, "gain")
	p.SetBase(0.3)
	p.SetMode(ModAbsolute) // mode is irrelevant while undriven

	renderOnce(t, e, testBlock)

	probe := e.ModuleOf(sink).(*probeModule)
	if got := probe.got[0]; !closeF32(got, 0.3) {
		t.Fatalf("undriven parameter output = %f, want base 0.3", got)
	}
	raw, eff, _ := e.Telemetry(g, "gain")
	if raw != 0.3 || eff != 0.3 {
		t.Fatalf("telemetry = (%f, %f), want (0.3, 0.3)", raw, eff)
	}
}

// TestModulation_DisconnectRevertsToBase: unpatching the CV reverts the
// parameter to its base at the next commit, within one block.
func TestModulation_DisconnectRevertsToBase(t *testing.T) {
	e, cv, sig, g, sink := cvPatch(t)
	e.ModuleParam(cv, "level").SetBase(0.2)
	e.ModuleParam(sig, "level").SetBase(1.0)
	p := e.ModuleParam(g, "gain")
	p.SetBase(0.5)
	p.SetMode(ModRelative)

	renderOnce(t, e, testBlock)
	mustOK(t, e.Disconnect(cv, 0, g, 1))
	mustOK(t, e.CommitChanges())
	renderOnce(t, e, testBlock)

	probe := e.ModuleOf(sink).(*probeModule)
	if got := probe.got[0]; !closeF32(got, 0.5) {
		t.Fatalf("output after CV unpatch = %f, want base 0.5", got)
	}
}

func TestParamSet_Routing(t *testing.T) {
	ps := NewParamSet(
		ParamSpec{Name: "routed", Min: 0, Max: 1, CVBus: 1, CVChannel: 2},
		ParamSpec{Name: "fixed", Min: 0, Max: 1, CVBus: -1},
	)
	if bus, ch, ok := ps.Routing("routed"); !ok || bus != 1 || ch != 2 {
		t.Fatalf("Routing(routed) = (%d, %d, %v)", bus, ch, ok)
	}
	if _, _, ok := ps.Routing("fixed"); ok {
		t.Fatal("fixed parameter reported a CV route")
	}
	if _, _, ok := ps.Routing("missing"); ok {
		t.Fatal("unknown parameter reported a CV route")
	}
}

func TestParam_SetBaseClamps(t *testing.T) {
	ps := NewParamSet(ParamSpec{Name: "p", Min: -1, Max: 1, Default: 0})
	p := ps.Param("p")
	p.SetBase(5)
	if p.Base() != 1 {
		t.Fatalf("base = %f, want clamp to 1", p.Base())
	}
	p.SetBase(-5)
	if p.Base() != -1 {
		t.Fatalf("base = %f, want clamp to -1", p.Base())
	}
}

func TestTelemetry_Unknown(t *testing.T) {
	e := newTestEngine()
	if _, _, ok := e.Telemetry(42, "gain"); ok {
		t.Fatal("telemetry for unknown module reported ok")
	}
	id, _ := e.AddModule("gain")
	mustOK(t, e.CommitChanges())
	if _, _, ok := e.Telemetry(id, "no-such-param"); ok {
		t.Fatal("telemetry for unknown parameter reported ok")
	}
}

func TestTelemetrySlot_LastValueWins(t *testing.T) {
	var s TelemetrySlot
	for i := 0; i < 10; i++ {
		s.StoreRaw(float64(i))
		s.StoreEffective(float64(i) * 2)
	}
	if s.Raw() != 9 || s.Effective() != 18 {
		t.Fatalf("slot = (%f, %f), want (9, 18)", s.Raw(), s.Effective())
	}
}

func closeF32(got float32, want float64) bool {
	return math.Abs(float64(got)-want) < 1e-6
}
