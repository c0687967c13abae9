// module_params.go - Parameter store and per-block modulation routing

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

import (
	"math"
	"sync/atomic"
)

// ModMode selects how a routed CV combines with a parameter's stored value.
type ModMode int32

const (
	// ModAbsolute maps the CV (nominal [-1,1]) across the parameter's full
	// declared range; the stored base value is ignored while driven.
	ModAbsolute ModMode = iota
	// ModRelative treats the CV as an offset around the stored base value,
	// scaled by the range width and clamped to the declared range.
	ModRelative
)

// ParamSpec declares one modulatable (or fixed) parameter.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
	// CVBus/CVChannel name the input address carrying this parameter's CV.
	// CVBus < 0 marks the parameter as not modulatable.
	CVBus     int
	CVChannel int
	Mode      ModMode
}

// Param holds one parameter's stored base value, combine mode and telemetry
// slot. The base and mode are settable from any control thread and read by
// the real-time thread; the effective value is owned by the real-time thread
// and mirrored through the slot for external readers.
type Param struct {
	spec      ParamSpec
	base      atomic.Uint64
	mode      atomic.Int32
	effective float64 // RT-thread only; see Slot() for cross-thread reads
	slot      TelemetrySlot
}

// Name returns the parameter's declared name.
func (p *Param) Name() string { return p.spec.Name }

// Range returns the declared [min, max] range.
func (p *Param) Range() (min, max float64) { return p.spec.Min, p.spec.Max }

// SetBase stores a new base value, clamped to the declared range.
func (p *Param) SetBase(v float64) {
	p.base.Store(math.Float64bits(clampF(v, p.spec.Min, p.spec.Max)))
}

// Base returns the stored base value.
func (p *Param) Base() float64 {
	return math.Float64frombits(p.base.Load())
}

// SetMode selects the CV combine mode. Persisted with the module.
func (p *Param) SetMode(m ModMode) { p.mode.Store(int32(m)) }

// Mode returns the current CV combine mode.
func (p *Param) Mode() ModMode { return ModMode(p.mode.Load()) }

// Effective returns the value resolved for the current block. Valid only on
// the real-time thread, inside ProcessBlock; external observers poll the
// telemetry slot instead.
func (p *Param) Effective() float64 { return p.effective }

// Slot returns the parameter's telemetry mirror.
func (p *Param) Slot() *TelemetrySlot { return &p.slot }

// ParamSet is a module's parameter store.
type ParamSet struct {
	params []*Param
	byName map[string]*Param
}

// NewParamSet builds a parameter store from specs, each parameter starting
// at its declared default.
func NewParamSet(specs ...ParamSpec) *ParamSet {
	ps := &ParamSet{byName: make(map[string]*Param, len(specs))}
	for _, spec := range specs {
		p := &Param{spec: spec}
		p.SetBase(spec.Default)
		p.SetMode(spec.Mode)
		ps.params = append(ps.params, p)
		ps.byName[spec.Name] = p
	}
	return ps
}

// Param returns the named parameter, or nil.
func (ps *ParamSet) Param(name string) *Param {
	if ps == nil {
		return nil
	}
	return ps.byName[name]
}

// Names returns the parameter names in declaration order.
func (ps *ParamSet) Names() []string {
	names := make([]string, len(ps.params))
	for i, p := range ps.params {
		names[i] = p.spec.Name
	}
	return names
}

// Routing reports the declared CV input address for a parameter. Module
// implementations normally delegate their ParameterRouting method here.
func (ps *ParamSet) Routing(name string) (bus, channel int, ok bool) {
	p := ps.Param(name)
	if p == nil || p.spec.CVBus < 0 {
		return 0, 0, false
	}
	return p.spec.CVBus, p.spec.CVChannel, true
}

// resolve computes every parameter's effective value for the block about to
// be processed. in holds the instance's flattened input buffers, already
// routed; driven marks which flattened input channels have a producer in the
// current snapshot. Runs on the real-time thread; no allocation.
func (ps *ParamSet) resolve(mod Module, buses BusConfig, in [][]float32, driven []bool) {
	if ps == nil {
		return
	}
	for _, p := range ps.params {
		base := p.Base()
		eff := base
		if bus, ch, ok := mod.ParameterRouting(p.spec.Name); ok {
			flat := buses.FlatInput(bus, ch)
			if flat >= 0 && flat < len(in) && flat < len(driven) && driven[flat] && len(in[flat]) > 0 {
				cv := float64(in[flat][0])
				width := p.spec.Max - p.spec.Min
				switch p.Mode() {
				case ModAbsolute:
					eff = p.spec.Min + (cv*0.5+0.5)*width
				case ModRelative:
					eff = base + cv*width
				}
				eff = clampF(eff, p.spec.Min, p.spec.Max)
			}
		}
		p.effective = eff
		p.slot.StoreRaw(base)
		p.slot.StoreEffective(eff)
	}
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
