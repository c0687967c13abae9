// modules_builtin.go - Built-in utility modules: sources, gain, mixer, capture, sink

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

import "math"

// The built-in set keeps the DSP deliberately trivial; real voices, filters
// and effects live outside the engine and only have to honour the Module
// contract. These types exist to give hosts (and the tests) working sources,
// sinks and CV producers.

const CAPTURE_FIFO_CAPACITY = 8192 // Samples buffered between capture callback and block loop

func init() {
	RegisterModuleType("const", ModuleTypeInfo{
		New:   func() Module { return newConstModule() },
		Buses: BusConfig{Inputs: []int{1}, Outputs: []int{1}},
	})
	RegisterModuleType("gain", ModuleTypeInfo{
		New:   func() Module { return newGainModule() },
		Buses: BusConfig{Inputs: []int{1, 1}, Outputs: []int{1}},
	})
	RegisterModuleType("osc", ModuleTypeInfo{
		New:   func() Module { return newOscModule() },
		Buses: BusConfig{Inputs: []int{1}, Outputs: []int{1}},
	})
	RegisterModuleType("lfo", ModuleTypeInfo{
		New:   func() Module { return newLfoModule() },
		Buses: BusConfig{Outputs: []int{1}},
	})
	RegisterModuleType("mixer4", ModuleTypeInfo{
		New:   func() Module { return newMixerModule() },
		Buses: BusConfig{Inputs: []int{4}, Outputs: []int{1}},
	})
	RegisterModuleType("capture", ModuleTypeInfo{
		New:   func() Module { return newCaptureModule() },
		Buses: BusConfig{Outputs: []int{1}},
	})
	RegisterModuleType("output", ModuleTypeInfo{
		New:      func() Module { return newOutputModule() },
		Buses:    BusConfig{Inputs: []int{2}, Outputs: []int{2}},
		Terminal: true,
	})
}

// ----- const: constant-value source, level modulatable on its CV input -----

type constModule struct {
	ps    *ParamSet
	level *Param
}

func newConstModule() *constModule {
	ps := NewParamSet(ParamSpec{
		Name: "level", Min: -1, Max: 1, Default: 0.5,
		CVBus: 0, CVChannel: 0,
	})
	return &constModule{ps: ps, level: ps.Param("level")}
}

func (m *constModule) Prepare(sampleRate float64, maxBlock int) error { return nil }

func (m *constModule) ProcessBlock(in, out [][]float32, n int) {
	v := float32(m.level.Effective())
	buf := out[0][:n]
	for i := range buf {
		buf[i] = v
	}
}

func (m *constModule) Release()              {}
func (m *constModule) Parameters() *ParamSet { return m.ps }
func (m *constModule) ParameterRouting(name string) (int, int, bool) {
	return m.ps.Routing(name)
}
func (m *constModule) AcceptTransport(tc TransportContext) {}

// ----- gain: one signal in, one out, gain CV on bus 1 -----

type gainModule struct {
	ps   *ParamSet
	gain *Param
}

func newGainModule() *gainModule {
	ps := NewParamSet(ParamSpec{
		Name: "gain", Min: 0, Max: 1, Default: 1,
		CVBus: 1, CVChannel: 0,
	})
	return &gainModule{ps: ps, gain: ps.Param("gain")}
}

func (m *gainModule) Prepare(sampleRate float64, maxBlock int) error { return nil }

func (m *gainModule) ProcessBlock(in, out [][]float32, n int) {
	g := float32(m.gain.Effective())
	src := in[0][:n]
	dst := out[0][:n]
	for i := range dst {
		dst[i] = src[i] * g
	}
}

func (m *gainModule) Release()              {}
func (m *gainModule) Parameters() *ParamSet { return m.ps }
func (m *gainModule) ParameterRouting(name string) (int, int, bool) {
	return m.ps.Routing(name)
}
func (m *gainModule) AcceptTransport(tc TransportContext) {}

// ----- osc: audio-rate sine source with modulatable frequency -----

type oscModule struct {
	ps         *ParamSet
	freq       *Param
	phase      float64
	sampleRate float64
}

func newOscModule() *oscModule {
	ps := NewParamSet(ParamSpec{
		Name: "freq", Min: 20, Max: 2000, Default: 440,
		CVBus: 0, CVChannel: 0,
	})
	return &oscModule{ps: ps, freq: ps.Param("freq")}
}

func (m *oscModule) Prepare(sampleRate float64, maxBlock int) error {
	m.sampleRate = sampleRate
	return nil
}

func (m *oscModule) ProcessBlock(in, out [][]float32, n int) {
	inc := m.freq.Effective() / m.sampleRate
	buf := out[0][:n]
	for i := range buf {
		buf[i] = float32(math.Sin(2 * math.Pi * m.phase))
		m.phase += inc
		if m.phase >= 1 {
			m.phase -= 1
		}
	}
}

func (m *oscModule) Release()              {}
func (m *oscModule) Parameters() *ParamSet { return m.ps }
func (m *oscModule) ParameterRouting(name string) (int, int, bool) {
	return m.ps.Routing(name)
}
func (m *oscModule) AcceptTransport(tc TransportContext) {}

// ----- lfo: tempo-aware sine CV source -----

// Sync selector parameter values; ordered like SyncMode.
const (
	LFO_SYNC_STOPPED = 0
	LFO_SYNC_FREE    = 1
	LFO_SYNC_LOCKED  = 2
)

type lfoModule struct {
	ps         *ParamSet
	rate       *Param
	division   *Param
	syncSel    *Param
	runner     SyncRunner
	tc         TransportContext
	sampleRate float64
}

func newLfoModule() *lfoModule {
	ps := NewParamSet(
		ParamSpec{Name: "rate", Min: 0.01, Max: 20, Default: 1, CVBus: -1},
		ParamSpec{Name: "division", Min: 0, Max: float64(len(BeatDivisions) - 1), Default: 5, CVBus: -1},
		ParamSpec{Name: "sync", Min: LFO_SYNC_STOPPED, Max: LFO_SYNC_LOCKED, Default: LFO_SYNC_FREE, CVBus: -1},
	)
	m := &lfoModule{
		ps:       ps,
		rate:     ps.Param("rate"),
		division: ps.Param("division"),
		syncSel:  ps.Param("sync"),
	}
	m.runner.CycleLength = 1
	return m
}

func (m *lfoModule) Prepare(sampleRate float64, maxBlock int) error {
	m.sampleRate = sampleRate
	return nil
}

func (m *lfoModule) ProcessBlock(in, out [][]float32, n int) {
	m.runner.Mode = SyncMode(int32(m.syncSel.Effective()))
	m.runner.RateHz = m.rate.Effective()
	m.runner.DivisionIndex = int(m.division.Effective())

	// Apply edge resets and, in locked mode, the block-start song position,
	// without consuming any samples yet.
	m.runner.Advance(m.tc, m.sampleRate, 0)
	pos := m.runner.Position()

	var inc float64
	switch m.runner.Mode {
	case SyncFreeRun:
		inc = m.runner.RateHz / m.sampleRate
	case SyncLocked:
		if m.tc.Playing {
			idx := m.runner.DivisionIndex
			if m.tc.GlobalDivisionIndex >= 0 {
				idx = m.tc.GlobalDivisionIndex
			}
			div := BeatDivisions[ClampDivisionIndex(idx)]
			inc = m.tc.BPM / 60.0 / div / m.sampleRate
		}
	}

	buf := out[0][:n]
	for i := range buf {
		buf[i] = float32(math.Sin(2 * math.Pi * pos))
		pos += inc
		if pos >= 1 {
			pos -= 1
		}
	}
	m.runner.Advance(m.tc, m.sampleRate, n)
}

func (m *lfoModule) Release()              {}
func (m *lfoModule) Parameters() *ParamSet { return m.ps }
func (m *lfoModule) ParameterRouting(name string) (int, int, bool) {
	return m.ps.Routing(name)
}
func (m *lfoModule) AcceptTransport(tc TransportContext) { m.tc = tc }

// Runner exposes the sync state machine, mainly for tests and hosts that
// need to inspect phase.
func (m *lfoModule) Runner() *SyncRunner { return &m.runner }

// ----- mixer4: four inputs summed to one output -----

type mixerModule struct {
	ps    *ParamSet
	level *Param
}

func newMixerModule() *mixerModule {
	ps := NewParamSet(ParamSpec{
		Name: "level", Min: 0, Max: 1, Default: 1, CVBus: -1,
	})
	return &mixerModule{ps: ps, level: ps.Param("level")}
}

func (m *mixerModule) Prepare(sampleRate float64, maxBlock int) error { return nil }

func (m *mixerModule) ProcessBlock(in, out [][]float32, n int) {
	lvl := float32(m.level.Effective())
	dst := out[0][:n]
	for i := range dst {
		dst[i] = 0
	}
	for ch := 0; ch < 4; ch++ {
		src := in[ch][:n]
		for i := range dst {
			dst[i] += src[i]
		}
	}
	for i := range dst {
		dst[i] *= lvl
	}
}

func (m *mixerModule) Release()              {}
func (m *mixerModule) Parameters() *ParamSet { return m.ps }
func (m *mixerModule) ParameterRouting(name string) (int, int, bool) {
	return m.ps.Routing(name)
}
func (m *mixerModule) AcceptTransport(tc TransportContext) {}

// ----- capture: hardware ingest through a CaptureFifo -----

type captureModule struct {
	fifo *CaptureFifo
}

func newCaptureModule() *captureModule {
	return &captureModule{fifo: NewCaptureFifo(CAPTURE_FIFO_CAPACITY)}
}

func (m *captureModule) Prepare(sampleRate float64, maxBlock int) error { return nil }

func (m *captureModule) ProcessBlock(in, out [][]float32, n int) {
	m.fifo.Read(out[0][:n])
}

func (m *captureModule) Release()              {}
func (m *captureModule) Parameters() *ParamSet { return nil }
func (m *captureModule) ParameterRouting(name string) (int, int, bool) {
	return 0, 0, false
}
func (m *captureModule) AcceptTransport(tc TransportContext) {}

// Fifo hands out the producer end for the hardware capture callback.
func (m *captureModule) Fifo() *CaptureFifo { return m.fifo }

// ----- output: terminal sink summed into the render destination -----

type outputModule struct {
	ps     *ParamSet
	volume *Param
}

func newOutputModule() *outputModule {
	ps := NewParamSet(ParamSpec{
		Name: "volume", Min: 0, Max: 1, Default: 0.8, CVBus: -1,
	})
	return &outputModule{ps: ps, volume: ps.Param("volume")}
}

func (m *outputModule) Prepare(sampleRate float64, maxBlock int) error { return nil }

func (m *outputModule) ProcessBlock(in, out [][]float32, n int) {
	vol := float32(m.volume.Effective())
	for ch := 0; ch < 2; ch++ {
		src := in[ch][:n]
		dst := out[ch][:n]
		for i := range dst {
			dst[i] = src[i] * vol
		}
	}
}

func (m *outputModule) Release()              {}
func (m *outputModule) Parameters() *ParamSet { return m.ps }
func (m *outputModule) ParameterRouting(name string) (int, int, bool) {
	return m.ps.Routing(name)
}
func (m *outputModule) AcceptTransport(tc TransportContext) {}
