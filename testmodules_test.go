// testmodules_test.go - Probe module types shared by the package tests

package rack

import (
	"errors"
	"sync/atomic"
)

func init() {
	RegisterModuleType("probe", ModuleTypeInfo{
		New:   func() Module { return &probeModule{} },
		Buses: BusConfig{Inputs: []int{1}},
	})
	RegisterModuleType("tcprobe", ModuleTypeInfo{
		New:   func() Module { return &tcProbeModule{} },
		Buses: BusConfig{},
	})
	RegisterModuleType("failprep", ModuleTypeInfo{
		New:   func() Module { return &failPrepModule{} },
		Buses: BusConfig{},
	})
	RegisterModuleType("lifeprobe", ModuleTypeInfo{
		New: func() Module {
			m := &lifeProbeModule{}
			liveProbes.Add(1)
			return m
		},
		Buses: BusConfig{},
	})
}

// probeModule records the input block it last received, so tests can observe
// exactly what the routing pass delivered to a consumer.
type probeModule struct {
	got []float32
}

func (m *probeModule) Prepare(sampleRate float64, maxBlock int) error {
	m.got = make([]float32, maxBlock)
	return nil
}

func (m *probeModule) ProcessBlock(in, out [][]float32, n int) {
	copy(m.got[:n], in[0][:n])
}

func (m *probeModule) Release()                                 {}
func (m *probeModule) Parameters() *ParamSet                    { return nil }
func (m *probeModule) ParameterRouting(string) (int, int, bool) { return 0, 0, false }
func (m *probeModule) AcceptTransport(TransportContext)         {}

// tcProbeModule records every TransportContext it is handed, one per block.
type tcProbeModule struct {
	seen []TransportContext
}

func (m *tcProbeModule) Prepare(float64, int) error               { return nil }
func (m *tcProbeModule) ProcessBlock(in, out [][]float32, n int)  {}
func (m *tcProbeModule) Release()                                 {}
func (m *tcProbeModule) Parameters() *ParamSet                    { return nil }
func (m *tcProbeModule) ParameterRouting(string) (int, int, bool) { return 0, 0, false }
func (m *tcProbeModule) AcceptTransport(tc TransportContext) {
	m.seen = append(m.seen, tc)
}

// failPrepModule refuses to prepare, for commit rollback tests.
type failPrepModule struct{}

func (m *failPrepModule) Prepare(float64, int) error {
	return errors.New("prepare refused")
}
func (m *failPrepModule) ProcessBlock(in, out [][]float32, n int)  {}
func (m *failPrepModule) Release()                                 {}
func (m *failPrepModule) Parameters() *ParamSet                    { return nil }
func (m *failPrepModule) ParameterRouting(string) (int, int, bool) { return 0, 0, false }
func (m *failPrepModule) AcceptTransport(TransportContext)         {}

// lifeProbeModule counts live instances so tests can watch deferred reclaim.
var liveProbes atomic.Int64

type lifeProbeModule struct {
	released bool
}

func (m *lifeProbeModule) Prepare(float64, int) error              { return nil }
func (m *lifeProbeModule) ProcessBlock(in, out [][]float32, n int) {}
func (m *lifeProbeModule) Release() {
	if !m.released {
		m.released = true
		liveProbes.Add(-1)
	}
}
func (m *lifeProbeModule) Parameters() *ParamSet                    { return nil }
func (m *lifeProbeModule) ParameterRouting(string) (int, int, bool) { return 0, 0, false }
func (m *lifeProbeModule) AcceptTransport(TransportContext)         {}
