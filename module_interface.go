// module_interface.go - Module processing contract and type registry

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

import (
	"sort"
	"sync"
)

// Module is the capability contract every processing unit implements. The
// engine treats the implementation as a black box over its declared bus
// layout: Prepare and Release run on the control thread, ProcessBlock,
// AcceptTransport and parameter resolution run on the real-time thread.
//
// ProcessBlock receives the flattened input and output channel buffers for
// the instance and must touch only the first n frames. It must not allocate,
// lock or block.
type Module interface {
	// Prepare readies the module for processing at the given sample rate.
	// Called once before the module first appears in a published snapshot.
	Prepare(sampleRate float64, maxBlock int) error
	// ProcessBlock renders one block of up to maxBlock frames.
	ProcessBlock(in, out [][]float32, n int)
	// Release frees module resources. Never called on the real-time thread,
	// and never while a published snapshot can still reach the module.
	Release()
	// Parameters exposes the module's parameter store, or nil if it has none.
	Parameters() *ParamSet
	// ParameterRouting maps a parameter name to the (bus, channel) input
	// carrying its CV, or ok=false for a non-modulatable parameter.
	ParameterRouting(name string) (bus, channel int, ok bool)
	// AcceptTransport hands the module this block's transport context.
	// Called once per block, before ProcessBlock, with an identical value
	// for every module in the block.
	AcceptTransport(tc TransportContext)
}

// BusConfig declares a module type's channel layout: one entry per bus, each
// holding that bus's channel count. Connections address channels in the
// flattened space, bus 0 first.
type BusConfig struct {
	Inputs  []int
	Outputs []int
}

// InputChannels returns the flattened input channel count.
func (bc BusConfig) InputChannels() int {
	total := 0
	for _, n := range bc.Inputs {
		total += n
	}
	return total
}

// OutputChannels returns the flattened output channel count.
func (bc BusConfig) OutputChannels() int {
	total := 0
	for _, n := range bc.Outputs {
		total += n
	}
	return total
}

// FlatInput converts a (bus, channel) input address to a flattened index.
// Returns -1 if the address is out of range.
func (bc BusConfig) FlatInput(bus, channel int) int {
	if bus < 0 || bus >= len(bc.Inputs) || channel < 0 || channel >= bc.Inputs[bus] {
		return -1
	}
	flat := channel
	for b := 0; b < bus; b++ {
		flat += bc.Inputs[b]
	}
	return flat
}

// ModuleTypeInfo describes a registered module type. Buses must be known
// statically so connections can be validated before any instance exists.
type ModuleTypeInfo struct {
	New      func() Module // Constructor; must not be nil
	Buses    BusConfig     // Declared channel layout
	Terminal bool          // Terminal sinks are summed into the render destination
}

var (
	registryMutex sync.RWMutex
	registry      = map[string]ModuleTypeInfo{}
)

// RegisterModuleType makes a module type constructible by AddModule.
// Re-registering a name replaces the previous entry. Registration typically
// happens from init functions; it is safe from any goroutine except the
// real-time thread.
func RegisterModuleType(name string, info ModuleTypeInfo) {
	if info.New == nil {
		panic("rack: RegisterModuleType with nil constructor: " + name)
	}
	registryMutex.Lock()
	registry[name] = info
	registryMutex.Unlock()
}

// LookupModuleType returns the registration for a type name.
func LookupModuleType(name string) (ModuleTypeInfo, bool) {
	registryMutex.RLock()
	info, ok := registry[name]
	registryMutex.RUnlock()
	return info, ok
}

// RegisteredModuleTypes returns all registered type names, sorted.
func RegisteredModuleTypes() []string {
	registryMutex.RLock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	registryMutex.RUnlock()
	sort.Strings(names)
	return names
}
