// process_loop.go - Real-time block loop: one snapshot load, route, execute, mix

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

import "math"

// Transport control surface. All setters are atomic stores consumed by the
// real-time loop at the next block boundary; none of them blocks or is
// blocked by block processing.

// Play starts the transport. The false→true edge is observed by the loop,
// which restarts the song position from origin and broadcasts the edge to
// every synchronizable module.
func (e *Engine) Play() { e.playing.Store(true) }

// StopTransport halts the transport, holding the song position.
func (e *Engine) StopTransport() { e.playing.Store(false) }

// IsPlaying reports the transport state.
func (e *Engine) IsPlaying() bool { return e.playing.Load() }

// SetBPM sets the tempo for subsequent blocks.
func (e *Engine) SetBPM(bpm float64) {
	if bpm > 0 {
		e.bpmBits.Store(math.Float64bits(bpm))
	}
}

// BPM returns the current tempo.
func (e *Engine) BPM() float64 { return math.Float64frombits(e.bpmBits.Load()) }

// SetGlobalDivision imposes a process-wide division override on every
// transport-locked module; pass a negative index to clear the override.
func (e *Engine) SetGlobalDivision(idx int) {
	if idx >= 0 {
		idx = ClampDivisionIndex(idx)
	} else {
		idx = -1
	}
	e.globalDiv.Store(int32(idx))
}

// PulseGlobalReset forces every synchronizable module back to origin at the
// next block, regardless of transport state. Loop-point masters use this to
// re-synchronize all dependents.
func (e *Engine) PulseGlobalReset() { e.resetPulse.Store(true) }

// SetSongPosition requests a transport seek, applied at the next block
// boundary.
func (e *Engine) SetSongPosition(beats float64) {
	e.seekBits.Store(math.Float64bits(beats))
	e.seekPending.Store(true)
}

// blockTransport assembles this block's TransportContext, consuming any
// pending pulses, and advances the song position past the block. Real-time
// thread only.
func (e *Engine) blockTransport(n int) TransportContext {
	playing := e.playing.Load()
	if e.seekPending.Swap(false) {
		e.songPos = math.Float64frombits(e.seekBits.Load())
	}
	if playing && !e.rtWasPlaying {
		e.songPos = 0
	}
	e.rtWasPlaying = playing

	bpm := math.Float64frombits(e.bpmBits.Load())
	tc := TransportContext{
		Playing:             playing,
		SongPositionBeats:   e.songPos,
		BPM:                 bpm,
		GlobalDivisionIndex: int(e.globalDiv.Load()),
		ForceGlobalReset:    e.resetPulse.Swap(false),
	}
	if playing {
		e.songPos += float64(n) / e.sampleRate * bpm / 60.0
	}
	return tc
}

// RenderBlock processes one block of n frames against the currently
// published snapshot and sums the outputs of every terminal module into
// dst. The snapshot pointer is loaded exactly once; a commit landing
// mid-block affects only the next block. The path performs no allocation,
// takes no lock and never blocks; structural edits staged elsewhere cannot
// partially affect a block in flight.
//
// dst holds one slice per output channel; extra terminal channels beyond
// len(dst) are dropped, missing ones stay silent. n is clamped to the
// engine's maximum block size.
func (e *Engine) RenderBlock(dst [][]float32, n int) {
	if n > e.maxBlock {
		n = e.maxBlock
	}
	if n <= 0 {
		return
	}

	snap := e.published.Load()
	tc := e.blockTransport(n)

	for i := range snap.nodes {
		node := &snap.nodes[i]
		inst := node.inst

		// Route producer channels into this consumer's input buffers.
		// Undriven channels are silenced so a disconnect leaves no stale
		// samples behind.
		for ch := range node.feeds {
			feed := node.feeds[ch]
			in := inst.in[ch][:n]
			if feed.srcNode < 0 {
				zeroSamples(in)
				continue
			}
			src := snap.nodes[feed.srcNode].inst
			copy(in, src.out[feed.srcCh][:n])
		}

		inst.mod.AcceptTransport(tc)
		inst.mod.Parameters().resolve(inst.mod, inst.info.Buses, inst.in, node.driven)
		inst.mod.ProcessBlock(inst.in, inst.out, n)
	}

	for ch := range dst {
		zeroSamples(dst[ch][:n])
	}
	for _, t := range snap.terminals {
		out := snap.nodes[t].inst.out
		limit := len(out)
		if len(dst) < limit {
			limit = len(dst)
		}
		for ch := 0; ch < limit; ch++ {
			mixInto(dst[ch][:n], out[ch][:n])
		}
	}

	e.epoch.Add(1)
}

// Telemetry polls the last published raw and effective value of a parameter
// from any thread, resolved against the current snapshot. Staleness is
// expected; the read never blocks the writer.
func (e *Engine) Telemetry(id LogicalID, param string) (raw, effective float64, ok bool) {
	inst := e.published.Load().module(id)
	if inst == nil {
		return 0, 0, false
	}
	p := inst.mod.Parameters().Param(param)
	if p == nil {
		return 0, 0, false
	}
	return p.slot.Raw(), p.slot.Effective(), true
}

// ModuleParam returns a committed module's parameter for control-side
// adjustment (base value, combine mode), or nil.
func (e *Engine) ModuleParam(id LogicalID, param string) *Param {
	inst := e.published.Load().module(id)
	if inst == nil {
		return nil
	}
	return inst.mod.Parameters().Param(param)
}

// ModuleOf returns the committed Module behind a LogicalID, for hosts that
// need type-specific access (e.g. handing a capture FIFO to a callback).
func (e *Engine) ModuleOf(id LogicalID) Module {
	inst := e.published.Load().module(id)
	if inst == nil {
		return nil
	}
	return inst.mod
}

func zeroSamples(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

func mixInto(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}
