//go:build !headless

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

// audio_backend_oto.go - OTO v3 audio output implementation

package rack

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

type OtoPlayer struct {
	ctx        *oto.Context
	player     *oto.Player
	engine     atomic.Pointer[Engine] // Atomic for lock-free Read()
	master     [][]float32            // Pre-allocated per-channel render buffers
	interleave []float32              // Pre-allocated interleave buffer
	started    bool
	mutex      sync.Mutex // Only for setup/control operations
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: OUTPUT_CHANNELS,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{
		ctx:     ctx,
		started: false,
	}, nil
}

func (op *OtoPlayer) SetupPlayer(engine *Engine) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.engine.Store(engine)
	op.player = op.ctx.NewPlayer(op)
	op.master = make([][]float32, OUTPUT_CHANNELS)
	for ch := range op.master {
		op.master[ch] = make([]float32, engine.MaxBlockSize())
	}
	op.interleave = make([]float32, engine.MaxBlockSize()*OUTPUT_CHANNELS)
}

// Read is the device callback and therefore the engine's real-time thread:
// it renders blocks against the published snapshot and interleaves them into
// the byte buffer. Lock-free after the engine pointer load.
func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	engine := op.engine.Load()
	if engine == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	const frameBytes = 4 * OUTPUT_CHANNELS
	frames := len(p) / frameBytes
	offset := 0
	for frames > 0 {
		chunk := frames
		if chunk > engine.MaxBlockSize() {
			chunk = engine.MaxBlockSize()
		}
		engine.RenderBlock(op.master, chunk)

		inter := op.interleave[:chunk*OUTPUT_CHANNELS]
		for i := 0; i < chunk; i++ {
			for ch := 0; ch < OUTPUT_CHANNELS; ch++ {
				inter[i*OUTPUT_CHANNELS+ch] = op.master[ch][i]
			}
		}
		byteLen := chunk * frameBytes
		copy(p[offset:offset+byteLen], (*[1 << 30]byte)(unsafe.Pointer(&inter[0]))[:byteLen])

		offset += byteLen
		frames -= chunk
	}
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Pause()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
