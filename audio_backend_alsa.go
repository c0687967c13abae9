//go:build alsa && !headless

// audio_backend_alsa.go - Direct ALSA audio output implementation

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <stdlib.h>

static snd_pcm_t* openPCM(const char* device, int* err) {
    snd_pcm_t* handle;
    *err = snd_pcm_open(&handle, device, SND_PCM_STREAM_PLAYBACK, 0);
    return handle;
}

static int setupPCM(snd_pcm_t* handle, unsigned int rate, unsigned int channels) {
    snd_pcm_hw_params_t* params;
    int err;

    snd_pcm_hw_params_alloca(&params);
    err = snd_pcm_hw_params_any(handle, params);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_access(handle, params, SND_PCM_ACCESS_RW_INTERLEAVED);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_format(handle, params, SND_PCM_FORMAT_FLOAT);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_channels(handle, params, channels);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_rate(handle, params, rate, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params(handle, params);
    if (err < 0) return err;

    return snd_pcm_prepare(handle);
}

static int writePCM(snd_pcm_t* handle, float* buffer, int frames) {
    return snd_pcm_writei(handle, buffer, frames);
}

static void closePCM(snd_pcm_t* handle) {
    if (handle != NULL) {
        snd_pcm_drain(handle);
        snd_pcm_close(handle);
    }
}
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"
)

const ALSA_BLOCK_FRAMES = 256 // Frames rendered per writei call

// ALSAPlayer drives the PCM device from its own goroutine, which becomes the
// engine's real-time thread: each iteration renders one block and writes the
// interleaved frames. snd_pcm_writei blocking on the device is what paces
// the render loop.
type ALSAPlayer struct {
	handle     *C.snd_pcm_t
	engine     *Engine
	master     [][]float32
	interleave []float32
	started    bool
	stop       chan struct{}
	done       chan struct{}
	mutex      sync.Mutex
}

func NewALSAPlayer(sampleRate int) (*ALSAPlayer, error) {
	dev := C.CString("default")
	defer C.free(unsafe.Pointer(dev))

	var cerr C.int
	handle := C.openPCM(dev, &cerr)
	if cerr < 0 {
		return nil, fmt.Errorf("failed to open PCM device: %s", C.GoString(C.snd_strerror(cerr)))
	}
	if cerr = C.setupPCM(handle, C.uint(sampleRate), C.uint(OUTPUT_CHANNELS)); cerr < 0 {
		C.closePCM(handle)
		return nil, fmt.Errorf("failed to setup PCM: %s", C.GoString(C.snd_strerror(cerr)))
	}
	return &ALSAPlayer{handle: handle}, nil
}

func (ap *ALSAPlayer) SetupPlayer(engine *Engine) {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	ap.engine = engine
	ap.master = make([][]float32, OUTPUT_CHANNELS)
	for ch := range ap.master {
		ap.master[ch] = make([]float32, ALSA_BLOCK_FRAMES)
	}
	ap.interleave = make([]float32, ALSA_BLOCK_FRAMES*OUTPUT_CHANNELS)
}

func (ap *ALSAPlayer) renderLoop() {
	defer close(ap.done)
	for {
		select {
		case <-ap.stop:
			return
		default:
		}

		ap.engine.RenderBlock(ap.master, ALSA_BLOCK_FRAMES)
		for i := 0; i < ALSA_BLOCK_FRAMES; i++ {
			for ch := 0; ch < OUTPUT_CHANNELS; ch++ {
				ap.interleave[i*OUTPUT_CHANNELS+ch] = ap.master[ch][i]
			}
		}

		frames := C.writePCM(ap.handle, (*C.float)(unsafe.Pointer(&ap.interleave[0])), C.int(ALSA_BLOCK_FRAMES))
		if frames == -C.EPIPE {
			// Underrun: recover the device and carry on.
			C.snd_pcm_prepare(ap.handle)
		}
	}
}

func (ap *ALSAPlayer) Start() {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	if ap.started || ap.handle == nil || ap.engine == nil {
		return
	}
	ap.stop = make(chan struct{})
	ap.done = make(chan struct{})
	ap.started = true
	go ap.renderLoop()
}

func (ap *ALSAPlayer) Stop() {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	if ap.started {
		close(ap.stop)
		<-ap.done
		ap.started = false
	}
}

func (ap *ALSAPlayer) Close() {
	ap.Stop()
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	if ap.handle != nil {
		C.closePCM(ap.handle)
		ap.handle = nil
	}
}

func (ap *ALSAPlayer) IsStarted() bool {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()
	return ap.started
}
