// audio_output.go - Audio backend interface and factory

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

import "fmt"

// OUTPUT_CHANNELS is the channel count of the engine's master output.
const OUTPUT_CHANNELS = 2

// AudioError provides detailed error context for audio output operations
type AudioError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying error if any
}

func (e *AudioError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("audio %s failed: %s", e.Operation, e.Details)
}

func (e *AudioError) Unwrap() error { return e.Err }

// AudioOutput is the minimal contract an output backend implements. The
// backend's device callback is the engine's real-time thread: it pulls
// blocks through Engine.RenderBlock and must follow that path's no-lock,
// no-allocation rules.
type AudioOutput interface {
	Start()
	Stop()
	Close()
	IsStarted() bool
}

// Predefined audio backend types
const (
	AUDIO_BACKEND_OTO  = iota // Oto v3 backend (headless builds swap in a stub)
	AUDIO_BACKEND_ALSA        // Direct ALSA PCM output (requires -tags alsa)
)

// NewAudioOutput creates an output backend pulling from the given engine.
func NewAudioOutput(backend int, sampleRate int, engine *Engine) (AudioOutput, error) {
	switch backend {
	case AUDIO_BACKEND_OTO:
		player, err := NewOtoPlayer(sampleRate)
		if err != nil {
			return nil, &AudioError{Operation: "backend creation", Details: "oto context", Err: err}
		}
		player.SetupPlayer(engine)
		return player, nil
	case AUDIO_BACKEND_ALSA:
		player, err := NewALSAPlayer(sampleRate)
		if err != nil {
			return nil, &AudioError{Operation: "backend creation", Details: "alsa device", Err: err}
		}
		player.SetupPlayer(engine)
		return player, nil
	}
	return nil, &AudioError{
		Operation: "backend creation",
		Details:   fmt.Sprintf("unknown backend type: %d", backend),
	}
}

// AttachOutput creates and attaches an audio backend to the engine. The
// backend starts pulling blocks once Start is called.
func (e *Engine) AttachOutput(backend int) error {
	output, err := NewAudioOutput(backend, int(e.sampleRate), e)
	if err != nil {
		return err
	}
	e.output = output
	return nil
}

// Start begins audio output on the attached backend.
func (e *Engine) Start() {
	if e.output != nil {
		e.output.Start()
	}
}

// Stop halts audio output; the graph and transport state stay intact.
func (e *Engine) Stop() {
	if e.output != nil {
		e.output.Stop()
	}
}
