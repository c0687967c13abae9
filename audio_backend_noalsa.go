//go:build !alsa || headless

// audio_backend_noalsa.go - Stub for builds without ALSA support

package rack

import "errors"

type ALSAPlayer struct{}

func NewALSAPlayer(sampleRate int) (*ALSAPlayer, error) {
	return nil, errors.New("built without ALSA support (rebuild with -tags alsa)")
}

func (ap *ALSAPlayer) SetupPlayer(engine *Engine) {}
func (ap *ALSAPlayer) Start()                     {}
func (ap *ALSAPlayer) Stop()                      {}
func (ap *ALSAPlayer) Close()                     {}
func (ap *ALSAPlayer) IsStarted() bool            { return false }
