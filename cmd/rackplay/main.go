// main.go - Minimal interactive host for the IntuitionRack engine

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"os"
	"time"

	rack "github.com/intuitionamiga/IntuitionRack"
	"golang.org/x/term"
)

// rackplay builds a small vibrato patch (lfo → osc frequency CV → output),
// starts the audio backend and live-edits parameters from raw-mode keyboard
// input. It exists to exercise the engine the way a real host would; the
// actual patch editor lives elsewhere.

func main() {
	engine := rack.NewEngine(rack.SAMPLE_RATE, rack.MAX_BLOCK_SIZE)

	lfo, err := engine.AddModule("lfo")
	exitOn(err)
	osc, err := engine.AddModule("osc")
	exitOn(err)
	out, err := engine.AddModule("output")
	exitOn(err)

	// lfo CV into the oscillator's frequency input, oscillator to both
	// output channels.
	exitOn(engine.Connect(lfo, 0, osc, 0))
	exitOn(engine.Connect(osc, 0, out, 0))
	exitOn(engine.Connect(osc, 0, out, 1))
	exitOn(engine.CommitChanges())

	// Vibrato: CV offsets the stored base frequency.
	engine.ModuleParam(osc, "freq").SetMode(rack.ModRelative)
	engine.ModuleParam(lfo, "rate").SetBase(5)
	engine.ModuleParam(out, "volume").SetBase(0.5)

	exitOn(engine.AttachOutput(rack.AUDIO_BACKEND_OTO))
	engine.Start()
	engine.Play()
	defer engine.Close()

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	exitOn(err)
	defer term.Restore(fd, oldState)

	fmt.Print("rackplay: [space] transport  [+/-] bpm  [r/R] lfo rate  [m] abs/rel  [q] quit\r\n")

	keys := make(chan byte, 8)
	go func() {
		buf := make([]byte, 1)
		for {
			if n, err := os.Stdin.Read(buf); err != nil || n == 0 {
				close(keys)
				return
			}
			keys <- buf[0]
		}
	}()

	status := time.NewTicker(200 * time.Millisecond)
	defer status.Stop()

	for {
		select {
		case key, ok := <-keys:
			if !ok {
				return
			}
			switch key {
			case 'q', 3: // q or Ctrl-C
				fmt.Print("\r\n")
				return
			case ' ':
				if engine.IsPlaying() {
					engine.StopTransport()
				} else {
					engine.Play()
				}
			case '+':
				engine.SetBPM(engine.BPM() + 5)
			case '-':
				engine.SetBPM(engine.BPM() - 5)
			case 'r':
				bumpParam(engine, lfo, "rate", 0.5)
			case 'R':
				bumpParam(engine, lfo, "rate", -0.5)
			case 'm':
				p := engine.ModuleParam(osc, "freq")
				if p.Mode() == rack.ModAbsolute {
					p.SetMode(rack.ModRelative)
				} else {
					p.SetMode(rack.ModAbsolute)
				}
			}
		case <-status.C:
			raw, eff, _ := engine.Telemetry(osc, "freq")
			fmt.Printf("\rbpm %5.1f  playing %-5v  freq base %6.1f  effective %6.1f   ",
				engine.BPM(), engine.IsPlaying(), raw, eff)
		}
	}
}

func bumpParam(engine *rack.Engine, id rack.LogicalID, name string, delta float64) {
	if p := engine.ModuleParam(id, name); p != nil {
		p.SetBase(p.Base() + delta)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "rackplay:", err)
		os.Exit(1)
	}
}
