// ABOUTME: Microphone path: capture buffer, noise gate, gain, meter
// ABOUTME: Feeds the mixer sum point and hosts the talkover controller
package mic

import (
	"github.com/onestopradio/radiocore-go/internal/dsp"
	"go.uber.org/atomic"
)

const (
	MaxGain = 2.0

	// DefaultGateThresholdDB keeps room noise out of the program bus while
	// passing normal speech levels.
	DefaultGateThresholdDB = -50.0
)

// Path is the microphone channel strip: gate -> gain -> meter. The audio
// callback owns the gate and meter; control-plane setters stage values in
// atomics that the callback reads at block boundaries.
type Path struct {
	enabled atomic.Bool
	muted   atomic.Bool
	gain    atomic.Float64

	gateEnabled   atomic.Bool
	gateThreshold atomic.Float64

	gate     *dsp.NoiseGate
	meter    *dsp.Meter
	talkover *Talkover
}

// New creates a disabled mic path at unity gain. bus is the master bus the
// talkover controller ducks.
func New(sampleRate int, bus MasterBus) *Path {
	p := &Path{
		gate:  dsp.NewNoiseGate(DefaultGateThresholdDB),
		meter: dsp.NewMeter(sampleRate),
	}
	p.gain.Store(1.0)
	p.gateEnabled.Store(true)
	p.gateThreshold.Store(DefaultGateThresholdDB)
	p.talkover = newTalkover(bus, sampleRate, p)
	return p
}

// SetEnabled switches the mic on or off. Disabling releases talkover.
func (p *Path) SetEnabled(on bool) {
	p.enabled.Store(on)
	if !on {
		p.talkover.Enable(false)
	}
}

// Enabled reports whether the mic is on.
func (p *Path) Enabled() bool { return p.enabled.Load() }

// SetMuted mutes or unmutes the mic. Muting releases talkover.
func (p *Path) SetMuted(muted bool) {
	p.muted.Store(muted)
	if muted {
		p.talkover.Enable(false)
	}
}

// Muted reports the mute switch.
func (p *Path) Muted() bool { return p.muted.Load() }

// SetGain sets the mic gain, clamped to [0, 2].
func (p *Path) SetGain(g float64) {
	if g < 0 {
		g = 0
	}
	if g > MaxGain {
		g = MaxGain
	}
	p.gain.Store(g)
}

// Gain returns the mic gain.
func (p *Path) Gain() float64 { return p.gain.Load() }

// EnableGate switches the noise gate.
func (p *Path) EnableGate(on bool) { p.gateEnabled.Store(on) }

// SetGateThreshold sets the gate threshold in dBFS.
func (p *Path) SetGateThreshold(db float64) { p.gateThreshold.Store(db) }

// GateThreshold returns the gate threshold in dBFS.
func (p *Path) GateThreshold() float64 { return p.gateThreshold.Load() }

// Talkover returns the duck controller.
func (p *Path) Talkover() *Talkover { return p.talkover }

// Levels returns the post-gain mic meter reading.
func (p *Path) Levels() dsp.Levels { return p.meter.Levels() }

// ProcessBlock produces the mic contribution for one block: out is zeroed
// when the mic is off or muted, otherwise in is gated, gained, and metered
// into out. It also advances the talkover fade state. Audio callback only.
func (p *Path) ProcessBlock(in, out []float32) {
	p.talkover.advance()

	if !p.enabled.Load() || p.muted.Load() {
		for i := range out {
			out[i] = 0
		}
		return
	}

	copy(out, in)

	p.gate.Enabled = p.gateEnabled.Load()
	p.gate.ThresholdDB = p.gateThreshold.Load()
	p.gate.ProcessBlock(out)

	if g := float32(p.gain.Load()); g != 1.0 {
		for i := range out {
			out[i] *= g
		}
	}

	p.meter.ProcessBlock(out)
}
