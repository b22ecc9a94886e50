// ABOUTME: Master bus: crossfaded deck sum, mic sum point, limiter, meters
// ABOUTME: Also renders the cue/program headphone blend for the monitor path
package mixer

import (
	"github.com/onestopradio/radiocore-go/internal/dsp"
	"go.uber.org/atomic"
)

// Mixer sums the two deck buffers through the crossfader, adds the mic
// contribution, applies the ramped master volume and the limiter, and meters
// the result. Scalar state is atomic; the per-sample volume ramp is owned by
// the audio callback and retargeted through pending fields applied at block
// boundaries.
type Mixer struct {
	crossfader *Crossfader

	// Master volume ramp. The control plane stages (target, duration) and
	// the callback applies them before rendering the next block.
	volRamp     *dsp.Ramp
	pendTarget  atomic.Float64
	pendFrames  atomic.Int64
	pendDirty   atomic.Bool
	volumeNow   atomic.Float64 // ramp value mirrored for snapshot reads
	volumeGoal  atomic.Float64

	headphoneVol atomic.Float64
	headphoneMix atomic.Float64 // 1 = all master, 0 = all cued
	cueA         atomic.Bool
	cueB         atomic.Bool
	masterCue    atomic.Bool

	limiter  *dsp.Limiter
	meter    *dsp.Meter
	spectrum *Spectrum

	program []float32 // callback-owned scratch
	cued    []float32
}

// New creates a mixer rendering blocks of blockFrames stereo frames.
func New(sampleRate, blockFrames int) *Mixer {
	m := &Mixer{
		crossfader: NewCrossfader(),
		volRamp:    dsp.NewRamp(1.0),
		limiter:    dsp.NewLimiter(sampleRate, dsp.DefaultLimiterParams()),
		meter:      dsp.NewMeter(sampleRate),
		spectrum:   NewSpectrum(blockFrames, DefaultSpectrumBins),
		program:    make([]float32, blockFrames*2),
		cued:       make([]float32, blockFrames*2),
	}
	m.volumeNow.Store(1.0)
	m.volumeGoal.Store(1.0)
	m.headphoneVol.Store(1.0)
	m.headphoneMix.Store(1.0)
	return m
}

// Crossfader returns the fader state.
func (m *Mixer) Crossfader() *Crossfader { return m.crossfader }

// SetCrossfader updates fader position and curve.
func (m *Mixer) SetCrossfader(position, curve float64) {
	m.crossfader.Set(position, curve)
}

// SetMasterVolume jumps the master volume to v, clamped to [0, 1].
func (m *Mixer) SetMasterVolume(v float64) {
	m.RampMasterVolume(clamp(v, 0, 1), 0)
}

// RampMasterVolume schedules a linear ramp of the master volume to target
// over durationFrames, starting at the next block. Retargeting an active
// ramp continues from the current value without a discontinuity.
func (m *Mixer) RampMasterVolume(target float64, durationFrames int) {
	target = clamp(target, 0, 1)
	m.pendTarget.Store(target)
	m.pendFrames.Store(int64(durationFrames))
	m.pendDirty.Store(true)
	m.volumeGoal.Store(target)
}

// MasterVolume returns the master volume as of the last rendered block.
func (m *Mixer) MasterVolume() float64 { return m.volumeNow.Load() }

// MasterVolumeTarget returns the value the master volume is heading to.
func (m *Mixer) MasterVolumeTarget() float64 { return m.volumeGoal.Load() }

// SetHeadphoneVolume sets the monitor level, clamped to [0, 1].
func (m *Mixer) SetHeadphoneVolume(v float64) {
	m.headphoneVol.Store(clamp(v, 0, 1))
}

// HeadphoneVolume returns the monitor level.
func (m *Mixer) HeadphoneVolume() float64 { return m.headphoneVol.Load() }

// SetHeadphoneMix sets the cue/program blend: 1 is all master, 0 all cue.
func (m *Mixer) SetHeadphoneMix(mix float64) {
	m.headphoneMix.Store(clamp(mix, 0, 1))
}

// HeadphoneMix returns the cue/program blend.
func (m *Mixer) HeadphoneMix() float64 { return m.headphoneMix.Load() }

// SetDeckCue routes deck A and/or B into the headphone cue source.
func (m *Mixer) SetDeckCue(a, b bool) {
	m.cueA.Store(a)
	m.cueB.Store(b)
}

// SetMasterCue routes the program sum into the headphone cue source,
// overriding the deck switches.
func (m *Mixer) SetMasterCue(on bool) { m.masterCue.Store(on) }

// SetLimiter updates the master limiter.
func (m *Mixer) SetLimiter(p dsp.LimiterParams) { m.limiter.SetParams(p) }

// Limiter returns the master limiter settings.
func (m *Mixer) Limiter() dsp.LimiterParams { return m.limiter.Params() }

// Levels returns the post-limiter master meter reading.
func (m *Mixer) Levels() dsp.Levels { return m.meter.Levels() }

// Spectrum returns the master-bus spectrum tap.
func (m *Mixer) Spectrum() *Spectrum { return m.spectrum }

// ProcessBlock renders one block. a, b, and mic are stereo interleaved
// inputs of the same length as master; headphone may be nil when no monitor
// output is attached. Audio callback only.
func (m *Mixer) ProcessBlock(a, b, mic, master, headphone []float32) {
	if m.pendDirty.Swap(false) {
		m.volRamp.SetTarget(m.pendTarget.Load(), int(m.pendFrames.Load()))
	}

	ga64, gb64 := m.crossfader.Gains()
	ga, gb := float32(ga64), float32(gb64)
	frames := len(master) / 2

	for i := 0; i < frames; i++ {
		vol := float32(m.volRamp.Next())
		for c := 0; c < 2; c++ {
			j := i*2 + c
			p := ga*a[j] + gb*b[j]
			m.program[j] = p
			master[j] = vol * (p + mic[j])
		}
	}
	m.volumeNow.Store(m.volRamp.Value())

	m.limiter.ProcessBlock(master)
	m.meter.ProcessBlock(master)
	m.spectrum.Feed(master)

	if headphone != nil {
		m.renderHeadphone(a, b, master, headphone)
	}
}

func (m *Mixer) renderHeadphone(a, b, master, headphone []float32) {
	cueA, cueB := m.cueA.Load(), m.cueB.Load()
	if m.masterCue.Load() || (!cueA && !cueB) {
		copy(m.cued, m.program[:len(master)])
	} else {
		for j := range master {
			var s float32
			if cueA {
				s += a[j]
			}
			if cueB {
				s += b[j]
			}
			m.cued[j] = s
		}
	}

	hpv := float32(m.headphoneVol.Load())
	mix := float32(m.headphoneMix.Load())
	for j := range master {
		headphone[j] = hpv * (mix*master[j] + (1-mix)*m.cued[j])
	}
}
