// ABOUTME: Soft-knee master limiter
// ABOUTME: tanh shaping above threshold with a one-pole release envelope
package dsp

import (
	"math"

	"go.uber.org/atomic"
)

// LimiterParams configures the master bus limiter.
type LimiterParams struct {
	Enabled     bool
	ThresholdDB float64 // output ceiling, dBFS
	ReleaseMs   float64
}

// DefaultLimiterParams is the master bus default: -1 dBFS, 50 ms release.
func DefaultLimiterParams() LimiterParams {
	return LimiterParams{Enabled: true, ThresholdDB: -1, ReleaseMs: 50}
}

// Limiter bounds interleaved stereo audio so |out| never exceeds the linear
// threshold. Gain recovery after a peak follows the release time. Parameter
// changes are staged through an atomic pointer and picked up at the next
// block boundary.
type Limiter struct {
	sampleRate float64

	staged atomic.Pointer[LimiterParams]
	dirty  atomic.Bool

	// Audio-callback owned.
	params       LimiterParams
	thresholdLin float64
	releaseCoeff float64
	gain         float64 // current smoothed gain, <= 1
}

// NewLimiter creates a limiter with the given parameters.
func NewLimiter(sampleRate int, params LimiterParams) *Limiter {
	l := &Limiter{sampleRate: float64(sampleRate), gain: 1}
	l.SetParams(params)
	l.apply() // no callback running yet
	return l
}

// SetParams stages new parameters with clamping, applied at the next block
// boundary. Safe from any goroutine.
func (l *Limiter) SetParams(p LimiterParams) {
	p.ThresholdDB = clamp(p.ThresholdDB, -24, 0)
	p.ReleaseMs = clamp(p.ReleaseMs, 1, 5000)

	l.staged.Store(&p)
	l.dirty.Store(true)
}

// Params returns the configured (clamped) parameters, including a staged
// change that has not yet reached the audio callback.
func (l *Limiter) Params() LimiterParams {
	return *l.staged.Load()
}

// Threshold returns the linear ceiling of the configured parameters.
func (l *Limiter) Threshold() float64 {
	return math.Pow(10, l.Params().ThresholdDB/20)
}

func (l *Limiter) apply() {
	p := *l.staged.Load()
	l.params = p
	l.thresholdLin = math.Pow(10, p.ThresholdDB/20)
	l.releaseCoeff = math.Exp(-1 / (p.ReleaseMs / 1000 * l.sampleRate))
}

// Reset restores unity gain.
func (l *Limiter) Reset() {
	l.gain = 1
}

// ProcessBlock limits one block of interleaved stereo samples in place.
// Staged parameter changes are taken up here, before the first sample.
func (l *Limiter) ProcessBlock(buf []float32) {
	if l.dirty.Swap(false) {
		l.apply()
	}
	if !l.params.Enabled {
		return
	}

	th := l.thresholdLin
	for i := 0; i < len(buf); i += 2 {
		peak := math.Max(math.Abs(float64(buf[i])), math.Abs(float64(buf[i+1])))

		// Instant attack, smoothed release.
		if peak*l.gain > th {
			l.gain = th / peak
		} else {
			l.gain = l.releaseCoeff*l.gain + (1 - l.releaseCoeff)
			if l.gain > 1 {
				l.gain = 1
			}
		}

		for ch := 0; ch < 2; ch++ {
			s := float64(buf[i+ch]) * l.gain
			// Soft knee near the ceiling; tanh keeps |out| < th.
			if math.Abs(s) > th*0.891 { // knee starts 1 dB below threshold
				sign := 1.0
				if s < 0 {
					sign = -1
				}
				knee := th * 0.891
				s = sign * (knee + (th-knee)*math.Tanh((math.Abs(s)-knee)/(th-knee)))
			}
			buf[i+ch] = float32(s)
		}
	}
}
