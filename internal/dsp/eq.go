// ABOUTME: 3-band channel EQ
// ABOUTME: Low shelf, mid peak, high shelf with block-boundary coefficient swaps
package dsp

import "go.uber.org/atomic"

const (
	EQLowFreq  = 200.0
	EQMidFreq  = 1000.0
	EQHighFreq = 8000.0
	EQMidQ     = 0.7

	EQMinGainDB = -20.0
	EQMaxGainDB = 20.0
)

// ThreeBandEQ filters interleaved stereo audio through shelving low/high bands
// and a peaking mid band. Gain changes are staged through atomics and only
// take effect at the next block boundary so coefficients never change
// mid-block and setters stay safe from any goroutine.
type ThreeBandEQ struct {
	sampleRate float64

	// [band][channel]
	filters [3][2]Biquad

	// Active gains, audio-callback owned.
	lowDB, midDB, highDB float64

	// Control-plane staging plus snapshot mirrors of the active gains.
	pendLow, pendMid, pendHigh atomic.Float64
	dirty                      atomic.Bool
	lowNow, midNow, highNow    atomic.Float64
}

// NewThreeBandEQ creates a flat EQ.
func NewThreeBandEQ(sampleRate int) *ThreeBandEQ {
	eq := &ThreeBandEQ{sampleRate: float64(sampleRate)}
	eq.apply(0, 0, 0)
	return eq
}

// SetGains stages new band gains in dB. Values are clamped to [-20, +20].
// Safe from any goroutine.
func (eq *ThreeBandEQ) SetGains(lowDB, midDB, highDB float64) {
	eq.pendLow.Store(clamp(lowDB, EQMinGainDB, EQMaxGainDB))
	eq.pendMid.Store(clamp(midDB, EQMinGainDB, EQMaxGainDB))
	eq.pendHigh.Store(clamp(highDB, EQMinGainDB, EQMaxGainDB))
	eq.dirty.Store(true)
}

// Gains returns the band gains active as of the last rendered block.
func (eq *ThreeBandEQ) Gains() (lowDB, midDB, highDB float64) {
	return eq.lowNow.Load(), eq.midNow.Load(), eq.highNow.Load()
}

func (eq *ThreeBandEQ) apply(lowDB, midDB, highDB float64) {
	eq.lowDB, eq.midDB, eq.highDB = lowDB, midDB, highDB
	eq.lowNow.Store(lowDB)
	eq.midNow.Store(midDB)
	eq.highNow.Store(highDB)

	low := LowShelf(eq.sampleRate, EQLowFreq, lowDB)
	mid := Peaking(eq.sampleRate, EQMidFreq, midDB, EQMidQ)
	high := HighShelf(eq.sampleRate, EQHighFreq, highDB)

	for ch := 0; ch < 2; ch++ {
		eq.filters[0][ch].SetCoeffs(low)
		eq.filters[1][ch].SetCoeffs(mid)
		eq.filters[2][ch].SetCoeffs(high)
	}
}

// ProcessBlock filters one block of interleaved stereo samples in place.
// Pending gain changes are taken up here, before the first sample.
func (eq *ThreeBandEQ) ProcessBlock(buf []float32) {
	if eq.dirty.Swap(false) {
		eq.apply(eq.pendLow.Load(), eq.pendMid.Load(), eq.pendHigh.Load())
	}

	if eq.lowDB == 0 && eq.midDB == 0 && eq.highDB == 0 {
		return
	}

	for i := 0; i < len(buf); i += 2 {
		for ch := 0; ch < 2; ch++ {
			s := float64(buf[i+ch])
			s = eq.filters[0][ch].Process(s)
			s = eq.filters[1][ch].Process(s)
			s = eq.filters[2][ch].Process(s)
			buf[i+ch] = float32(s)
		}
	}
}

// Reset clears all filter state.
func (eq *ThreeBandEQ) Reset() {
	for b := range eq.filters {
		for ch := range eq.filters[b] {
			eq.filters[b][ch].Reset()
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
