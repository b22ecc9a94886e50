// ABOUTME: One-knob DJ filter: low-pass sweep left, high-pass sweep right
// ABOUTME: Biquad-backed with block-boundary coefficient updates
package dsp

import (
	"math"

	"go.uber.org/atomic"
)

// Filter is the classic single-knob performance filter. Position in [-1, 1]:
// negative sweeps a low-pass down from 20 kHz toward 30 Hz, positive sweeps
// a high-pass up from 30 Hz, and the center detent is a clean bypass.
type Filter struct {
	sampleRate float64
	left       Biquad
	right      Biquad

	position float64 // active, audio-callback owned

	pending atomic.Float64
	dirty   atomic.Bool
	posNow  atomic.Float64
}

const (
	filterMinHz = 30.0
	filterMaxHz = 20000.0
	filterQ     = 0.8

	// Dead zone around center so the detent is exactly transparent.
	filterDetent = 0.02
)

// NewFilter creates a bypassed filter.
func NewFilter(sampleRate int) *Filter {
	f := &Filter{sampleRate: float64(sampleRate)}
	f.left.SetCoeffs(Unity())
	f.right.SetCoeffs(Unity())
	return f
}

// SetPosition stages the knob position, clamped to [-1, 1]. The new
// coefficients land at the next block boundary. Safe from any goroutine.
func (f *Filter) SetPosition(pos float64) {
	f.pending.Store(clamp(pos, -1, 1))
	f.dirty.Store(true)
}

// Position returns the knob position active as of the last rendered block.
func (f *Filter) Position() float64 { return f.posNow.Load() }

// Reset clears the filter memory, keeping the position.
func (f *Filter) Reset() {
	f.left.Reset()
	f.right.Reset()
}

func (f *Filter) applyPending() {
	f.position = f.pending.Load()
	f.posNow.Store(f.position)
	pos := f.position

	if math.Abs(pos) <= filterDetent {
		f.left.SetCoeffs(Unity())
		f.right.SetCoeffs(Unity())
		return
	}

	// Exponential sweep feels even across the travel.
	span := math.Log(filterMaxHz / filterMinHz)
	var coeffs BiquadCoeffs
	if pos < 0 {
		cutoff := filterMaxHz * math.Exp(span*(pos+filterDetent)/(1-filterDetent))
		coeffs = LowPass(f.sampleRate, cutoff, filterQ)
	} else {
		cutoff := filterMinHz * math.Exp(span*(pos-filterDetent)/(1-filterDetent))
		coeffs = HighPass(f.sampleRate, cutoff, filterQ)
	}
	f.left.SetCoeffs(coeffs)
	f.right.SetCoeffs(coeffs)
}

// ProcessBlock filters one interleaved stereo block in place. Audio
// callback only.
func (f *Filter) ProcessBlock(buf []float32) {
	if f.dirty.Swap(false) {
		f.applyPending()
	}
	if math.Abs(f.position) <= filterDetent {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = float32(f.left.Process(float64(buf[i])))
		buf[i+1] = float32(f.right.Process(float64(buf[i+1])))
	}
}
