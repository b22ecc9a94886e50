// ABOUTME: Master-bus spectrum tap with Hann window and binned power output
// ABOUTME: Fed from the audio callback, read lock-free via pointer swap
package mixer

import (
	sysatomic "sync/atomic"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"go.uber.org/atomic"
)

// DefaultSpectrumBins is the number of power bands published to readers.
const DefaultSpectrumBins = 32

// Spectrum computes binned power of the master sum. The audio callback feeds
// whole blocks; readers get an immutable snapshot so neither side waits on
// the other.
type Spectrum struct {
	enabled atomic.Bool
	bins    int
	hann    []float64
	mono    []float64    // callback-owned scratch
	out     [2][]float64 // callback-owned bin double buffer
	outIdx  int
	front   sysatomic.Pointer[[]float64]
}

// NewSpectrum creates a tap over blocks of blockFrames stereo frames,
// downmixed to bins power bands. The tap starts disabled.
func NewSpectrum(blockFrames, bins int) *Spectrum {
	if bins <= 0 {
		bins = DefaultSpectrumBins
	}
	s := &Spectrum{
		bins: bins,
		hann: window.Hann(blockFrames),
		mono: make([]float64, blockFrames),
	}
	s.out[0] = make([]float64, bins)
	s.out[1] = make([]float64, bins)
	empty := make([]float64, bins)
	s.front.Store(&empty)
	return s
}

// Enable turns the tap on or off. Disabled taps cost one atomic load per
// block in the callback.
func (s *Spectrum) Enable(on bool) { s.enabled.Store(on) }

// Enabled reports whether the tap is running.
func (s *Spectrum) Enabled() bool { return s.enabled.Load() }

// Bins returns the published band count.
func (s *Spectrum) Bins() int { return s.bins }

// Read returns a copy of the latest power snapshot, one value per bin. The
// published buffers are recycled by the callback, so callers get their own
// slice.
func (s *Spectrum) Read() []float64 {
	src := *s.front.Load()
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// Feed analyzes one stereo block. Audio callback only; a no-op while the tap
// is disabled or the block size does not match.
func (s *Spectrum) Feed(master []float32) {
	if !s.enabled.Load() {
		return
	}
	frames := len(master) / 2
	if frames != len(s.mono) {
		return
	}

	for i := 0; i < frames; i++ {
		m := float64(master[i*2]+master[i*2+1]) * 0.5
		s.mono[i] = m * s.hann[i]
	}

	// fft.FFTReal allocates its output internally; the bin buffers at least
	// are recycled between blocks.
	spec := fft.FFTReal(s.mono)
	half := len(spec) / 2

	idx := s.outIdx
	s.outIdx ^= 1
	out := s.out[idx]
	per := half / s.bins
	if per == 0 {
		per = 1
	}
	for b := 0; b < s.bins; b++ {
		lo := b * per
		hi := lo + per
		if b == s.bins-1 || hi > half {
			hi = half
		}
		var sum float64
		for k := lo; k < hi; k++ {
			re, im := real(spec[k]), imag(spec[k])
			sum += re*re + im*im
		}
		out[b] = 0
		if hi > lo {
			out[b] = sum / float64(hi-lo)
		}
	}
	s.front.Store(&s.out[idx])
}
