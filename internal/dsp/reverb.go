// ABOUTME: Compact Schroeder reverb for the deck send
// ABOUTME: Four combs plus two allpasses per channel, wet/dry mix knob
package dsp

import "go.uber.org/atomic"

// Comb and allpass delays in samples at 48 kHz, scaled to the engine rate.
// Mutually prime lengths keep the tail from ringing at one pitch.
var (
	combDelays    = []int{1557, 1617, 1491, 1422}
	allpassDelays = []int{225, 556}
)

const (
	combFeedback    = 0.805
	combDamp        = 0.2
	allpassFeedback = 0.5
)

type comb struct {
	buf      []float32
	idx      int
	feedback float32
	damp     float32
	store    float32
}

func (c *comb) process(x float32) float32 {
	out := c.buf[c.idx]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.idx] = x + c.store*c.feedback
	c.idx++
	if c.idx == len(c.buf) {
		c.idx = 0
	}
	return out
}

type allpass struct {
	buf []float32
	idx int
}

func (a *allpass) process(x float32) float32 {
	delayed := a.buf[a.idx]
	out := delayed - x
	a.buf[a.idx] = x + delayed*allpassFeedback
	a.idx++
	if a.idx == len(a.buf) {
		a.idx = 0
	}
	return out
}

// Reverb is a per-deck send effect. Mix 0 is a bit-exact bypass.
type Reverb struct {
	combs     [2][]comb
	allpasses [2][]allpass

	mix float64 // active, audio-callback owned

	pending atomic.Float64
	dirty   atomic.Bool
	mixNow  atomic.Float64
}

// NewReverb creates a bypassed reverb sized for the engine sample rate.
func NewReverb(sampleRate int) *Reverb {
	r := &Reverb{}
	scale := float64(sampleRate) / 48000

	for ch := 0; ch < 2; ch++ {
		// Slight right-channel detune widens the tail.
		spread := ch * 23
		for _, d := range combDelays {
			n := int(float64(d)*scale) + spread
			r.combs[ch] = append(r.combs[ch], comb{
				buf:      make([]float32, n),
				feedback: combFeedback,
				damp:     combDamp,
			})
		}
		for _, d := range allpassDelays {
			n := int(float64(d)*scale) + spread
			r.allpasses[ch] = append(r.allpasses[ch], allpass{buf: make([]float32, n)})
		}
	}
	return r
}

// SetMix stages the wet/dry mix in [0, 1], applied at the next block. Safe
// from any goroutine.
func (r *Reverb) SetMix(mix float64) {
	r.pending.Store(clamp(mix, 0, 1))
	r.dirty.Store(true)
}

// Mix returns the wet/dry mix active as of the last rendered block.
func (r *Reverb) Mix() float64 { return r.mixNow.Load() }

// Reset silences the reverb tail.
func (r *Reverb) Reset() {
	for ch := 0; ch < 2; ch++ {
		for i := range r.combs[ch] {
			c := &r.combs[ch][i]
			for j := range c.buf {
				c.buf[j] = 0
			}
			c.store = 0
		}
		for i := range r.allpasses[ch] {
			a := &r.allpasses[ch][i]
			for j := range a.buf {
				a.buf[j] = 0
			}
		}
	}
}

// ProcessBlock mixes the reverb tail into one interleaved stereo block in
// place. Audio callback only.
func (r *Reverb) ProcessBlock(buf []float32) {
	if r.dirty.Swap(false) {
		r.mix = r.pending.Load()
		r.mixNow.Store(r.mix)
	}
	if r.mix == 0 {
		return
	}

	wet := float32(r.mix)
	dry := float32(1 - r.mix)

	for i := 0; i+1 < len(buf); i += 2 {
		for ch := 0; ch < 2; ch++ {
			x := buf[i+ch]
			var sum float32
			for k := range r.combs[ch] {
				sum += r.combs[ch][k].process(x)
			}
			sum *= 0.25
			for k := range r.allpasses[ch] {
				sum = r.allpasses[ch][k].process(sum)
			}
			buf[i+ch] = dry*x + wet*sum
		}
	}
}
