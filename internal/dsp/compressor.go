// ABOUTME: Feed-forward dynamics compressor
// ABOUTME: Log-domain detector with one-pole attack/release envelopes
package dsp

import (
	"math"

	"go.uber.org/atomic"
)

// CompressorParams configures a channel compressor.
type CompressorParams struct {
	Enabled      bool
	ThresholdDB  float64 // level above which gain reduction starts
	Ratio        float64 // input/output slope above threshold, >= 1
	AttackMs     float64
	ReleaseMs    float64
	MakeupGainDB float64
}

// DefaultCompressorParams mirrors the channel-strip defaults.
func DefaultCompressorParams() CompressorParams {
	return CompressorParams{
		Enabled:      false,
		ThresholdDB:  -18,
		Ratio:        4,
		AttackMs:     10,
		ReleaseMs:    100,
		MakeupGainDB: 0,
	}
}

// Compressor applies feed-forward compression to interleaved stereo audio
// using a mono (max of channels) detector. Parameter changes are staged
// through an atomic pointer and picked up at the next block boundary.
type Compressor struct {
	sampleRate float64

	staged atomic.Pointer[CompressorParams]
	dirty  atomic.Bool

	// Audio-callback owned.
	params       CompressorParams
	attackCoeff  float64
	releaseCoeff float64
	envelopeDB   float64 // smoothed gain reduction, dB (>= 0)
	makeupLin    float64
}

// NewCompressor creates a compressor with the given parameters.
func NewCompressor(sampleRate int, params CompressorParams) *Compressor {
	c := &Compressor{sampleRate: float64(sampleRate)}
	c.SetParams(params)
	c.apply() // no callback running yet
	return c
}

// SetParams stages new parameters with clamping, applied at the next block
// boundary. Safe from any goroutine.
func (c *Compressor) SetParams(p CompressorParams) {
	p.ThresholdDB = clamp(p.ThresholdDB, -60, 0)
	p.Ratio = clamp(p.Ratio, 1, 100)
	p.AttackMs = clamp(p.AttackMs, 0.1, 1000)
	p.ReleaseMs = clamp(p.ReleaseMs, 1, 5000)
	p.MakeupGainDB = clamp(p.MakeupGainDB, 0, 24)

	c.staged.Store(&p)
	c.dirty.Store(true)
}

// Params returns the configured (clamped) parameters, including a staged
// change that has not yet reached the audio callback.
func (c *Compressor) Params() CompressorParams {
	return *c.staged.Load()
}

func (c *Compressor) apply() {
	p := *c.staged.Load()
	c.params = p
	c.attackCoeff = math.Exp(-1 / (p.AttackMs / 1000 * c.sampleRate))
	c.releaseCoeff = math.Exp(-1 / (p.ReleaseMs / 1000 * c.sampleRate))
	c.makeupLin = math.Pow(10, p.MakeupGainDB/20)
}

// Reset clears the detector envelope.
func (c *Compressor) Reset() {
	c.envelopeDB = 0
}

// ProcessBlock compresses one block of interleaved stereo samples in place.
// Staged parameter changes are taken up here, before the first sample.
func (c *Compressor) ProcessBlock(buf []float32) {
	if c.dirty.Swap(false) {
		c.apply()
	}
	if !c.params.Enabled {
		return
	}

	for i := 0; i < len(buf); i += 2 {
		l := float64(buf[i])
		r := float64(buf[i+1])

		// Log-domain detector on the louder channel.
		level := math.Max(math.Abs(l), math.Abs(r))
		levelDB := -96.0
		if level > 1e-5 {
			levelDB = 20 * math.Log10(level)
		}

		over := levelDB - c.params.ThresholdDB
		var targetDB float64
		if over > 0 {
			targetDB = over * (1 - 1/c.params.Ratio)
		}

		if targetDB > c.envelopeDB {
			c.envelopeDB = c.attackCoeff*c.envelopeDB + (1-c.attackCoeff)*targetDB
		} else {
			c.envelopeDB = c.releaseCoeff*c.envelopeDB + (1-c.releaseCoeff)*targetDB
		}

		gain := math.Pow(10, -c.envelopeDB/20) * c.makeupLin
		buf[i] = float32(l * gain)
		buf[i+1] = float32(r * gain)
	}
}
