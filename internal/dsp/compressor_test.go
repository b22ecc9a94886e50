// ABOUTME: Tests for the channel compressor
// ABOUTME: Covers gain reduction above threshold and bypass behavior
package dsp

import (
	"math"
	"testing"
)

func sine(n int, amp, freq, sampleRate float64) []float32 {
	buf := make([]float32, n*2)
	for i := 0; i < n; i++ {
		s := float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
		buf[i*2] = s
		buf[i*2+1] = s
	}
	return buf
}

func TestCompressorDisabledPassthrough(t *testing.T) {
	c := NewCompressor(48000, DefaultCompressorParams())

	buf := sine(256, 0.9, 440, 48000)
	orig := make([]float32, len(buf))
	copy(orig, buf)

	c.ProcessBlock(buf)
	for i := range buf {
		if buf[i] != orig[i] {
			t.Fatal("disabled compressor modified the signal")
		}
	}
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	p := DefaultCompressorParams()
	p.Enabled = true
	p.ThresholdDB = -20
	p.Ratio = 8
	p.AttackMs = 1
	p.ReleaseMs = 50
	c := NewCompressor(48000, p)

	buf := sine(48000, 0.9, 440, 48000) // ~-1 dBFS, way over threshold
	inRMS := BlockRMS(buf)
	c.ProcessBlock(buf)
	outRMS := BlockRMS(buf)

	if outRMS >= inRMS*0.7 {
		t.Errorf("expected clear gain reduction: in %f out %f", inRMS, outRMS)
	}
}

func TestCompressorLeavesQuietSignal(t *testing.T) {
	p := DefaultCompressorParams()
	p.Enabled = true
	p.ThresholdDB = -10
	c := NewCompressor(48000, p)

	buf := sine(4800, 0.05, 440, 48000) // ~-26 dBFS, far below threshold
	inRMS := BlockRMS(buf)
	c.ProcessBlock(buf)
	outRMS := BlockRMS(buf)

	if math.Abs(outRMS-inRMS)/inRMS > 0.05 {
		t.Errorf("quiet signal should pass nearly unchanged: in %f out %f", inRMS, outRMS)
	}
}

func TestCompressorParamClamping(t *testing.T) {
	c := NewCompressor(48000, CompressorParams{
		Enabled:     true,
		ThresholdDB: -200,
		Ratio:       0.1,
		AttackMs:    -5,
		ReleaseMs:   0,
	})

	p := c.Params()
	if p.ThresholdDB != -60 {
		t.Errorf("threshold clamp: %f", p.ThresholdDB)
	}
	if p.Ratio != 1 {
		t.Errorf("ratio clamp: %f", p.Ratio)
	}
	if p.AttackMs != 0.1 {
		t.Errorf("attack clamp: %f", p.AttackMs)
	}
	if p.ReleaseMs != 1 {
		t.Errorf("release clamp: %f", p.ReleaseMs)
	}
}

func TestCompressorSetParamsDuringProcessing(t *testing.T) {
	c := NewCompressor(48000, DefaultCompressorParams())
	buf := sine(512, 0.9, 440, 48000)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p := DefaultCompressorParams()
		p.Enabled = true
		for i := 0; i < 500; i++ {
			p.ThresholdDB = -float64(i%30) - 6
			c.SetParams(p)
		}
	}()
	for i := 0; i < 500; i++ {
		c.ProcessBlock(buf)
	}
	<-done

	p := DefaultCompressorParams()
	p.ThresholdDB = -12
	c.SetParams(p)
	if got := c.Params(); got.ThresholdDB != -12 {
		t.Errorf("threshold = %f", got.ThresholdDB)
	}
}
