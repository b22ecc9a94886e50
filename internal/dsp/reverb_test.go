// ABOUTME: Tests for the deck reverb send
// ABOUTME: Covers bypass, tail generation, reset, and mix staging
package dsp

import "testing"

func TestReverbBypassAtZeroMix(t *testing.T) {
	r := NewReverb(48000)

	in := sine(1024, 0.5, 440, 48000)
	orig := make([]float32, len(in))
	copy(orig, in)

	r.ProcessBlock(in)
	for i := range in {
		if in[i] != orig[i] {
			t.Fatalf("sample %d changed with mix 0", i)
		}
	}
}

func TestReverbProducesTail(t *testing.T) {
	r := NewReverb(48000)
	r.SetMix(0.5)

	// Excite with a burst, then feed silence: the tail should ring.
	burst := sine(2048, 0.8, 440, 48000)
	r.ProcessBlock(burst)

	silence := make([]float32, 4096)
	r.ProcessBlock(silence)
	if rmsOf(silence) == 0 {
		t.Error("no reverb tail after excitation")
	}
}

func TestReverbResetSilencesTail(t *testing.T) {
	r := NewReverb(48000)
	r.SetMix(1.0)
	r.ProcessBlock(sine(4096, 0.8, 440, 48000))
	r.Reset()

	silence := make([]float32, 4096)
	r.ProcessBlock(silence)
	if rmsOf(silence) != 0 {
		t.Errorf("tail survived reset: rms %f", rmsOf(silence))
	}
}

func TestReverbMixStagedAtBlockBoundary(t *testing.T) {
	r := NewReverb(48000)
	r.SetMix(0.4)
	if r.Mix() != 0 {
		t.Error("mix applied before a block was processed")
	}
	r.ProcessBlock(make([]float32, 64))
	if r.Mix() != 0.4 {
		t.Errorf("mix not applied: %f", r.Mix())
	}
}

func TestReverbSetMixDuringProcessing(t *testing.T) {
	r := NewReverb(48000)
	buf := make([]float32, 512)
	buf[0] = 0.5

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			r.SetMix(float64(i%100) / 100)
		}
	}()
	for i := 0; i < 500; i++ {
		r.ProcessBlock(buf)
	}
	<-done

	r.SetMix(0.3)
	r.ProcessBlock(buf)
	if r.Mix() != 0.3 {
		t.Errorf("mix = %f", r.Mix())
	}
}
