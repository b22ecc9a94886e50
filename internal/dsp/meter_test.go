// ABOUTME: Tests for level metering
// ABOUTME: Covers peak capture, RMS of known signals, and the noise gate
package dsp

import (
	"math"
	"testing"
)

func TestMeterPeak(t *testing.T) {
	m := NewMeter(48000)

	buf := make([]float32, 512)
	buf[100] = 0.9
	buf[101] = -0.7
	m.ProcessBlock(buf)

	lv := m.Levels()
	if lv.PeakLeft < 0.89 {
		t.Errorf("left peak not captured: %f", lv.PeakLeft)
	}
	if lv.PeakRight < 0.69 {
		t.Errorf("right peak not captured: %f", lv.PeakRight)
	}
}

func TestMeterRMSOfSine(t *testing.T) {
	m := NewMeter(48000)

	// Full-scale sine has RMS 1/sqrt(2).
	buf := sine(48000, 1.0, 440, 48000)
	m.ProcessBlock(buf)

	lv := m.Levels()
	want := 1 / math.Sqrt2
	if math.Abs(lv.RMSLeft-want) > 0.01 {
		t.Errorf("expected RMS ~%f, got %f", want, lv.RMSLeft)
	}
}

func TestMeterReset(t *testing.T) {
	m := NewMeter(48000)
	m.ProcessBlock(sine(1024, 1.0, 440, 48000))
	m.Reset()

	lv := m.Levels()
	if lv.PeakLeft != 0 || lv.RMSLeft != 0 {
		t.Errorf("reset did not clear meter: %+v", lv)
	}
}

func TestBlockRMS(t *testing.T) {
	if got := BlockRMS(nil); got != 0 {
		t.Errorf("empty block RMS should be 0, got %f", got)
	}

	buf := []float32{0.5, 0.5, 0.5, 0.5}
	if got := BlockRMS(buf); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestNoiseGateMutesQuietBlock(t *testing.T) {
	g := NewNoiseGate(-40)

	quiet := make([]float32, 256)
	for i := range quiet {
		quiet[i] = 0.001 // -60 dBFS
	}

	if !g.ProcessBlock(quiet) {
		t.Fatal("expected quiet block to be gated")
	}
	for i, s := range quiet {
		if s != 0 {
			t.Fatalf("sample %d not zeroed", i)
		}
	}
}

func TestNoiseGatePassesLoudBlock(t *testing.T) {
	g := NewNoiseGate(-40)

	loud := sine(128, 0.5, 440, 48000)
	orig := make([]float32, len(loud))
	copy(orig, loud)

	if g.ProcessBlock(loud) {
		t.Fatal("loud block should not be gated")
	}
	for i := range loud {
		if loud[i] != orig[i] {
			t.Fatalf("sample %d modified", i)
		}
	}
}

func TestNoiseGateDisabled(t *testing.T) {
	g := NewNoiseGate(-40)
	g.Enabled = false

	quiet := []float32{0.0001, 0.0001}
	if g.ProcessBlock(quiet) {
		t.Error("disabled gate should pass everything")
	}
}

func TestMeterLevelsDuringProcessing(t *testing.T) {
	m := NewMeter(48000)
	buf := sine(512, 0.8, 440, 48000)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = m.Levels()
		}
	}()
	for i := 0; i < 500; i++ {
		m.ProcessBlock(buf)
	}
	<-done

	if lv := m.Levels(); lv.PeakLeft < 0.7 {
		t.Errorf("peak = %f", lv.PeakLeft)
	}
}
