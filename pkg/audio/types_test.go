// ABOUTME: Tests for audio type helpers
// ABOUTME: Covers sample conversions, dB mapping, and downmixing
package audio

import (
	"math"
	"testing"
	"time"
)

func TestSampleInt16RoundTrip(t *testing.T) {
	for _, v := range []int16{-32768, -1, 0, 1, 12345, 32767} {
		f := SampleFromInt16(v)
		if f < -1.0 || f > 1.0 {
			t.Errorf("SampleFromInt16(%d) = %f out of range", v, f)
		}
	}
}

func TestSampleToInt16Clips(t *testing.T) {
	if got := SampleToInt16(2.0); got != 32767 {
		t.Errorf("expected clip to 32767, got %d", got)
	}
	if got := SampleToInt16(-2.0); got != -32768 {
		t.Errorf("expected clip to -32768, got %d", got)
	}
	if got := SampleToInt16(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestLinearToDB(t *testing.T) {
	if got := LinearToDB(1.0); math.Abs(got) > 1e-9 {
		t.Errorf("expected 0 dB for unity, got %f", got)
	}
	if got := LinearToDB(0); got != MeterFloorDB {
		t.Errorf("expected floor for zero, got %f", got)
	}
	if got := LinearToDB(1e-9); got != MeterFloorDB {
		t.Errorf("expected floor for tiny value, got %f", got)
	}
	if got := LinearToDB(0.5); math.Abs(got-(-6.0206)) > 0.001 {
		t.Errorf("expected about -6.02 dB, got %f", got)
	}
}

func TestDBToLinear(t *testing.T) {
	if got := DBToLinear(0); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 1.0, got %f", got)
	}
	if got := DBToLinear(-20); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("expected 0.1, got %f", got)
	}
}

func TestTrackFramesAndDuration(t *testing.T) {
	track := &Track{
		Format:  Format{SampleRate: 48000, Channels: 2},
		Samples: make([]float32, 96000), // 1 second stereo
	}

	if got := track.Frames(); got != 48000 {
		t.Errorf("expected 48000 frames, got %d", got)
	}
	if got := track.Duration(); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
}

func TestDownmix(t *testing.T) {
	stereo := []float32{1.0, 0.0, 0.5, 0.5, -1.0, 1.0}
	mono := Downmix(stereo, 2)

	want := []float32{0.5, 0.5, 0.0}
	if len(mono) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(mono))
	}
	for i := range want {
		if math.Abs(float64(mono[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: expected %f, got %f", i, want[i], mono[i])
		}
	}
}
