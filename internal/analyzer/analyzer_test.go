// ABOUTME: Tests for the offline waveform analyzer
// ABOUTME: Window sizing, band energies, normalization, dynamic range
package analyzer

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func monoSine(n int, amp, freq, sampleRate float64) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return buf
}

// writeTestWAV writes a 16-bit mono WAV.
func writeTestWAV(t *testing.T, path string, samples []float32, sampleRate int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32767)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	if _, err := AnalyzeSamples(nil, 48000, DefaultOptions()); err == nil {
		t.Error("empty buffer accepted")
	}
	if _, err := AnalyzeSamples(make([]float32, 100), 0, DefaultOptions()); err == nil {
		t.Error("zero sample rate accepted")
	}
}

func TestAnalyzeWindowSizing(t *testing.T) {
	// One second at 48 kHz with 2048 target points wants a tiny window,
	// which clamps up to the 512 minimum.
	w, err := AnalyzeSamples(monoSine(48000, 0.5, 440, 48000), 48000, DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}

	if w.WindowSize != 512 {
		t.Errorf("window = %d, want 512", w.WindowSize)
	}
	if w.HopSize != 128 {
		t.Errorf("hop = %d, want 128", w.HopSize)
	}
	if w.Resolution != 128.0/48000 {
		t.Errorf("resolution = %f", w.Resolution)
	}
	wantPoints := (48000-512)/128 + 1
	if len(w.Points) != wantPoints {
		t.Errorf("points = %d, want %d", len(w.Points), wantPoints)
	}
	if w.Duration != 1.0 {
		t.Errorf("duration = %f, want 1", w.Duration)
	}
}

func TestAnalyzeWindowClampAndPow2(t *testing.T) {
	opts := DefaultOptions()
	opts.TargetPoints = 4

	// 100000/4 = 25000 hop, window 50000 clamps to the 8192 maximum.
	w, err := AnalyzeSamples(make([]float32, 100000), 48000, opts)
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	if w.WindowSize != 8192 {
		t.Errorf("window = %d, want 8192", w.WindowSize)
	}

	// An in-range but odd size rounds up to the next power of two:
	// 6000 samples / 4 points = 1500 hop, window 3000 -> 4096.
	w, err = AnalyzeSamples(make([]float32, 6000), 48000, opts)
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	if w.WindowSize != 4096 {
		t.Errorf("window = %d, want 4096", w.WindowSize)
	}
}

func TestAnalyzeBandEnergies(t *testing.T) {
	cases := []struct {
		name string
		freq float64
		band func(p Point) float32
	}{
		{"low", 100, func(p Point) float32 { return p.Low }},
		{"mid", 1000, func(p Point) float32 { return p.Mid }},
		{"high", 8000, func(p Point) float32 { return p.High }},
	}

	// A large window keeps tone leakage well inside one band.
	opts := DefaultOptions()
	opts.Normalize = false
	opts.MinWindow = 4096
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := AnalyzeSamples(monoSine(48000, 0.5, tc.freq, 48000), 48000, opts)
			if err != nil {
				t.Fatalf("AnalyzeSamples: %v", err)
			}
			p := w.Points[len(w.Points)/2]
			if got := tc.band(p); got < 0.8 {
				t.Errorf("%s band share = %f for a %.0f Hz tone, want > 0.8", tc.name, got, tc.freq)
			}
			sum := p.Low + p.Mid + p.High
			if sum < 0.99 || sum > 1.01 {
				t.Errorf("band shares sum to %f, want 1", sum)
			}
			if p.FrequencyEnergy <= 0 || p.FrequencyEnergy > 1 {
				t.Errorf("dominant share = %f", p.FrequencyEnergy)
			}
		})
	}
}

func TestAnalyzeNormalization(t *testing.T) {
	samples := monoSine(48000, 0.5, 440, 48000)

	opts := DefaultOptions()
	opts.Normalize = false
	raw, err := AnalyzeSamples(samples, 48000, opts)
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	if raw.GlobalPeak < 0.45 || raw.GlobalPeak > 0.51 {
		t.Errorf("raw global peak = %f, want ~0.5", raw.GlobalPeak)
	}

	opts.Normalize = true
	norm, err := AnalyzeSamples(samples, 48000, opts)
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	if norm.GlobalPeak != 1 {
		t.Errorf("normalized global peak = %f, want 1", norm.GlobalPeak)
	}
	for i, p := range norm.Points {
		if p.Peak > 1.0001 {
			t.Fatalf("point %d peak = %f after normalization", i, p.Peak)
		}
	}
}

func TestAnalyzeDynamicRange(t *testing.T) {
	// Loud first half, 40 dB quieter second half.
	samples := append(
		monoSine(48000, 0.8, 440, 48000),
		monoSine(48000, 0.008, 440, 48000)...)

	w, err := AnalyzeSamples(samples, 48000, DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	if w.DynamicRange < 39 || w.DynamicRange > 42 {
		t.Errorf("dynamic range = %f dB, want ~40", w.DynamicRange)
	}
}

func TestAnalyzeSilence(t *testing.T) {
	w, err := AnalyzeSamples(make([]float32, 48000), 48000, DefaultOptions())
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	if w.GlobalPeak != 0 || w.DynamicRange != 0 {
		t.Errorf("silence peak/range = %f/%f", w.GlobalPeak, w.DynamicRange)
	}
}

func TestAnalyzeProgressReaches1(t *testing.T) {
	opts := DefaultOptions()
	var last float64
	var calls int
	opts.Progress = func(f float64) {
		if f < last {
			t.Errorf("progress went backward: %f after %f", f, last)
		}
		last = f
		calls++
	}

	if _, err := AnalyzeSamples(make([]float32, 200000), 48000, opts); err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	if last != 1 {
		t.Errorf("final progress = %f, want 1", last)
	}
	if calls < 2 {
		t.Errorf("progress called %d times", calls)
	}
}

func TestAnalyzeFileRoundTripsBitExact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	rng := rand.New(rand.NewSource(42))
	noise := make([]float32, 96000)
	for i := range noise {
		noise[i] = float32(rng.Float64()*1.6 - 0.8)
	}
	writeTestWAV(t, path, noise, 48000)

	w, err := Analyze(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if w.Path != path {
		t.Errorf("path = %q", w.Path)
	}
	if w.FileSize == 0 {
		t.Error("file size not recorded")
	}

	out := filepath.Join(t.TempDir(), "noise.osrwf")
	if err := w.WriteFile(out); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got.Duration != w.Duration || got.SampleRate != w.SampleRate ||
		got.Channels != w.Channels || got.TotalSamples != w.TotalSamples ||
		got.GlobalPeak != w.GlobalPeak || got.DynamicRange != w.DynamicRange ||
		got.WindowSize != w.WindowSize || got.HopSize != w.HopSize ||
		got.Resolution != w.Resolution {
		t.Error("header fields changed across the round trip")
	}
	if got.Path != w.Path {
		t.Errorf("path = %q, want %q", got.Path, w.Path)
	}
	if len(got.Points) != len(w.Points) {
		t.Fatalf("points = %d, want %d", len(got.Points), len(w.Points))
	}
	for i := range w.Points {
		if got.Points[i] != w.Points[i] {
			t.Fatalf("point %d changed: %+v vs %+v", i, got.Points[i], w.Points[i])
		}
	}
}
