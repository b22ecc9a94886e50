// ABOUTME: Offline waveform analyzer: windowed peak/RMS plus FFT band energies
// ABOUTME: Produces the waveform record consumed by UIs and the OSRWF exporter
package analyzer

import (
	"context"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/onestopradio/radiocore-go/pkg/audio"
	"github.com/onestopradio/radiocore-go/pkg/audio/decode"
)

// Options configures one analysis run. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	TargetPoints int // desired number of waveform points
	MinWindow    int // FFT window clamp, samples
	MaxWindow    int

	FrequencyAnalysis bool
	Normalize         bool // scale peaks/RMS so the global peak is 1

	LowCutoffHz float64 // low band upper edge
	MidCutoffHz float64 // mid band upper edge

	// Progress, when set, receives fractions in [0, 1] every 100 windows
	// and once at completion.
	Progress func(fraction float64)
}

// DefaultOptions returns the analyzer defaults.
func DefaultOptions() Options {
	return Options{
		TargetPoints:      2048,
		MinWindow:         512,
		MaxWindow:         8192,
		FrequencyAnalysis: true,
		Normalize:         true,
		LowCutoffHz:       250,
		MidCutoffHz:       4000,
	}
}

func (o *Options) fill() {
	if o.TargetPoints <= 0 {
		o.TargetPoints = 2048
	}
	if o.MinWindow <= 0 {
		o.MinWindow = 512
	}
	if o.MaxWindow <= 0 {
		o.MaxWindow = 8192
	}
	if o.LowCutoffHz <= 0 {
		o.LowCutoffHz = 250
	}
	if o.MidCutoffHz <= 0 {
		o.MidCutoffHz = 4000
	}
}

// Point is one analysis window.
type Point struct {
	Amplitude       float32 // window RMS
	Peak            float32 // window max |x|
	FrequencyEnergy float32 // dominant bin's share of total energy
	Low             float32 // band energies, normalized by total energy
	Mid             float32
	High            float32
	Timestamp       float64 // window start, seconds
	SampleIndex     uint32  // window start, samples
}

// Waveform is one complete analysis result.
type Waveform struct {
	Points       []Point
	Duration     float64
	SampleRate   uint32
	Channels     uint32
	TotalSamples uint32
	GlobalPeak   float32
	DynamicRange float32 // dB over non-silent windows
	Path         string
	FileSize     int64

	WindowSize uint32
	HopSize    uint32
	Resolution float64 // seconds per point
}

// Analyze decodes path in full and analyzes the mono downmix.
func Analyze(path string, opts Options) (*Waveform, error) {
	return AnalyzeContext(context.Background(), path, opts)
}

// AnalyzeContext is Analyze with cancellation.
func AnalyzeContext(ctx context.Context, path string, opts Options) (*Waveform, error) {
	track, err := decode.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}

	mono := audio.Downmix(track.Samples, track.Format.Channels)
	w, err := analyzeSamples(ctx, mono, track.Format.SampleRate, opts)
	if err != nil {
		return nil, err
	}
	w.Path = path
	w.FileSize = track.FileSize
	return w, nil
}

// AnalyzeSamples analyzes a pre-loaded mono buffer.
func AnalyzeSamples(samples []float32, sampleRate int, opts Options) (*Waveform, error) {
	return analyzeSamples(context.Background(), samples, sampleRate, opts)
}

func analyzeSamples(ctx context.Context, samples []float32, sampleRate int, opts Options) (*Waveform, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("analyze: empty input")
	}
	opts.fill()

	windowSize := windowSizeFor(len(samples), &opts)
	hopSize := windowSize / 4

	w := &Waveform{
		Duration:     float64(len(samples)) / float64(sampleRate),
		SampleRate:   uint32(sampleRate),
		Channels:     1,
		TotalSamples: uint32(len(samples)),
		WindowSize:   uint32(windowSize),
		HopSize:      uint32(hopSize),
		Resolution:   float64(hopSize) / float64(sampleRate),
	}

	hann := window.Hann(windowSize)
	scratch := make([]float64, windowSize)

	var globalPeak float32
	for i := 0; i+windowSize <= len(samples); i += hopSize {
		if len(w.Points)%100 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			if opts.Progress != nil {
				opts.Progress(math.Min(float64(i+windowSize)/float64(len(samples)), 1))
			}
		}

		win := samples[i : i+windowSize]
		p := Point{
			Timestamp:   float64(i) / float64(sampleRate),
			SampleIndex: uint32(i),
			Amplitude:   windowRMS(win),
			Peak:        windowPeak(win),
		}
		if opts.FrequencyAnalysis {
			p.Low, p.Mid, p.High, p.FrequencyEnergy =
				bandEnergies(win, hann, scratch, sampleRate, opts.LowCutoffHz, opts.MidCutoffHz)
		}
		w.Points = append(w.Points, p)
		if p.Peak > globalPeak {
			globalPeak = p.Peak
		}
	}
	w.GlobalPeak = globalPeak

	if opts.Normalize {
		w.normalize()
	}
	w.DynamicRange = w.dynamicRange()

	if opts.Progress != nil {
		opts.Progress(1)
	}
	return w, nil
}

// windowSizeFor picks a window so overlapping hops yield roughly the target
// point count, clamped and rounded up to a power of two.
func windowSizeFor(totalSamples int, opts *Options) int {
	hop := totalSamples / opts.TargetPoints
	size := hop * 2
	if size < opts.MinWindow {
		size = opts.MinWindow
	}
	if size > opts.MaxWindow {
		size = opts.MaxWindow
	}
	pow2 := 1
	for pow2 < size {
		pow2 <<= 1
	}
	return pow2
}

func windowRMS(win []float32) float32 {
	var sum float64
	for _, s := range win {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(win))))
}

func windowPeak(win []float32) float32 {
	var peak float32
	for _, s := range win {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// bandEnergies Hann-windows one frame, runs a real FFT, and buckets bin
// energies into low/mid/high shares of the total. The DC bin is skipped.
func bandEnergies(win []float32, hann, scratch []float64, sampleRate int, lowCut, midCut float64) (low, mid, high, dominant float32) {
	for i, s := range win {
		scratch[i] = float64(s) * hann[i]
	}
	spectrum := fft.FFTReal(scratch)

	binSize := float64(sampleRate) / float64(len(win))
	numBins := len(win)/2 + 1
	lowBin := int(lowCut / binSize)
	midBin := int(midCut / binSize)
	if lowBin > numBins-1 {
		lowBin = numBins - 1
	}
	if midBin > numBins-1 {
		midBin = numBins - 1
	}

	var lowE, midE, highE, totalE, maxBinE float64
	for i := 1; i < numBins; i++ {
		re, im := real(spectrum[i]), imag(spectrum[i])
		energy := re*re + im*im
		totalE += energy
		if energy > maxBinE {
			maxBinE = energy
		}
		switch {
		case i < lowBin:
			lowE += energy
		case i < midBin:
			midE += energy
		default:
			highE += energy
		}
	}
	if totalE == 0 {
		return 0, 0, 0, 0
	}
	return float32(lowE / totalE), float32(midE / totalE),
		float32(highE / totalE), float32(maxBinE / totalE)
}

func (w *Waveform) normalize() {
	if len(w.Points) == 0 || w.GlobalPeak <= 0 {
		return
	}
	scale := 1 / w.GlobalPeak
	for i := range w.Points {
		w.Points[i].Amplitude *= scale
		w.Points[i].Peak *= scale
	}
	w.GlobalPeak = 1
}

// dynamicRange is the dB spread of window RMS over non-silent windows.
func (w *Waveform) dynamicRange() float32 {
	minRMS := float32(math.MaxFloat32)
	var maxRMS float32
	for _, p := range w.Points {
		if p.Amplitude <= 0 {
			continue
		}
		if p.Amplitude < minRMS {
			minRMS = p.Amplitude
		}
		if p.Amplitude > maxRMS {
			maxRMS = p.Amplitude
		}
	}
	if maxRMS <= 0 || minRMS == math.MaxFloat32 {
		return 0
	}
	return float32(20 * math.Log10(float64(maxRMS)/float64(minRMS)))
}
