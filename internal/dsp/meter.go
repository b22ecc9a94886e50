// ABOUTME: Peak and RMS level metering
// ABOUTME: Exponentially decaying peaks and windowed RMS per channel
package dsp

import (
	"math"

	"go.uber.org/atomic"
)

// Levels is one meter reading for a stereo bus.
type Levels struct {
	PeakLeft  float64
	PeakRight float64
	RMSLeft   float64
	RMSRight  float64
}

// Meter tracks stereo peak (with exponential decay) and windowed RMS levels.
// The accumulator fields belong to the audio callback; readings are published
// through atomic mirrors once per block so Levels is safe from any goroutine.
type Meter struct {
	peakDecay float64
	peakL     float64
	peakR     float64

	window int
	sumSqL float64
	sumSqR float64
	count  int
	rmsL   float64
	rmsR   float64

	outPeakL atomic.Float64
	outPeakR atomic.Float64
	outRMSL  atomic.Float64
	outRMSR  atomic.Float64
}

// NewMeter creates a meter. The RMS window and peak decay are expressed in
// samples per channel.
func NewMeter(sampleRate int) *Meter {
	// ~300 ms RMS window, peak falls ~20 dB/s.
	window := sampleRate * 3 / 10
	if window < 1 {
		window = 1
	}
	return &Meter{
		peakDecay: math.Pow(10, -20.0/20.0/float64(sampleRate)),
		window:    window,
	}
}

// ProcessBlock folds one block of interleaved stereo samples into the meter.
func (m *Meter) ProcessBlock(buf []float32) {
	for i := 0; i < len(buf); i += 2 {
		l := math.Abs(float64(buf[i]))
		r := math.Abs(float64(buf[i+1]))

		m.peakL *= m.peakDecay
		m.peakR *= m.peakDecay
		if l > m.peakL {
			m.peakL = l
		}
		if r > m.peakR {
			m.peakR = r
		}

		m.sumSqL += l * l
		m.sumSqR += r * r
		m.count++
		if m.count >= m.window {
			m.rmsL = math.Sqrt(m.sumSqL / float64(m.count))
			m.rmsR = math.Sqrt(m.sumSqR / float64(m.count))
			m.sumSqL, m.sumSqR, m.count = 0, 0, 0
		}
	}
	m.publish()
}

// publish mirrors the reading into the atomics. RMS holds the last full
// window; before the first window completes it reports the running value.
func (m *Meter) publish() {
	rmsL, rmsR := m.rmsL, m.rmsR
	if rmsL == 0 && m.count > 0 {
		rmsL = math.Sqrt(m.sumSqL / float64(m.count))
		rmsR = math.Sqrt(m.sumSqR / float64(m.count))
	}
	m.outPeakL.Store(m.peakL)
	m.outPeakR.Store(m.peakR)
	m.outRMSL.Store(rmsL)
	m.outRMSR.Store(rmsR)
}

// Levels returns the reading as of the last processed block. Safe from any
// goroutine.
func (m *Meter) Levels() Levels {
	return Levels{
		PeakLeft:  m.outPeakL.Load(),
		PeakRight: m.outPeakR.Load(),
		RMSLeft:   m.outRMSL.Load(),
		RMSRight:  m.outRMSR.Load(),
	}
}

// Reset zeroes the meter. Call only while no block is being processed.
func (m *Meter) Reset() {
	m.peakL, m.peakR = 0, 0
	m.sumSqL, m.sumSqR, m.count = 0, 0, 0
	m.rmsL, m.rmsR = 0, 0
	m.outPeakL.Store(0)
	m.outPeakR.Store(0)
	m.outRMSL.Store(0)
	m.outRMSR.Store(0)
}

// BlockRMS computes the RMS of an interleaved block across all channels.
func BlockRMS(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}
