// ABOUTME: Block-granular noise gate
// ABOUTME: Zeroes whole blocks whose RMS falls below a dB threshold
package dsp

import "math"

// NoiseGate mutes blocks whose RMS is below the threshold. Gating is per block
// rather than per sample: speech blocks are either passed or silenced whole,
// which avoids clicks at sample granularity.
type NoiseGate struct {
	Enabled     bool
	ThresholdDB float64
}

// NewNoiseGate creates a gate with the given threshold in dBFS.
func NewNoiseGate(thresholdDB float64) *NoiseGate {
	return &NoiseGate{Enabled: true, ThresholdDB: thresholdDB}
}

// ProcessBlock zeroes buf if its RMS is under the threshold. Returns true if
// the block was gated.
func (g *NoiseGate) ProcessBlock(buf []float32) bool {
	if !g.Enabled || len(buf) == 0 {
		return false
	}

	rms := BlockRMS(buf)
	rmsDB := -120.0
	if rms > 0 {
		rmsDB = linearToDB(rms)
	}

	if rmsDB < g.ThresholdDB {
		for i := range buf {
			buf[i] = 0
		}
		return true
	}
	return false
}

func linearToDB(v float64) float64 {
	return 20 * math.Log10(v)
}
