// ABOUTME: Audio type definitions
// ABOUTME: Defines engine formats, decoded tracks, and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// Engine defaults
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	DefaultBlockSize  = 1024

	// Meter floor used when converting linear levels to dB
	MeterFloorDB = -60.0
)

// Format describes a PCM stream format.
type Format struct {
	SampleRate int
	Channels   int
}

// Track is a fully decoded audio file: interleaved float32 samples in [-1, 1]
// at the file's native sample rate.
type Track struct {
	Path     string
	Format   Format
	Samples  []float32 // interleaved
	FileSize int64
	Title    string
	Artist   string
	Gain     float64 // static per-track normalization factor, 1.0 = unity
}

// Frames returns the number of sample frames in the track.
func (t *Track) Frames() int {
	if t.Format.Channels == 0 {
		return 0
	}
	return len(t.Samples) / t.Format.Channels
}

// Duration returns the track length as wall time.
func (t *Track) Duration() time.Duration {
	if t.Format.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(t.Frames()) / float64(t.Format.SampleRate) * float64(time.Second))
}

// LinearToDB converts a linear amplitude to decibels with a fixed floor.
func LinearToDB(v float64) float64 {
	if v <= 0 {
		return MeterFloorDB
	}
	db := 20 * math.Log10(v)
	if db < MeterFloorDB {
		return MeterFloorDB
	}
	return db
}

// DBToLinear converts decibels to a linear amplitude.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// SampleToInt16 converts a float32 sample in [-1, 1] to int16 with clipping.
func SampleToInt16(s float32) int16 {
	v := float64(s) * 32767.0
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SampleFromInt16 converts an int16 sample to float32 in [-1, 1].
func SampleFromInt16(s int16) float32 {
	return float32(s) / 32768.0
}

// Downmix averages interleaved multi-channel samples into mono.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
