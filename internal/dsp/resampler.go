// ABOUTME: Streaming sample rate converter
// ABOUTME: Linear interpolation over interleaved stereo float32 frames
package dsp

// Resampler converts interleaved stereo audio between fixed rates using
// linear interpolation. Used on the stream path when the broadcast rate
// differs from the engine rate; varispeed playback interpolates over the
// in-memory track instead (see internal/deck).
type Resampler struct {
	ratio float64 // input frames consumed per output frame

	// Last frame of the previous call, kept so interpolation is continuous
	// across block boundaries.
	prevL, prevR float32
	hasPrev      bool
	pos          float64 // position in frames; 0 is the carried prev frame
}

// NewResampler creates a converter from inputRate to outputRate.
func NewResampler(inputRate, outputRate int) *Resampler {
	return &Resampler{ratio: float64(inputRate) / float64(outputRate), pos: 1}
}

// Passthrough reports whether conversion is a no-op.
func (r *Resampler) Passthrough() bool {
	return r.ratio == 1
}

// Process converts interleaved stereo input and appends to out, returning the
// extended slice.
func (r *Resampler) Process(in []float32, out []float32) []float32 {
	if r.ratio == 1 {
		return append(out, in...)
	}

	frames := len(in) / 2
	if frames == 0 {
		return out
	}

	if !r.hasPrev {
		r.prevL, r.prevR = in[0], in[1]
		r.hasPrev = true
		r.pos = 1
	}

	// frameAt treats index 0 as the carried frame and 1..frames as in.
	frameAt := func(idx int) (float32, float32) {
		if idx <= 0 {
			return r.prevL, r.prevR
		}
		if idx > frames {
			idx = frames
		}
		return in[(idx-1)*2], in[(idx-1)*2+1]
	}

	for r.pos < float64(frames) {
		idx := int(r.pos)
		frac := float32(r.pos - float64(idx))

		l0, r0 := frameAt(idx)
		l1, r1 := frameAt(idx + 1)
		out = append(out, l0+(l1-l0)*frac, r0+(r1-r0)*frac)

		r.pos += r.ratio
	}

	r.pos -= float64(frames)
	r.prevL, r.prevR = in[(frames-1)*2], in[(frames-1)*2+1]
	return out
}

// Reset clears interpolation state.
func (r *Resampler) Reset() {
	r.pos = 1
	r.hasPrev = false
}
