// ABOUTME: Sample-accurate linear gain ramp
// ABOUTME: One multiply-add per frame, retargetable without discontinuity
package dsp

// Ramp generates a linear parameter glide. Retargeting mid-ramp starts the new
// segment from the current value, so there is never a discontinuity.
type Ramp struct {
	current   float64
	target    float64
	step      float64
	remaining int
}

// NewRamp creates a ramp resting at value.
func NewRamp(value float64) *Ramp {
	return &Ramp{current: value, target: value}
}

// SetTarget glides from the current value to target over durationSamples.
// A zero duration jumps immediately.
func (r *Ramp) SetTarget(target float64, durationSamples int) {
	r.target = target
	if durationSamples <= 0 {
		r.current = target
		r.remaining = 0
		r.step = 0
		return
	}
	r.remaining = durationSamples
	r.step = (target - r.current) / float64(durationSamples)
}

// Next advances one sample and returns the new value. The final sample lands
// exactly on the target.
func (r *Ramp) Next() float64 {
	if r.remaining > 0 {
		r.remaining--
		if r.remaining == 0 {
			r.current = r.target
		} else {
			r.current += r.step
		}
	}
	return r.current
}

// Value returns the current value without advancing.
func (r *Ramp) Value() float64 {
	return r.current
}

// Target returns the ramp end point.
func (r *Ramp) Target() float64 {
	return r.target
}

// Active reports whether the ramp is still moving.
func (r *Ramp) Active() bool {
	return r.remaining > 0
}
