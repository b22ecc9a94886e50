// ABOUTME: Crossfader position/curve state and deck gain law
// ABOUTME: Linear-to-quadratic shape with a swappable curve function
package mixer

import (
	sysatomic "sync/atomic"

	"go.uber.org/atomic"
)

// CurveFunc maps a normalized fader travel u in [0, 1] and a curve parameter
// c in [0, 1] to a gain in [0, 1]. It must satisfy f(0, c) = 0 and
// f(1, c) = 1 for every c.
type CurveFunc func(u, c float64) float64

// Shape is the default crossfader law: linear at c = 0, quadratic at c = 1.
func Shape(u, c float64) float64 {
	return u * ((1 - c) + c*u)
}

// Crossfader holds the fader position in [-1, +1] (-1 = all A, +1 = all B)
// and the curve parameter in [0, 1].
type Crossfader struct {
	position atomic.Float64
	curve    atomic.Float64
	fn       sysatomic.Pointer[CurveFunc]
}

// NewCrossfader returns a centered fader with the default curve.
func NewCrossfader() *Crossfader {
	cf := &Crossfader{}
	fn := CurveFunc(Shape)
	cf.fn.Store(&fn)
	return cf
}

// Set updates position and curve, both clamped to their ranges.
func (cf *Crossfader) Set(position, curve float64) {
	cf.position.Store(clamp(position, -1, 1))
	cf.curve.Store(clamp(curve, 0, 1))
}

// Position returns the fader position in [-1, +1].
func (cf *Crossfader) Position() float64 { return cf.position.Load() }

// Curve returns the curve parameter in [0, 1].
func (cf *Crossfader) Curve() float64 { return cf.curve.Load() }

// SetCurveFunc replaces the gain law. A nil fn restores the default.
func (cf *Crossfader) SetCurveFunc(fn CurveFunc) {
	if fn == nil {
		fn = Shape
	}
	cf.fn.Store(&fn)
}

// Gains returns the deck A and B gains at the current position and curve.
// Gain_A(x, c) == Gain_B(-x, c) and the endpoints are exactly 0 and 1.
func (cf *Crossfader) Gains() (ga, gb float64) {
	return cf.GainsAt(cf.position.Load(), cf.curve.Load())
}

// GainsAt evaluates the gain law at an explicit position and curve.
func (cf *Crossfader) GainsAt(position, curve float64) (ga, gb float64) {
	fn := *cf.fn.Load()
	u := (clamp(position, -1, 1) + 1) / 2
	c := clamp(curve, 0, 1)
	ga = clamp(fn(1-u, c), 0, 1)
	gb = clamp(fn(u, c), 0, 1)
	return ga, gb
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
