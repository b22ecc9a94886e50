// ABOUTME: Tests for the linear gain ramp
// ABOUTME: Covers exact landing, retargeting, and zero-duration jumps
package dsp

import (
	"math"
	"testing"
)

func TestRampLandsExactly(t *testing.T) {
	r := NewRamp(0.8)
	r.SetTarget(0.2, 100)

	var last float64
	for i := 0; i < 100; i++ {
		last = r.Next()
	}

	if last != 0.2 {
		t.Errorf("expected exact landing on 0.2, got %v", last)
	}
	if r.Active() {
		t.Error("ramp still active after duration elapsed")
	}
}

func TestRampIsMonotonic(t *testing.T) {
	r := NewRamp(0)
	r.SetTarget(1, 50)

	prev := 0.0
	for i := 0; i < 50; i++ {
		v := r.Next()
		if v < prev {
			t.Fatalf("ramp went backwards at step %d: %f < %f", i, v, prev)
		}
		prev = v
	}
}

func TestRampRetargetWithoutDiscontinuity(t *testing.T) {
	r := NewRamp(1.0)
	r.SetTarget(0, 1000)

	for i := 0; i < 500; i++ {
		r.Next()
	}
	mid := r.Value()

	// Retarget back up; the first step must move from mid, not jump.
	r.SetTarget(1.0, 1000)
	next := r.Next()
	if math.Abs(next-mid) > (1.0-mid)/1000+1e-9 {
		t.Errorf("discontinuity on retarget: %f -> %f", mid, next)
	}
}

func TestRampZeroDurationJumps(t *testing.T) {
	r := NewRamp(0.3)
	r.SetTarget(0.9, 0)
	if r.Value() != 0.9 {
		t.Errorf("expected immediate jump, got %f", r.Value())
	}
}

func TestRampHoldsAfterTarget(t *testing.T) {
	r := NewRamp(0)
	r.SetTarget(0.5, 10)
	for i := 0; i < 100; i++ {
		r.Next()
	}
	if r.Value() != 0.5 {
		t.Errorf("expected hold at 0.5, got %f", r.Value())
	}
}
