// ABOUTME: Single-producer single-consumer float ring buffer
// ABOUTME: Carries master-bus audio from the callback to the stream worker
package engine

import "go.uber.org/atomic"

// Ring is a lock-free SPSC ring of float32 samples. The audio callback is
// the only writer and the stream worker the only reader; neither ever
// blocks. Overflow drops the incoming samples (live semantics) and bumps a
// counter.
type Ring struct {
	buf  []float32
	mask int64

	head atomic.Int64 // next read index, consumer-owned
	tail atomic.Int64 // next write index, producer-owned

	overruns atomic.Int64
}

// NewRing creates a ring holding at least capacity samples, rounded up to a
// power of two.
func NewRing(capacity int) *Ring {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{buf: make([]float32, size), mask: int64(size - 1)}
}

// Cap returns the sample capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the samples currently buffered.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Write appends samples, dropping the whole slice if it does not fit.
// Returns the number written. Producer only.
func (r *Ring) Write(p []float32) int {
	tail := r.tail.Load()
	free := int64(len(r.buf)) - (tail - r.head.Load())
	if int64(len(p)) > free {
		r.overruns.Inc()
		return 0
	}

	for i, s := range p {
		r.buf[(tail+int64(i))&r.mask] = s
	}
	r.tail.Store(tail + int64(len(p)))
	return len(p)
}

// Read fills p with up to len(p) samples and returns the count. Consumer
// only.
func (r *Ring) Read(p []float32) int {
	head := r.head.Load()
	avail := r.tail.Load() - head
	n := int64(len(p))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	for i := int64(0); i < n; i++ {
		p[i] = r.buf[(head+i)&r.mask]
	}
	r.head.Store(head + n)
	return int(n)
}

// Overruns returns how many writes were dropped for lack of space.
func (r *Ring) Overruns() int64 { return r.overruns.Load() }

// Reset empties the ring. Safe only while both sides are quiescent.
func (r *Ring) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
}
