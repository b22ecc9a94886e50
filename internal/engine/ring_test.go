// ABOUTME: Tests for the SPSC master-bus ring
// ABOUTME: Covers roundtrip, wraparound, overflow drop, and reset
package engine

import "testing"

func TestRingRoundTrip(t *testing.T) {
	r := NewRing(16)

	in := []float32{1, 2, 3, 4}
	if n := r.Write(in); n != 4 {
		t.Fatalf("Write = %d, want 4", n)
	}
	if r.Len() != 4 {
		t.Errorf("Len = %d, want 4", r.Len())
	}

	out := make([]float32, 4)
	if n := r.Read(out); n != 4 {
		t.Fatalf("Read = %d, want 4", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestRingCapacityRoundsUp(t *testing.T) {
	if c := NewRing(100).Cap(); c != 128 {
		t.Errorf("Cap = %d, want 128", c)
	}
}

func TestRingWraparound(t *testing.T) {
	r := NewRing(8)
	buf := make([]float32, 6)

	// Walk the indexes past the buffer length several times.
	for round := 0; round < 10; round++ {
		for i := range buf {
			buf[i] = float32(round*10 + i)
		}
		if n := r.Write(buf); n != 6 {
			t.Fatalf("round %d: Write = %d", round, n)
		}
		out := make([]float32, 6)
		if n := r.Read(out); n != 6 {
			t.Fatalf("round %d: Read = %d", round, n)
		}
		for i := range buf {
			if out[i] != buf[i] {
				t.Fatalf("round %d sample %d = %f, want %f", round, i, out[i], buf[i])
			}
		}
	}
}

func TestRingOverflowDropsWholeWrite(t *testing.T) {
	r := NewRing(8)
	r.Write(make([]float32, 6))

	if n := r.Write(make([]float32, 4)); n != 0 {
		t.Errorf("overflowing Write = %d, want 0", n)
	}
	if r.Len() != 6 {
		t.Errorf("Len after dropped write = %d, want 6", r.Len())
	}
	if r.Overruns() != 1 {
		t.Errorf("Overruns = %d, want 1", r.Overruns())
	}
}

func TestRingPartialRead(t *testing.T) {
	r := NewRing(8)
	r.Write([]float32{1, 2, 3})

	out := make([]float32, 8)
	if n := r.Read(out); n != 3 {
		t.Errorf("Read = %d, want 3", n)
	}
	if n := r.Read(out); n != 0 {
		t.Errorf("Read from empty = %d, want 0", n)
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing(8)
	r.Write(make([]float32, 5))
	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len after Reset = %d", r.Len())
	}
	if n := r.Write(make([]float32, 8)); n != 8 {
		t.Errorf("full-capacity write after Reset = %d, want 8", n)
	}
}
