// ABOUTME: Tests for device id parsing and selection plumbing
// ABOUTME: Covers null-device clocking without real audio hardware
package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDeviceIndexParsing(t *testing.T) {
	cases := []struct {
		id   string
		want int
		ok   bool
	}{
		{"pa:0", 0, true},
		{"pa:12", 12, true},
		{"", 0, false},
		{"pa:-1", 0, false},
		{"pa:x", 0, false},
		{"alsa:1", 0, false},
	}
	for _, tc := range cases {
		got, err := deviceIndex(tc.id)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("deviceIndex(%q) = %d, %v", tc.id, got, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("deviceIndex(%q) accepted", tc.id)
		}
	}
}

func TestResolveDeviceOutOfRange(t *testing.T) {
	if _, err := resolveDevice(nil, "pa:5", nil); err == nil {
		t.Error("out-of-range id accepted")
	}
}

func TestSelectDeviceValidatesID(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if err := e.SelectInput("bogus"); err == nil {
		t.Error("bad input id accepted")
	}
	if err := e.SelectOutput("pa:3"); err != nil {
		t.Errorf("SelectOutput: %v", err)
	}
	if e.outputID != "pa:3" {
		t.Errorf("outputID = %q", e.outputID)
	}
	if err := e.SelectOutput(""); err != nil {
		t.Errorf("clearing selection: %v", err)
	}
	if e.outputID != "" {
		t.Errorf("outputID = %q after clear", e.outputID)
	}
}

func TestCaptureFramesNormalization(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	frames := 4
	stereo := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	if got := e.captureFrames(stereo, frames); &got[0] != &stereo[0] {
		t.Error("full stereo block should pass through")
	}

	mono := []float32{0.1, 0.2, 0.3, 0.4}
	got := e.captureFrames(mono, frames)
	if len(got) != frames*2 {
		t.Fatalf("len = %d", len(got))
	}
	for i := 0; i < frames; i++ {
		if got[i*2] != mono[i] || got[i*2+1] != mono[i] {
			t.Fatalf("frame %d = %f/%f, want %f both", i, got[i*2], got[i*2+1], mono[i])
		}
	}

	got = e.captureFrames(nil, frames)
	for i, s := range got {
		if s != 0 {
			t.Fatalf("sample %d = %f, want silence", i, s)
		}
	}
}

func TestNullDeviceClocksRender(t *testing.T) {
	dev := &nullDevice{sampleRate: 48000, blockFrames: 64}

	var blocks atomic.Int64
	if err := dev.Start(func(in, out []float32) {
		if len(in) != 128 || len(out) != 128 {
			t.Errorf("block sizes = %d/%d", len(in), len(out))
		}
		blocks.Add(1)
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for blocks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if blocks.Load() < 3 {
		t.Errorf("only %d blocks rendered", blocks.Load())
	}

	// Stop is idempotent.
	if err := dev.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
