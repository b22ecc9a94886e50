// ABOUTME: Tests for cue points, hot cues, and loop regions
// ABOUTME: Covers hot-cue trigger timing and cue bookkeeping across loads
package deck

import (
	"testing"
)

func TestCueLifecycle(t *testing.T) {
	d := New(DeckB, 48000)
	if _, err := d.SetCue(0, "x"); err == nil {
		t.Fatal("cue on empty deck accepted")
	}

	if err := d.Load(makeTrack(48000, 48000)); err != nil {
		t.Fatal(err)
	}

	id, err := d.SetCue(1234, "drop")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.SetCue(-1, ""); err == nil {
		t.Error("negative cue frame accepted")
	}
	if _, err := d.SetCue(48001, ""); err == nil {
		t.Error("cue past end accepted")
	}

	cues := d.Cues()
	if len(cues) != 1 || cues[0].ID != id || cues[0].Position != 1234 || cues[0].Label != "drop" {
		t.Fatalf("unexpected cue list: %+v", cues)
	}

	if !d.RemoveCue(id) {
		t.Error("remove failed")
	}
	if d.RemoveCue(id) {
		t.Error("double remove succeeded")
	}
	if len(d.Cues()) != 0 {
		t.Error("cue list not empty after remove")
	}
}

func TestHotCueTriggerLandsAtNextBlock(t *testing.T) {
	fs := 48000
	d := New(DeckA, fs)
	if err := d.Load(makeTrack(20*fs, fs)); err != nil {
		t.Fatal(err)
	}
	if err := d.Play(); err != nil {
		t.Fatal(err)
	}

	// Cue at 15 000 ms.
	frame := 15000 * fs / 1000
	if err := d.SetHotCue(2, frame); err != nil {
		t.Fatal(err)
	}

	out := make([]float32, 1024*2)
	d.Pull(out, 1024) // playhead somewhere early

	if err := d.TriggerHotCue(2); err != nil {
		t.Fatal(err)
	}
	d.Pull(out, 1024)

	// First frame of the block after the trigger is the cue frame itself.
	want := makeTrack(20*fs, fs).Samples[frame*2]
	if out[0] != want {
		t.Errorf("block start sample %f, want %f", out[0], want)
	}
	if got := d.Position(); got != float64(frame+1024) {
		t.Errorf("position %f, want %d", got, frame+1024)
	}
}

func TestHotCueSlotBounds(t *testing.T) {
	d := New(DeckA, 48000)
	if err := d.Load(makeTrack(1000, 48000)); err != nil {
		t.Fatal(err)
	}

	if err := d.SetHotCue(-1, 0); err == nil {
		t.Error("slot -1 accepted")
	}
	if err := d.SetHotCue(NumHotCues, 0); err == nil {
		t.Error("slot 8 accepted")
	}
	if err := d.TriggerHotCue(3); err == nil {
		t.Error("trigger on empty slot succeeded")
	}
}

func TestHotCueClearKeepsCuePoint(t *testing.T) {
	d := New(DeckA, 48000)
	if err := d.Load(makeTrack(1000, 48000)); err != nil {
		t.Fatal(err)
	}
	if err := d.SetHotCue(0, 500); err != nil {
		t.Fatal(err)
	}

	d.ClearHotCue(0)
	if d.HotCue(0) != nil {
		t.Error("slot not cleared")
	}
	if len(d.Cues()) != 1 {
		t.Error("underlying cue point removed with the slot")
	}
}

func TestRemoveCueClearsHotSlot(t *testing.T) {
	d := New(DeckA, 48000)
	if err := d.Load(makeTrack(1000, 48000)); err != nil {
		t.Fatal(err)
	}
	if err := d.SetHotCue(5, 250); err != nil {
		t.Fatal(err)
	}

	c := d.HotCue(5)
	if c == nil {
		t.Fatal("slot empty after set")
	}
	d.RemoveCue(c.ID)
	if d.HotCue(5) != nil {
		t.Error("slot still bound to removed cue")
	}
}

func TestSetLoopReplacesPair(t *testing.T) {
	d := New(DeckA, 48000)
	if err := d.Load(makeTrack(48000, 48000)); err != nil {
		t.Fatal(err)
	}

	if err := d.SetLoop(200, 100); err == nil {
		t.Error("inverted loop accepted")
	}
	if err := d.SetLoop(100, 200); err != nil {
		t.Fatal(err)
	}
	if err := d.SetLoop(300, 400); err != nil {
		t.Fatal(err)
	}

	var pairs int
	for _, c := range d.Cues() {
		if c.LoopStart || c.LoopEnd {
			pairs++
		}
	}
	if pairs != 2 {
		t.Errorf("expected one loop pair, found %d loop cues", pairs)
	}

	start, end, ok := d.Loop()
	if !ok || start != 300 || end != 400 {
		t.Errorf("loop region %d..%d ok=%v", start, end, ok)
	}
}

func TestEnableLoopRequiresRegion(t *testing.T) {
	d := New(DeckA, 48000)
	if err := d.Load(makeTrack(48000, 48000)); err != nil {
		t.Fatal(err)
	}
	if err := d.EnableLoop(true); err == nil {
		t.Error("loop enabled without region")
	}
	if err := d.SetLoop(0, 100); err != nil {
		t.Fatal(err)
	}
	if err := d.EnableLoop(true); err != nil {
		t.Fatal(err)
	}
	if !d.LoopActive() {
		t.Error("loop not active")
	}
}

func TestLoadClearsCues(t *testing.T) {
	d := New(DeckA, 48000)
	if err := d.Load(makeTrack(1000, 48000)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.SetCue(10, ""); err != nil {
		t.Fatal(err)
	}
	if err := d.SetHotCue(1, 20); err != nil {
		t.Fatal(err)
	}
	if err := d.SetLoop(0, 500); err != nil {
		t.Fatal(err)
	}

	if err := d.Load(makeTrack(2000, 48000)); err != nil {
		t.Fatal(err)
	}
	if len(d.Cues()) != 0 || d.HotCue(1) != nil || d.LoopActive() {
		t.Error("reload kept stale cue state")
	}
	if _, _, ok := d.Loop(); ok {
		t.Error("reload kept stale loop region")
	}
}
