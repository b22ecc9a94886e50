// ABOUTME: Cue points, hot cues, and loop regions
// ABOUTME: Control-plane cue list with atomic mirrors for the audio callback
package deck

import "fmt"

// NumHotCues is the fixed hot-cue slot count per deck.
const NumHotCues = 8

// CuePoint marks a position in the loaded track. Cue points live as long as
// the track that owns them; hot-cue slots hold non-owning references by id.
type CuePoint struct {
	ID        int
	Position  int // track frames
	Label     string
	LoopStart bool
	LoopEnd   bool
}

// SetCue adds a cue point at the given track frame and returns its id.
func (d *Deck) SetCue(frame int, label string) (int, error) {
	t := d.track.Load()
	if t == nil {
		return 0, fmt.Errorf("deck %s: no track loaded", d.id)
	}
	if frame < 0 || frame > t.Frames() {
		return 0, fmt.Errorf("deck %s: cue frame %d out of range", d.id, frame)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextCue++
	cue := CuePoint{ID: d.nextCue, Position: frame, Label: label}
	d.cues = append(d.cues, cue)
	return cue.ID, nil
}

// RemoveCue deletes a cue point and clears any hot-cue slots referencing it.
func (d *Deck) RemoveCue(id int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, c := range d.cues {
		if c.ID != id {
			continue
		}
		d.cues = append(d.cues[:i], d.cues[i+1:]...)
		for s := range d.hotCues {
			if d.hotCues[s] == id {
				d.hotCues[s] = 0
			}
		}
		if c.LoopStart {
			d.cueFrame.Store(0)
		}
		if c.LoopStart || c.LoopEnd {
			d.loopActive.Store(false)
			d.loopEnd.Store(0)
		}
		return true
	}
	return false
}

// Cues returns a copy of the cue list.
func (d *Deck) Cues() []CuePoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CuePoint, len(d.cues))
	copy(out, d.cues)
	return out
}

func (d *Deck) cueByID(id int) *CuePoint {
	for i := range d.cues {
		if d.cues[i].ID == id {
			c := d.cues[i]
			return &c
		}
	}
	return nil
}

// SetHotCue binds slot i (0..7) to a new cue point at the given frame.
func (d *Deck) SetHotCue(slot int, frame int) error {
	if slot < 0 || slot >= NumHotCues {
		return fmt.Errorf("deck %s: hot cue slot %d out of range", d.id, slot)
	}
	t := d.track.Load()
	if t == nil {
		return fmt.Errorf("deck %s: no track loaded", d.id)
	}
	if frame < 0 || frame > t.Frames() {
		return fmt.Errorf("deck %s: hot cue frame %d out of range", d.id, frame)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextCue++
	d.cues = append(d.cues, CuePoint{
		ID:       d.nextCue,
		Position: frame,
		Label:    fmt.Sprintf("hot %d", slot+1),
	})
	d.hotCues[slot] = d.nextCue
	return nil
}

// ClearHotCue empties slot i without removing the underlying cue point.
func (d *Deck) ClearHotCue(slot int) {
	if slot < 0 || slot >= NumHotCues {
		return
	}
	d.mu.Lock()
	d.hotCues[slot] = 0
	d.mu.Unlock()
}

// HotCue returns the cue bound to slot i, or nil.
func (d *Deck) HotCue(slot int) *CuePoint {
	if slot < 0 || slot >= NumHotCues {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hotCues[slot] == 0 {
		return nil
	}
	return d.cueByID(d.hotCues[slot])
}

// TriggerHotCue jumps playback to slot i's position at the next block start.
func (d *Deck) TriggerHotCue(slot int) error {
	c := d.HotCue(slot)
	if c == nil {
		return fmt.Errorf("deck %s: hot cue %d not set", d.id, slot)
	}
	d.pendingJump.Store(float64(c.Position))
	return nil
}

// SetLoop defines the loop region in track frames. Only one loop pair exists
// at a time; any previous pair is replaced. The loop-start frame becomes the
// Stop/Cue return point.
func (d *Deck) SetLoop(startFrame, endFrame int) error {
	t := d.track.Load()
	if t == nil {
		return fmt.Errorf("deck %s: no track loaded", d.id)
	}
	if startFrame < 0 || endFrame > t.Frames() || startFrame >= endFrame {
		return fmt.Errorf("deck %s: invalid loop region [%d, %d)", d.id, startFrame, endFrame)
	}

	d.mu.Lock()
	kept := d.cues[:0]
	for _, c := range d.cues {
		if !c.LoopStart && !c.LoopEnd {
			kept = append(kept, c)
		}
	}
	d.cues = kept

	d.nextCue++
	d.cues = append(d.cues, CuePoint{ID: d.nextCue, Position: startFrame, Label: "loop in", LoopStart: true})
	d.nextCue++
	d.cues = append(d.cues, CuePoint{ID: d.nextCue, Position: endFrame, Label: "loop out", LoopEnd: true})
	d.mu.Unlock()

	d.loopStart.Store(float64(startFrame))
	d.loopEnd.Store(float64(endFrame))
	d.cueFrame.Store(float64(startFrame))
	return nil
}

// EnableLoop turns loop playback on or off. The region must exist first.
func (d *Deck) EnableLoop(enabled bool) error {
	if enabled && d.loopEnd.Load() <= d.loopStart.Load() {
		return fmt.Errorf("deck %s: no loop region set", d.id)
	}
	d.loopActive.Store(enabled)
	return nil
}

// LoopActive reports whether loop playback is on.
func (d *Deck) LoopActive() bool {
	return d.loopActive.Load()
}

// Loop returns the loop region in track frames; ok is false when unset.
func (d *Deck) Loop() (startFrame, endFrame int, ok bool) {
	s, e := d.loopStart.Load(), d.loopEnd.Load()
	if e <= s {
		return 0, 0, false
	}
	return int(s), int(e), true
}
