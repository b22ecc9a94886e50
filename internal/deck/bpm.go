// ABOUTME: Onset-energy tempo estimation, tap tempo, and deck sync
// ABOUTME: Audio callback feeds blocks; control plane reads BPM and phase
package deck

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	MinBPM = 60.0
	MaxBPM = 200.0

	// Onset detection: block energy must exceed the rolling average by this
	// factor, and onsets closer than minOnsetGap are ignored (240 BPM cap).
	onsetFactor     = 1.5
	onsetFloor      = 1e-4
	minOnsetGapSecs = 0.25

	bpmIntervalHistory = 8
	tapTimeout         = 2 * time.Second
	maxTaps            = 8
)

// BPMModel tracks the tempo of one deck. The audio callback feeds it rendered
// blocks; estimates, manual overrides, and the beat anchor are published
// through atomics so the control plane reads without locking the callback.
type BPMModel struct {
	sampleRate int

	estimate atomic.Float64 // detected BPM, 0 = unknown
	override atomic.Float64 // manual BPM, 0 = none
	beatPos  atomic.Float64 // track frame of the last detected beat

	mu   sync.Mutex
	taps []time.Time

	// Callback-only detection state.
	samples   int64
	energyAvg float64
	lastOnset int64
	intervals []float64
}

// NewBPMModel creates a tempo model fed at the engine sample rate.
func NewBPMModel(sampleRate int) *BPMModel {
	return &BPMModel{
		sampleRate: sampleRate,
		intervals:  make([]float64, 0, bpmIntervalHistory),
	}
}

// Reset clears all detection state; called on track load.
func (b *BPMModel) Reset() {
	b.estimate.Store(0)
	b.override.Store(0)
	b.beatPos.Store(0)
	b.samples = 0
	b.energyAvg = 0
	b.lastOnset = -1
	b.intervals = b.intervals[:0]

	b.mu.Lock()
	b.taps = b.taps[:0]
	b.mu.Unlock()
}

// Value returns the effective BPM: the manual override when set, otherwise
// the detected estimate. 0 means unknown.
func (b *BPMModel) Value() float64 {
	if o := b.override.Load(); o > 0 {
		return o
	}
	return b.estimate.Load()
}

// Detected returns the raw onset-energy estimate, ignoring any override.
func (b *BPMModel) Detected() float64 {
	return b.estimate.Load()
}

// SetOverride pins the BPM manually, clamped to [60, 200]. 0 clears it.
func (b *BPMModel) SetOverride(bpm float64) {
	if bpm != 0 {
		bpm = clamp(bpm, MinBPM, MaxBPM)
	}
	b.override.Store(bpm)
}

// Tap registers one tap of a tap-tempo gesture. Taps more than two seconds
// apart start a new gesture; two or more taps set the manual override from
// the mean tap interval.
func (b *BPMModel) Tap() {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.taps); n > 0 && now.Sub(b.taps[n-1]) > tapTimeout {
		b.taps = b.taps[:0]
	}
	b.taps = append(b.taps, now)
	if len(b.taps) > maxTaps {
		b.taps = b.taps[1:]
	}
	if len(b.taps) < 2 {
		return
	}

	span := b.taps[len(b.taps)-1].Sub(b.taps[0]).Seconds()
	mean := span / float64(len(b.taps)-1)
	b.override.Store(foldBPM(60 / mean))
}

// Phase returns the beat phase in [0, 1) at the given track frame, relative
// to the last detected beat. ok is false when no tempo is known yet.
func (b *BPMModel) Phase(position float64, trackRate int) (float64, bool) {
	bpm := b.Value()
	if bpm <= 0 {
		return 0, false
	}
	beatFrames := float64(trackRate) * 60 / bpm
	phase := math.Mod(position-b.beatPos.Load(), beatFrames) / beatFrames
	if phase < 0 {
		phase += 1
	}
	return phase, true
}

// ProcessBlock feeds one rendered stereo block. position is the track frame
// reached after the block, used to anchor beat phase. Audio callback only.
func (b *BPMModel) ProcessBlock(buf []float32, position float64) {
	frames := len(buf) / 2
	if frames == 0 {
		return
	}

	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	energy := sum / float64(len(buf))

	minGap := int64(minOnsetGapSecs * float64(b.sampleRate))
	onset := energy > onsetFactor*b.energyAvg+onsetFloor &&
		(b.lastOnset < 0 || b.samples-b.lastOnset >= minGap)

	if onset {
		if b.lastOnset >= 0 {
			interval := float64(b.samples-b.lastOnset) / float64(b.sampleRate)
			b.pushInterval(interval)
		}
		b.lastOnset = b.samples
		b.beatPos.Store(position)
	}

	// One-pole average over roughly a second of blocks.
	alpha := float64(frames) / float64(b.sampleRate)
	b.energyAvg += alpha * (energy - b.energyAvg)
	b.samples += int64(frames)
}

func (b *BPMModel) pushInterval(interval float64) {
	if len(b.intervals) == bpmIntervalHistory {
		copy(b.intervals, b.intervals[1:])
		b.intervals = b.intervals[:bpmIntervalHistory-1]
	}
	b.intervals = append(b.intervals, interval)
	if len(b.intervals) < 3 {
		return
	}

	sorted := make([]float64, len(b.intervals))
	copy(sorted, b.intervals)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	median := sorted[len(sorted)/2]
	if median <= 0 {
		return
	}
	b.estimate.Store(foldBPM(60 / median))
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

// foldBPM doubles or halves a raw tempo until it lands in [60, 200].
func foldBPM(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	for bpm < MinBPM {
		bpm *= 2
	}
	for bpm > MaxBPM {
		bpm /= 2
	}
	return clamp(bpm, MinBPM, MaxBPM)
}

// Sync matches this deck's tempo and beat phase to the master deck. The rate
// is scaled so the effective BPMs agree, then the playhead is nudged so the
// phase offset is at most half a beat.
func (d *Deck) Sync(master *Deck) error {
	mt := master.track.Load()
	st := d.track.Load()
	if mt == nil || st == nil {
		return fmt.Errorf("deck %s: sync needs tracks on both decks", d.id)
	}

	masterBPM := master.bpm.Value()
	slaveBPM := d.bpm.Value()
	if masterBPM <= 0 || slaveBPM <= 0 {
		return fmt.Errorf("deck %s: sync needs a tempo on both decks", d.id)
	}

	// Effective BPM scales with rate, so the ratio of effective tempos is
	// the rate correction.
	effMaster := masterBPM * master.rate.Load()
	d.SetRate(effMaster / slaveBPM)

	mPhase, mok := master.bpm.Phase(master.position.Load(), mt.Format.SampleRate)
	sPhase, sok := d.bpm.Phase(d.position.Load(), st.Format.SampleRate)
	if !mok || !sok {
		return nil
	}

	diff := mPhase - sPhase
	if diff > 0.5 {
		diff -= 1
	}
	if diff < -0.5 {
		diff += 1
	}

	beatFrames := float64(st.Format.SampleRate) * 60 / d.bpm.Value()
	target := d.position.Load() + diff*beatFrames
	if target < 0 {
		target = 0
	}
	if max := float64(st.Frames()); target > max {
		target = max
	}
	d.pendingJump.Store(target)
	return nil
}
