// ABOUTME: Talkover duck controller for the master bus
// ABOUTME: Sample-accurate fades via the mixer volume ramp, exact restore
package mic

import "go.uber.org/atomic"

// MasterBus is the mixer surface the talkover controller drives.
type MasterBus interface {
	MasterVolume() float64
	MasterVolumeTarget() float64
	RampMasterVolume(target float64, durationFrames int)
}

// TalkoverState is the duck state machine position.
type TalkoverState int32

const (
	TalkoverInactive TalkoverState = iota
	TalkoverFadingDown
	TalkoverDucked
	TalkoverFadingUp
)

func (s TalkoverState) String() string {
	switch s {
	case TalkoverInactive:
		return "inactive"
	case TalkoverFadingDown:
		return "fading-down"
	case TalkoverDucked:
		return "ducked"
	case TalkoverFadingUp:
		return "fading-up"
	}
	return "unknown"
}

const (
	DefaultDuckLevel  = 0.3
	DefaultDuckTimeMs = 100.0
)

// Talkover ducks the master bus while the mic is live and restores the
// exact pre-duck volume on release. Fades ride the mixer's sample-accurate
// volume ramp; toggling mid-fade retargets without a discontinuity.
type Talkover struct {
	bus        MasterBus
	sampleRate int
	path       *Path

	state      atomic.Int32
	duckLevel  atomic.Float64 // fraction of the pre-duck volume, [0, 1]
	duckTimeMs atomic.Float64
	preVolume  atomic.Float64 // master volume captured on activation
}

func newTalkover(bus MasterBus, sampleRate int, path *Path) *Talkover {
	t := &Talkover{bus: bus, sampleRate: sampleRate, path: path}
	t.duckLevel.Store(DefaultDuckLevel)
	t.duckTimeMs.Store(DefaultDuckTimeMs)
	return t
}

// State returns the duck state.
func (t *Talkover) State() TalkoverState {
	return TalkoverState(t.state.Load())
}

// Active reports whether the bus is ducked or fading either way.
func (t *Talkover) Active() bool {
	return t.State() != TalkoverInactive
}

// SetDuckLevel sets the ducked fraction of the pre-duck volume, clamped to
// [0, 1]. When a duck is in progress the fade retargets immediately.
func (t *Talkover) SetDuckLevel(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	t.duckLevel.Store(level)

	switch t.State() {
	case TalkoverFadingDown, TalkoverDucked:
		t.state.Store(int32(TalkoverFadingDown))
		t.bus.RampMasterVolume(t.preVolume.Load()*level, t.fadeFrames())
	}
}

// DuckLevel returns the ducked fraction.
func (t *Talkover) DuckLevel() float64 { return t.duckLevel.Load() }

// SetDuckTime sets the fade duration in milliseconds.
func (t *Talkover) SetDuckTime(ms float64) {
	if ms < 0 {
		ms = 0
	}
	t.duckTimeMs.Store(ms)
}

// DuckTime returns the fade duration in milliseconds.
func (t *Talkover) DuckTime() float64 { return t.duckTimeMs.Load() }

// PreVolume returns the master volume that will be restored on release.
func (t *Talkover) PreVolume() float64 { return t.preVolume.Load() }

// Enable starts or releases the duck. Enabling requires a live, unmuted
// mic; releasing always works. Mid-fade toggles retarget the running ramp.
func (t *Talkover) Enable(on bool) {
	if on {
		if t.path != nil && (!t.path.Enabled() || t.path.Muted()) {
			return
		}
		switch t.State() {
		case TalkoverInactive:
			t.preVolume.Store(t.bus.MasterVolumeTarget())
		case TalkoverFadingDown, TalkoverDucked:
			return
		}
		t.state.Store(int32(TalkoverFadingDown))
		t.bus.RampMasterVolume(t.preVolume.Load()*t.duckLevel.Load(), t.fadeFrames())
		return
	}

	switch t.State() {
	case TalkoverFadingDown, TalkoverDucked:
		t.state.Store(int32(TalkoverFadingUp))
		t.bus.RampMasterVolume(t.preVolume.Load(), t.fadeFrames())
	}
}

func (t *Talkover) fadeFrames() int {
	return int(t.duckTimeMs.Load() / 1000 * float64(t.sampleRate))
}

// advance moves fade states to their resting states once the bus ramp has
// landed. Called once per block from the mic path. Audio callback only.
func (t *Talkover) advance() {
	switch t.State() {
	case TalkoverFadingDown:
		if t.bus.MasterVolume() == t.preVolume.Load()*t.duckLevel.Load() {
			t.state.Store(int32(TalkoverDucked))
		}
	case TalkoverFadingUp:
		if t.bus.MasterVolume() == t.preVolume.Load() {
			t.state.Store(int32(TalkoverInactive))
		}
	}
}
