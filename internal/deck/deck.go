// ABOUTME: Playback deck with varispeed pull and per-deck DSP chain
// ABOUTME: Owns track source, transport state, cues, EQ, compressor, meter
package deck

import (
	"fmt"
	"sync"
	sysatomic "sync/atomic"

	"github.com/onestopradio/radiocore-go/internal/dsp"
	"github.com/onestopradio/radiocore-go/pkg/audio"
	"go.uber.org/atomic"
)

// ID names one of the two decks.
type ID int

const (
	DeckA ID = iota
	DeckB
)

func (id ID) String() string {
	if id == DeckA {
		return "A"
	}
	return "B"
}

// State is the deck transport state.
type State int32

const (
	StateEmpty State = iota
	StateLoaded
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const (
	MinRate = 0.5
	MaxRate = 2.0

	noJump = -1
)

// Deck is one playback channel: an in-memory track pulled at variable rate,
// then gain -> 3-band EQ -> optional compressor -> meter.
//
// The audio callback is the only mutator of playback position; control-plane
// calls communicate through atomics (scalars, pending jump) and an atomic
// track pointer swap.
type Deck struct {
	id         ID
	sampleRate int

	track sysatomic.Pointer[audio.Track]

	state    atomic.Int32
	position atomic.Float64 // track frames, fractional during varispeed
	rate     atomic.Float64
	volume   atomic.Float64
	trim     atomic.Float64 // pre-fader input gain

	// Jump requested by the control plane, applied at the next block start.
	pendingJump atomic.Float64

	// Loop region in track frames; loopEnd <= 0 means no active loop.
	loopStart  atomic.Float64
	loopEnd    atomic.Float64
	loopActive atomic.Bool

	eq         *dsp.ThreeBandEQ
	filter     *dsp.Filter
	reverb     *dsp.Reverb
	compressor *dsp.Compressor
	meter      *dsp.Meter
	bpm        *BPMModel

	// Frame the transport returns to on Stop/Cue. Mirrors the loop-start
	// cue so the audio callback never touches the cue list.
	cueFrame atomic.Float64

	// Cue bookkeeping, control plane only.
	mu      sync.Mutex
	cues    []CuePoint
	hotCues [NumHotCues]int // cue id, 0 = unset
	nextCue int             // cue id allocator, ids start at 1
}

// New creates an empty deck rendering at the engine sample rate.
func New(id ID, sampleRate int) *Deck {
	d := &Deck{
		id:         id,
		sampleRate: sampleRate,
		eq:         dsp.NewThreeBandEQ(sampleRate),
		filter:     dsp.NewFilter(sampleRate),
		reverb:     dsp.NewReverb(sampleRate),
		compressor: dsp.NewCompressor(sampleRate, dsp.DefaultCompressorParams()),
		meter:      dsp.NewMeter(sampleRate),
		bpm:        NewBPMModel(sampleRate),
	}
	d.rate.Store(1.0)
	d.volume.Store(1.0)
	d.trim.Store(1.0)
	d.pendingJump.Store(noJump)
	return d
}

// ID returns the deck tag.
func (d *Deck) ID() ID { return d.id }

// Load atomically replaces the deck's track. On success the deck is Loaded at
// position 0; on failure the previous source is untouched.
func (d *Deck) Load(track *audio.Track) error {
	if track == nil || track.Frames() == 0 {
		return fmt.Errorf("deck %s: empty track", d.id)
	}

	d.mu.Lock()
	d.cues = nil
	d.hotCues = [NumHotCues]int{}
	d.mu.Unlock()

	d.loopActive.Store(false)
	d.loopEnd.Store(0)
	d.cueFrame.Store(0)
	d.pendingJump.Store(noJump)
	d.position.Store(0)
	d.track.Store(track)
	d.state.Store(int32(StateLoaded))
	d.bpm.Reset()
	d.filter.Reset()
	d.reverb.Reset()
	return nil
}

// Unload drops the current track. The audio callback observes the nil source
// and renders silence from the next block on.
func (d *Deck) Unload() {
	d.track.Store(nil)
	d.position.Store(0)
	d.loopActive.Store(false)
	d.cueFrame.Store(0)
	d.pendingJump.Store(noJump)
	d.state.Store(int32(StateEmpty))
}

// Track returns the current track, or nil.
func (d *Deck) Track() *audio.Track {
	return d.track.Load()
}

// State returns the transport state.
func (d *Deck) State() State {
	return State(d.state.Load())
}

// Play starts or resumes playback.
func (d *Deck) Play() error {
	switch d.State() {
	case StateEmpty:
		return fmt.Errorf("deck %s: no track loaded", d.id)
	default:
		d.state.Store(int32(StatePlaying))
		return nil
	}
}

// Pause halts playback keeping the position.
func (d *Deck) Pause() {
	if d.State() == StatePlaying {
		d.state.Store(int32(StatePaused))
	}
}

// Stop halts playback and resets the position to the active cue point, or 0.
func (d *Deck) Stop() {
	if d.State() == StateEmpty {
		return
	}
	d.state.Store(int32(StateStopped))
	d.pendingJump.Store(d.cuePosition())
}

// Cue jumps to the active cue point (or 0) without changing transport state.
func (d *Deck) Cue() {
	d.pendingJump.Store(d.cuePosition())
}

func (d *Deck) cuePosition() float64 {
	return d.cueFrame.Load()
}

// Seek requests a jump to the given track frame, clamped to [0, frames].
func (d *Deck) Seek(frame float64) {
	t := d.track.Load()
	if t == nil {
		return
	}
	if frame < 0 {
		frame = 0
	}
	if max := float64(t.Frames()); frame > max {
		frame = max
	}
	d.pendingJump.Store(frame)
}

// Position returns the playback position in track frames.
func (d *Deck) Position() float64 {
	return d.position.Load()
}

// Duration returns the track length in frames, 0 when empty.
func (d *Deck) Duration() int {
	if t := d.track.Load(); t != nil {
		return t.Frames()
	}
	return 0
}

// SetRate sets the playback rate, clamped to [0.5, 2.0].
func (d *Deck) SetRate(rate float64) {
	if rate < MinRate {
		rate = MinRate
	}
	if rate > MaxRate {
		rate = MaxRate
	}
	d.rate.Store(rate)
}

// Rate returns the playback rate.
func (d *Deck) Rate() float64 { return d.rate.Load() }

// SetVolume sets the deck fader, clamped to [0, 1].
func (d *Deck) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	d.volume.Store(v)
}

// Volume returns the deck fader.
func (d *Deck) Volume() float64 { return d.volume.Load() }

// SetGain sets the pre-fader trim, clamped to [0, 2].
func (d *Deck) SetGain(g float64) {
	if g < 0 {
		g = 0
	}
	if g > 2 {
		g = 2
	}
	d.trim.Store(g)
}

// Gain returns the pre-fader trim.
func (d *Deck) Gain() float64 { return d.trim.Load() }

// SetEQ stages 3-band gains in dB, applied at the next block boundary.
func (d *Deck) SetEQ(lowDB, midDB, highDB float64) {
	d.eq.SetGains(lowDB, midDB, highDB)
}

// EQ returns the active band gains in dB.
func (d *Deck) EQ() (lowDB, midDB, highDB float64) {
	return d.eq.Gains()
}

// SetFilter stages the one-knob filter position in [-1, 1].
func (d *Deck) SetFilter(pos float64) {
	d.filter.SetPosition(pos)
}

// FilterPosition returns the active filter knob position.
func (d *Deck) FilterPosition() float64 {
	return d.filter.Position()
}

// SetReverb stages the reverb wet/dry mix in [0, 1].
func (d *Deck) SetReverb(mix float64) {
	d.reverb.SetMix(mix)
}

// ReverbMix returns the active reverb mix.
func (d *Deck) ReverbMix() float64 {
	return d.reverb.Mix()
}

// SetCompressor updates the channel compressor.
func (d *Deck) SetCompressor(p dsp.CompressorParams) {
	d.compressor.SetParams(p)
}

// Compressor returns the channel compressor settings.
func (d *Deck) Compressor() dsp.CompressorParams {
	return d.compressor.Params()
}

// Levels returns the post-chain deck meter reading.
func (d *Deck) Levels() dsp.Levels {
	return d.meter.Levels()
}

// BPM returns the deck's tempo model.
func (d *Deck) BPM() *BPMModel { return d.bpm }

// Pull renders up to frames stereo frames into out (interleaved, len >=
// frames*2), resampled from the track rate scaled by the playback rate, and
// runs the deck DSP chain over the produced block. It returns the number of
// frames produced; fewer than requested means the source is exhausted, the
// deck transitions to Stopped and ended is true.
//
// Audio callback only.
func (d *Deck) Pull(out []float32, frames int) (n int, ended bool) {
	for i := 0; i < frames*2; i++ {
		out[i] = 0
	}

	t := d.track.Load()
	if t == nil || d.State() != StatePlaying {
		// Jumps still land while paused so cueing is audible on resume.
		if j := d.pendingJump.Swap(noJump); j != noJump {
			d.position.Store(j)
		}
		return 0, false
	}

	pos := d.position.Load()
	if j := d.pendingJump.Swap(noJump); j != noJump {
		pos = j
	}

	// Varispeed step in track frames per engine frame.
	step := d.rate.Load() * float64(t.Format.SampleRate) / float64(d.sampleRate)
	total := float64(t.Frames())

	loopOn := d.loopActive.Load()
	loopStart := d.loopStart.Load()
	loopEnd := d.loopEnd.Load()
	if loopEnd <= loopStart {
		loopOn = false
	}

	for n = 0; n < frames; n++ {
		if loopOn && pos >= loopEnd {
			// Loop wraps inside the block, even for regions shorter than it.
			pos = loopStart + (pos - loopEnd)
		}
		if pos >= total {
			break
		}

		idx := int(pos)
		idx1 := idx + 1
		if idx1 >= t.Frames() {
			// Hold the final frame so it still sounds.
			idx1 = idx
		}
		frac := float32(pos - float64(idx))
		ch := t.Format.Channels

		if ch >= 2 {
			l0 := t.Samples[idx*ch]
			r0 := t.Samples[idx*ch+1]
			l1 := t.Samples[idx1*ch]
			r1 := t.Samples[idx1*ch+1]
			out[n*2] = l0 + (l1-l0)*frac
			out[n*2+1] = r0 + (r1-r0)*frac
		} else {
			s0 := t.Samples[idx]
			s1 := t.Samples[idx1]
			s := s0 + (s1-s0)*frac
			out[n*2] = s
			out[n*2+1] = s
		}

		pos += step
	}

	if pos > total {
		pos = total
	}
	d.position.Store(pos)

	if n > 0 {
		d.processChain(t, out[:n*2])
	}

	if n < frames {
		d.state.Store(int32(StateStopped))
		d.position.Store(d.cuePosition())
		return n, true
	}
	return n, false
}

func (d *Deck) processChain(t *audio.Track, buf []float32) {
	gain := float32(d.trim.Load() * d.volume.Load() * t.Gain)
	if gain != 1.0 {
		for i := range buf {
			buf[i] *= gain
		}
	}

	d.eq.ProcessBlock(buf)
	d.filter.ProcessBlock(buf)
	d.reverb.ProcessBlock(buf)
	d.compressor.ProcessBlock(buf)
	d.meter.ProcessBlock(buf)
	d.bpm.ProcessBlock(buf, d.position.Load())
}
