// ABOUTME: Engine façade: decks, mixer, mic, stream client, device lifecycle
// ABOUTME: Commands accepted from any goroutine; render runs on the audio thread
package engine

import (
	"fmt"
	"log"
	"sync"
	sysatomic "sync/atomic"

	"github.com/onestopradio/radiocore-go/internal/analyzer"
	"github.com/onestopradio/radiocore-go/internal/deck"
	"github.com/onestopradio/radiocore-go/internal/dsp"
	"github.com/onestopradio/radiocore-go/internal/mic"
	"github.com/onestopradio/radiocore-go/internal/mixer"
	"github.com/onestopradio/radiocore-go/internal/stream"
	"github.com/onestopradio/radiocore-go/pkg/audio"
	"github.com/onestopradio/radiocore-go/pkg/audio/decode"
	"go.uber.org/atomic"
)

// Config is the engine format snapshot. It is immutable once applied; the
// audio callback reads it through an atomic pointer.
type Config struct {
	SampleRate  int
	Channels    int
	BlockFrames int
	RingBlocks  int // master ring capacity, in blocks
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:  audio.DefaultSampleRate,
		Channels:    audio.DefaultChannels,
		BlockFrames: audio.DefaultBlockSize,
		RingBlocks:  32,
	}
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("engine config: sample rate %d", c.SampleRate)
	}
	if c.Channels != 2 {
		return fmt.Errorf("engine config: %d channels, engine is stereo", c.Channels)
	}
	if c.BlockFrames <= 0 {
		return fmt.Errorf("engine config: block size %d", c.BlockFrames)
	}
	if c.RingBlocks <= 0 {
		return fmt.Errorf("engine config: ring of %d blocks", c.RingBlocks)
	}
	return nil
}

// Engine is the single entry point from outside the audio core. Scalar
// commands write atomics and are visible to the callback within one block;
// allocating commands (load, stream configure/connect, start/stop) serialize
// on a short control mutex and must not be called from the audio callback.
type Engine struct {
	cfg sysatomic.Pointer[Config]

	decks  [2]*deck.Deck
	mixer  *mixer.Mixer
	mic    *mic.Path
	ring   *Ring
	events *Events

	client *stream.Client
	src    *ringSource

	mu      sync.Mutex // allocating commands and device lifecycle
	device  Device
	running atomic.Bool

	inputID  string // device selections, applied at the next Start
	outputID string

	// Callback-owned scratch and beat edge state.
	bufA, bufB, bufMic, master []float32
	capture                    []float32
	lastPhase                  [2]float64
	phaseValid                 [2]bool
	beatCount                  [2]atomic.Int64
}

// New builds a stopped engine. Start opens the audio device.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		mixer:   mixer.New(cfg.SampleRate, cfg.BlockFrames),
		ring:    NewRing(cfg.RingBlocks * cfg.BlockFrames * 2),
		events:  NewEvents(),
		bufA:    make([]float32, cfg.BlockFrames*2),
		bufB:    make([]float32, cfg.BlockFrames*2),
		bufMic:  make([]float32, cfg.BlockFrames*2),
		master:  make([]float32, cfg.BlockFrames*2),
		capture: make([]float32, cfg.BlockFrames*2),
	}
	e.cfg.Store(&cfg)
	e.decks[deck.DeckA] = deck.New(deck.DeckA, cfg.SampleRate)
	e.decks[deck.DeckB] = deck.New(deck.DeckB, cfg.SampleRate)
	e.mic = mic.New(cfg.SampleRate, e.mixer)
	e.src = &ringSource{ring: e.ring, sampleRate: cfg.SampleRate, blockFrames: cfg.BlockFrames}

	client, err := stream.NewClient(stream.DefaultConfig(), e.publishStreamStatus)
	if err != nil {
		return nil, fmt.Errorf("stream client: %w", err)
	}
	e.client = client
	return e, nil
}

// Config returns the active engine format snapshot.
func (e *Engine) Config() Config { return *e.cfg.Load() }

// SetCallbacks registers the event observers.
func (e *Engine) SetCallbacks(cbs Callbacks) { e.events.SetCallbacks(cbs) }

// Start opens the best available audio device and begins rendering. A
// fallback away from the duplex backend is reported through OnDeviceError.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return nil
	}

	cfg := e.cfg.Load()
	dev, fallback := OpenDevice(cfg.SampleRate, cfg.BlockFrames, e.inputID, e.outputID)
	if fallback != "" {
		e.events.Publish(Event{Kind: EventDeviceFallback, Message: fallback})
	}
	if err := dev.Start(e.render); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	e.device = dev
	e.running.Store(true)
	return nil
}

// Stop halts the audio device. Decks and the stream session keep their state.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running.Load() {
		return nil
	}
	err := e.device.Stop()
	e.device = nil
	e.running.Store(false)
	return err
}

// Running reports whether the render clock is live.
func (e *Engine) Running() bool { return e.running.Load() }

// InputDevices enumerates capture-capable host devices.
func (e *Engine) InputDevices() ([]DeviceInfo, error) { return ListInputs() }

// OutputDevices enumerates playback-capable host devices.
func (e *Engine) OutputDevices() ([]DeviceInfo, error) { return ListOutputs() }

// SelectInput picks the capture device by enumeration id. An empty id
// restores the host default. Takes effect at the next Start.
func (e *Engine) SelectInput(id string) error {
	return e.selectDevice(&e.inputID, id)
}

// SelectOutput picks the playback device by enumeration id. An empty id
// restores the host default. Takes effect at the next Start.
func (e *Engine) SelectOutput(id string) error {
	return e.selectDevice(&e.outputID, id)
}

func (e *Engine) selectDevice(slot *string, id string) error {
	if id != "" {
		if _, err := deviceIndex(id); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	*slot = id
	if e.running.Load() {
		log.Printf("engine: device selection %q applies at the next start", id)
	}
	return nil
}

// Close stops the device, tears down the stream session, and drains events.
func (e *Engine) Close() {
	e.Stop()
	e.client.Disconnect()
	e.events.Close()
}

// render produces one block. Audio thread only.
func (e *Engine) render(in, out []float32) {
	frames := len(out) / 2
	if max := len(e.master) / 2; frames > max {
		frames = max
	}

	for _, d := range e.decks {
		buf := e.bufA
		if d.ID() == deck.DeckB {
			buf = e.bufB
		}
		if _, ended := d.Pull(buf, frames); ended {
			e.events.Publish(Event{Kind: EventTrackEnded, Deck: d.ID()})
		}
	}

	e.mic.ProcessBlock(e.captureFrames(in, frames), e.bufMic[:frames*2])
	e.mixer.ProcessBlock(
		e.bufA[:frames*2], e.bufB[:frames*2], e.bufMic[:frames*2],
		e.master[:frames*2], out[:frames*2])

	e.ring.Write(e.master[:frames*2])
	e.detectBeats()
}

// captureFrames normalizes the device's capture block to interleaved
// stereo. Mono devices are duplicated to both channels; anything shorter
// becomes silence.
func (e *Engine) captureFrames(in []float32, frames int) []float32 {
	switch {
	case len(in) >= frames*2:
		return in[:frames*2]
	case len(in) >= frames:
		for i := 0; i < frames; i++ {
			e.capture[i*2] = in[i]
			e.capture[i*2+1] = in[i]
		}
	default:
		for i := range e.capture[:frames*2] {
			e.capture[i] = 0
		}
	}
	return e.capture[:frames*2]
}

// detectBeats publishes a beat event when a playing deck's beat phase wraps.
func (e *Engine) detectBeats() {
	for _, d := range e.decks {
		i := int(d.ID())
		t := d.Track()
		if t == nil || d.State() != deck.StatePlaying {
			e.phaseValid[i] = false
			continue
		}
		phase, ok := d.BPM().Phase(d.Position(), t.Format.SampleRate)
		if !ok {
			e.phaseValid[i] = false
			continue
		}
		if e.phaseValid[i] && phase < e.lastPhase[i] {
			beat := int(e.beatCount[i].Inc())
			e.events.Publish(Event{Kind: EventBeat, Deck: d.ID(), Beat: beat})
		}
		e.lastPhase[i] = phase
		e.phaseValid[i] = true
	}
}

func (e *Engine) deckByID(id deck.ID) (*deck.Deck, error) {
	if id != deck.DeckA && id != deck.DeckB {
		return nil, fmt.Errorf("no deck %d", int(id))
	}
	return e.decks[id], nil
}

// Deck returns the deck for direct inspection. Nil for an unknown id.
func (e *Engine) Deck(id deck.ID) *deck.Deck {
	d, _ := e.deckByID(id)
	return d
}

// Mixer returns the master bus.
func (e *Engine) Mixer() *mixer.Mixer { return e.mixer }

// Mic returns the microphone path.
func (e *Engine) Mic() *mic.Path { return e.mic }

// LoadTrack decodes path in full on the calling goroutine and swaps it onto
// the deck. On failure the deck keeps its previous track.
func (e *Engine) LoadTrack(id deck.ID, path string) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	track, err := decode.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load deck %s: %w", id, err)
	}
	if err := d.Load(track); err != nil {
		return err
	}
	e.beatCount[id].Store(0)
	e.events.Publish(Event{Kind: EventTrackLoaded, Deck: id, Track: track})
	return nil
}

// UnloadTrack drops the deck's track; silence from the next block.
func (e *Engine) UnloadTrack(id deck.ID) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.Unload()
	return nil
}

// Play starts or resumes the deck.
func (e *Engine) Play(id deck.ID) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	return d.Play()
}

// Pause halts the deck keeping its position.
func (e *Engine) Pause(id deck.ID) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.Pause()
	return nil
}

// StopDeck halts the deck and rewinds to its cue point.
func (e *Engine) StopDeck(id deck.ID) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.Stop()
	return nil
}

// CueDeck jumps the deck to its cue point.
func (e *Engine) CueDeck(id deck.ID) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.Cue()
	return nil
}

// Seek jumps the deck to a track frame at the next block boundary.
func (e *Engine) Seek(id deck.ID, frame float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.Seek(frame)
	return nil
}

// SetDeckVolume sets the deck fader in [0, 1].
func (e *Engine) SetDeckVolume(id deck.ID, v float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.SetVolume(v)
	return nil
}

// SetDeckGain sets the deck's pre-fader trim in [0, 2].
func (e *Engine) SetDeckGain(id deck.ID, g float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.SetGain(g)
	return nil
}

// SetDeckRate sets the playback rate in [0.5, 2.0].
func (e *Engine) SetDeckRate(id deck.ID, rate float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.SetRate(rate)
	return nil
}

// SetDeckEQ stages the 3-band gains in dB.
func (e *Engine) SetDeckEQ(id deck.ID, lowDB, midDB, highDB float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.SetEQ(lowDB, midDB, highDB)
	return nil
}

// SetDeckFilter stages the one-knob filter position in [-1, 1].
func (e *Engine) SetDeckFilter(id deck.ID, pos float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.SetFilter(pos)
	return nil
}

// SetDeckReverb stages the reverb mix in [0, 1].
func (e *Engine) SetDeckReverb(id deck.ID, mix float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.SetReverb(mix)
	return nil
}

// SetDeckCompressor updates the channel compressor.
func (e *Engine) SetDeckCompressor(id deck.ID, p dsp.CompressorParams) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.SetCompressor(p)
	return nil
}

// SetHotCue binds hot cue slot i to a track frame.
func (e *Engine) SetHotCue(id deck.ID, slot, frame int) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	return d.SetHotCue(slot, frame)
}

// TriggerHotCue jumps to hot cue slot i at the next block boundary.
func (e *Engine) TriggerHotCue(id deck.ID, slot int) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	return d.TriggerHotCue(slot)
}

// SetLoop defines the deck loop region in track frames.
func (e *Engine) SetLoop(id deck.ID, startFrame, endFrame int) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	return d.SetLoop(startFrame, endFrame)
}

// EnableLoop switches the deck loop.
func (e *Engine) EnableLoop(id deck.ID, on bool) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	return d.EnableLoop(on)
}

// SetBPMOverride pins the deck tempo; 0 returns to the detected value.
func (e *Engine) SetBPMOverride(id deck.ID, bpm float64) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.BPM().SetOverride(bpm)
	return nil
}

// TapTempo records one tempo tap on the deck.
func (e *Engine) TapTempo(id deck.ID) error {
	d, err := e.deckByID(id)
	if err != nil {
		return err
	}
	d.BPM().Tap()
	return nil
}

// SyncDecks matches the slave deck's tempo and beat phase to the master.
func (e *Engine) SyncDecks(slave, master deck.ID) error {
	s, err := e.deckByID(slave)
	if err != nil {
		return err
	}
	m, err := e.deckByID(master)
	if err != nil {
		return err
	}
	return s.Sync(m)
}

// SetCrossfader sets fader position [-1, 1] and curve [0, 1].
func (e *Engine) SetCrossfader(position, curve float64) {
	e.mixer.SetCrossfader(position, curve)
}

// SetMasterVolume sets the master volume in [0, 1].
func (e *Engine) SetMasterVolume(v float64) { e.mixer.SetMasterVolume(v) }

// SetHeadphoneVolume sets the monitor level in [0, 1].
func (e *Engine) SetHeadphoneVolume(v float64) { e.mixer.SetHeadphoneVolume(v) }

// SetHeadphoneMix sets the cue/program blend: 1 all master, 0 all cue.
func (e *Engine) SetHeadphoneMix(mix float64) { e.mixer.SetHeadphoneMix(mix) }

// SetDeckCue routes decks into the headphone cue bus.
func (e *Engine) SetDeckCue(a, b bool) { e.mixer.SetDeckCue(a, b) }

// EnableMasterLimiter switches the master limiter keeping its settings.
func (e *Engine) EnableMasterLimiter(on bool) {
	p := e.mixer.Limiter()
	p.Enabled = on
	e.mixer.SetLimiter(p)
}

// EnableSpectrum switches the master-bus spectrum tap.
func (e *Engine) EnableSpectrum(on bool) { e.mixer.Spectrum().Enable(on) }

// EnableMic switches the microphone path.
func (e *Engine) EnableMic(on bool) { e.mic.SetEnabled(on) }

// SetMicGain sets the mic gain in [0, 2].
func (e *Engine) SetMicGain(g float64) { e.mic.SetGain(g) }

// SetMicMute mutes or unmutes the mic.
func (e *Engine) SetMicMute(muted bool) { e.mic.SetMuted(muted) }

// EnableTalkover engages or releases the master volume duck.
func (e *Engine) EnableTalkover(on bool) { e.mic.Talkover().Enable(on) }

// SetTalkoverDuckLevel sets the duck factor in [0, 1].
func (e *Engine) SetTalkoverDuckLevel(level float64) {
	e.mic.Talkover().SetDuckLevel(level)
}

// SetTalkoverDuckTime sets the fade time in milliseconds.
func (e *Engine) SetTalkoverDuckTime(ms float64) {
	e.mic.Talkover().SetDuckTime(ms)
}

// ConfigureStream validates and applies the stream configuration.
func (e *Engine) ConfigureStream(cfg stream.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Configure(cfg)
}

// ConnectStream performs the server handshake.
func (e *Engine) ConnectStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Connect()
}

// DisconnectStream tears the session down.
func (e *Engine) DisconnectStream() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client.Disconnect()
}

// StartStreaming begins encoding master-bus audio to the connected server.
// The worker always starts at a block boundary.
func (e *Engine) StartStreaming() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ring.Reset()
	return e.client.StartStreaming(e.src)
}

// StopStreaming halts the encoder, leaving the session connected.
func (e *Engine) StopStreaming() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client.StopStreaming()
}

// UpdateMetadata publishes the now-playing song to the server.
func (e *Engine) UpdateMetadata(artist, title string) {
	e.client.UpdateMetadata(artist, title)
}

// StreamStats returns the stream client statistics.
func (e *Engine) StreamStats() stream.Stats { return e.client.Stats() }

func (e *Engine) publishStreamStatus(s stream.Status, message string) {
	e.events.Publish(Event{Kind: EventStreamStatus, Status: s.String(), Message: message})
}

// DeckSnapshot is a point-in-time view of one deck.
type DeckSnapshot struct {
	State          deck.State
	Path           string
	Title          string
	Artist         string
	PositionFrames float64
	DurationFrames int
	Rate           float64
	Volume         float64
	Gain           float64
	BPM            float64
	Beat           int
	LoopActive     bool
	FilterPosition float64
	ReverbMix      float64
	EQLowDB        float64
	EQMidDB        float64
	EQHighDB       float64
	Levels         dsp.Levels
}

// Snapshot reads the deck state without locking.
func (e *Engine) Snapshot(id deck.ID) (DeckSnapshot, error) {
	d, err := e.deckByID(id)
	if err != nil {
		return DeckSnapshot{}, err
	}

	s := DeckSnapshot{
		State:          d.State(),
		PositionFrames: d.Position(),
		DurationFrames: d.Duration(),
		Rate:           d.Rate(),
		Volume:         d.Volume(),
		Gain:           d.Gain(),
		BPM:            d.BPM().Value(),
		Beat:           int(e.beatCount[id].Load()),
		LoopActive:     d.LoopActive(),
		FilterPosition: d.FilterPosition(),
		ReverbMix:      d.ReverbMix(),
		Levels:         d.Levels(),
	}
	s.EQLowDB, s.EQMidDB, s.EQHighDB = d.EQ()
	if t := d.Track(); t != nil {
		s.Path, s.Title, s.Artist = t.Path, t.Title, t.Artist
	}
	return s, nil
}

// MixerSnapshot is a point-in-time view of the master bus.
type MixerSnapshot struct {
	Crossfader      float64
	Curve           float64
	MasterVolume    float64
	HeadphoneVolume float64
	HeadphoneMix    float64
	LimiterEnabled  bool
	Master          dsp.Levels
	Mic             dsp.Levels
	TalkoverState   string
	RingOverruns    int64
	EventsDropped   int64
}

// MixerState reads the master bus state without locking.
func (e *Engine) MixerState() MixerSnapshot {
	return MixerSnapshot{
		Crossfader:      e.mixer.Crossfader().Position(),
		Curve:           e.mixer.Crossfader().Curve(),
		MasterVolume:    e.mixer.MasterVolume(),
		HeadphoneVolume: e.mixer.HeadphoneVolume(),
		HeadphoneMix:    e.mixer.HeadphoneMix(),
		LimiterEnabled:  e.mixer.Limiter().Enabled,
		Master:          e.mixer.Levels(),
		Mic:             e.mic.Levels(),
		TalkoverState:   e.mic.Talkover().State().String(),
		RingOverruns:    e.ring.Overruns(),
		EventsDropped:   e.events.Dropped(),
	}
}

// Spectrum returns the latest master-bus band energies, nil when disabled.
func (e *Engine) Spectrum() []float64 { return e.mixer.Spectrum().Read() }

// DeckWaveform analyzes the track loaded on the deck. Runs the full offline
// analyzer on the calling goroutine.
func (e *Engine) DeckWaveform(id deck.ID, targetPoints int) (*analyzer.Waveform, error) {
	d, err := e.deckByID(id)
	if err != nil {
		return nil, err
	}
	t := d.Track()
	if t == nil {
		return nil, fmt.Errorf("deck %s: no track loaded", id)
	}
	return analyzer.Analyze(t.Path, analyzer.Options{TargetPoints: targetPoints})
}

// ringSource adapts the master ring to the stream worker. Reads are
// all-or-nothing at block granularity so the encoder always sees whole
// blocks.
type ringSource struct {
	ring        *Ring
	sampleRate  int
	blockFrames int
}

func (s *ringSource) ReadFrames(out []float32) int {
	if s.ring.Len() < len(out) {
		return 0
	}
	return s.ring.Read(out) / 2
}

func (s *ringSource) SampleRate() int  { return s.sampleRate }
func (s *ringSource) BlockFrames() int { return s.blockFrames }
