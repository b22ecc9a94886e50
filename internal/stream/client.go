// ABOUTME: Stream source client: worker loop, status machine, reconnect
// ABOUTME: Pulls master audio, encodes, ships frames, tracks statistics
package stream

import (
	"errors"
	"fmt"
	"log"
	"sync"
	sysatomic "sync/atomic"
	"time"

	"github.com/onestopradio/radiocore-go/internal/dsp"
	"github.com/onestopradio/radiocore-go/pkg/audio"
	"go.uber.org/atomic"
)

// Status is the stream connection state.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusStreaming
	StatusError
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusStreaming:
		return "streaming"
	case StatusError:
		return "error"
	case StatusReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

const (
	// Worker poll period while the source ring is empty.
	pollInterval = 10 * time.Millisecond

	// Per-send deadline, roughly twice a 1024-frame block at 48 kHz.
	sendTimeout = 50 * time.Millisecond
)

// Source supplies master-bus audio to the stream worker: interleaved stereo
// float frames at the engine rate.
type Source interface {
	// ReadFrames fills out with up to len(out)/2 frames, returning the
	// frame count actually read. Zero means no data is available yet.
	ReadFrames(out []float32) int
	SampleRate() int
	BlockFrames() int
}

// StatusFunc observes status transitions. Called from the worker or control
// thread, never from the audio callback.
type StatusFunc func(s Status, message string)

// Stats is an observable snapshot of the stream.
type Stats struct {
	Status        Status
	ConnectedMs   int64
	BytesSent     int64
	BitrateKbps   float64
	PeakLeft      float64
	PeakRight     float64
	Listeners     int
	Reconnects    int
	DroppedFrames int64
	MetaFailures  int64
	CurrentSong   string
	LastError     string
}

// Client is one outgoing stream. Configure/Connect/StartStreaming run on the
// control plane; a dedicated worker goroutine owns the transport and encoder
// while streaming.
type Client struct {
	mu        sync.Mutex // guards cfg, transport, worker lifecycle
	cfg       Config
	transport transport
	enc       Encoder

	status      atomic.Int32
	streaming   atomic.Bool
	bytesSent   atomic.Int64
	dropped     atomic.Int64
	metaFails   atomic.Int64
	reconnects  atomic.Int32
	connectedAt atomic.Int64 // unix ms, 0 when disconnected
	peakL       atomic.Float64
	peakR       atomic.Float64

	song     sysatomic.Pointer[string] // applied song
	pendSong sysatomic.Pointer[string] // staged for the worker
	lastErr  sysatomic.Pointer[string]

	onStatus StatusFunc

	stop chan struct{}
	done chan struct{}

	// Stream-side processing, independent of the monitor path.
	gain    atomic.Float64
	gate    *dsp.NoiseGate
	limiter *dsp.Limiter
}

// NewClient creates a disconnected client with the given configuration.
// onStatus may be nil.
func NewClient(cfg Config, onStatus StatusFunc) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, onStatus: onStatus}
	c.gain.Store(1.0)
	c.gate = dsp.NewNoiseGate(-90)
	c.gate.Enabled = false
	c.limiter = dsp.NewLimiter(cfg.Rate, dsp.LimiterParams{Enabled: false, ThresholdDB: -0.5, ReleaseMs: 50})
	return c, nil
}

// Configure replaces the configuration. Only valid while disconnected.
func (c *Client) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming.Load() || (c.Status() != StatusDisconnected && c.Status() != StatusError) {
		return fmt.Errorf("stream: cannot reconfigure while %s", c.Status())
	}
	c.cfg = cfg
	return nil
}

// Config returns a copy of the active configuration.
func (c *Client) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Status returns the connection state.
func (c *Client) Status() Status {
	return Status(c.status.Load())
}

// SetStreamGain sets the stream-side gain applied before encoding.
func (c *Client) SetStreamGain(g float64) {
	if g < 0 {
		g = 0
	}
	c.gain.Store(g)
}

// SetStreamLimiter switches the stream-side safety limiter.
func (c *Client) SetStreamLimiter(p dsp.LimiterParams) {
	c.mu.Lock()
	c.limiter.SetParams(p)
	c.mu.Unlock()
}

func (c *Client) setStatus(s Status, message string) {
	c.status.Store(int32(s))
	if message != "" {
		msg := message
		c.lastErr.Store(&msg)
	}
	if c.onStatus != nil {
		c.onStatus(s, message)
	}
}

// Connect dials the server and performs the source handshake.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.Status() {
	case StatusDisconnected, StatusError:
	default:
		return fmt.Errorf("stream: connect while %s", c.Status())
	}

	c.setStatus(StatusConnecting, "")
	t := newTransport(c.cfg)
	if err := t.Connect(); err != nil {
		c.setStatus(StatusError, err.Error())
		return err
	}

	c.transport = t
	c.connectedAt.Store(time.Now().UnixMilli())
	c.setStatus(StatusConnected, "")
	log.Printf("stream: connected to %s:%d%s (%s/%s %d kbps)",
		c.cfg.Host, c.cfg.Port, c.cfg.Mount, c.cfg.Protocol, c.cfg.Codec, c.cfg.Bitrate)
	return nil
}

// StartStreaming launches the worker pulling from src. Valid from Connected;
// idempotent from Streaming.
func (c *Client) StartStreaming(src Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.Status() {
	case StatusStreaming:
		return nil
	case StatusConnected:
	default:
		return fmt.Errorf("stream: start while %s", c.Status())
	}

	enc, err := NewEncoder(c.cfg)
	if err != nil {
		c.setStatus(StatusError, err.Error())
		return err
	}
	if hdr := enc.Header(); len(hdr) > 0 {
		if err := c.transport.Write(hdr); err != nil {
			enc.Close()
			c.setStatus(StatusError, err.Error())
			return err
		}
		c.bytesSent.Add(int64(len(hdr)))
	}

	c.enc = enc
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.streaming.Store(true)
	c.setStatus(StatusStreaming, "")
	go c.worker(src, c.stop, c.done)
	return nil
}

// StopStreaming stops the worker but leaves the session connected.
func (c *Client) StopStreaming() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopWorkerLocked()
	if c.Status() == StatusStreaming {
		c.setStatus(StatusConnected, "")
	}
}

// Disconnect stops the worker and closes the connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopWorkerLocked()
	if c.transport != nil {
		c.transport.Close()
		c.transport = nil
	}
	c.connectedAt.Store(0)
	c.setStatus(StatusDisconnected, "")
}

func (c *Client) stopWorkerLocked() {
	if !c.streaming.Swap(false) {
		return
	}
	close(c.stop)
	<-c.done
	if c.enc != nil {
		c.enc.Close()
		c.enc = nil
	}
}

// UpdateMetadata composes "Artist - Title" (or just the title) and stages it
// for the next safe boundary.
func (c *Client) UpdateMetadata(artist, title string) {
	song := title
	if artist != "" {
		song = artist + " - " + title
	}
	c.pendSong.Store(&song)
}

// CurrentSong returns the most recently applied metadata string.
func (c *Client) CurrentSong() string {
	if s := c.song.Load(); s != nil {
		return *s
	}
	return ""
}

// Stats returns an observable snapshot. BytesSent and ConnectedMs are
// non-decreasing for the lifetime of a connection.
func (c *Client) Stats() Stats {
	st := Stats{
		Status:        c.Status(),
		BytesSent:     c.bytesSent.Load(),
		PeakLeft:      c.peakL.Load(),
		PeakRight:     c.peakR.Load(),
		Reconnects:    int(c.reconnects.Load()),
		DroppedFrames: c.dropped.Load(),
		MetaFailures:  c.metaFails.Load(),
		CurrentSong:   c.CurrentSong(),
	}
	if e := c.lastErr.Load(); e != nil {
		st.LastError = *e
	}
	if at := c.connectedAt.Load(); at > 0 {
		st.ConnectedMs = time.Now().UnixMilli() - at
		if st.ConnectedMs > 0 {
			st.BitrateKbps = float64(st.BytesSent) * 8 / float64(st.ConnectedMs)
		}
	}
	return st
}

// worker is the dedicated streaming loop: read master frames, process,
// resample, encode, send. It owns transport and encoder until it returns.
func (c *Client) worker(src Source, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	cfg := c.Config()
	blockFrames := src.BlockFrames()
	blockDur := time.Duration(blockFrames) * time.Second / time.Duration(src.SampleRate())

	in := make([]float32, blockFrames*2)
	resampler := dsp.NewResampler(src.SampleRate(), cfg.Rate)
	var resampled []float32
	var starved time.Duration

	for {
		select {
		case <-stop:
			return
		default:
		}

		c.applyPendingMetadata(cfg)

		n := src.ReadFrames(in)
		if n == 0 {
			// Brief wait, then retry; after more than one block of
			// starvation, keep the stream alive with silence.
			select {
			case <-stop:
				return
			case <-time.After(pollInterval):
			}
			starved += pollInterval
			if starved <= blockDur {
				continue
			}
			n = blockFrames
			for i := range in {
				in[i] = 0
			}
		} else {
			starved = 0
		}

		block := in[:n*2]
		c.processBlock(block)

		resampled = resampler.Process(block, resampled[:0])
		pcm := make([]int16, len(resampled))
		for i, s := range resampled {
			pcm[i] = audio.SampleToInt16(s)
		}

		frames, err := c.enc.Encode(pcm)
		if err == nil && len(frames) > 0 {
			err = c.transport.Write(frames)
			if err == nil {
				c.bytesSent.Add(int64(len(frames)))
			}
		}
		if err != nil {
			c.dropped.Add(int64(n))
			if !c.recover(src, cfg, err, stop) {
				return
			}
			resampler = dsp.NewResampler(src.SampleRate(), cfg.Rate)
		}
	}
}

func (c *Client) applyPendingMetadata(cfg Config) {
	song := c.pendSong.Swap(nil)
	if song == nil || !cfg.MetadataEnabled {
		return
	}
	if err := c.transport.UpdateMetadata(*song); err != nil {
		c.metaFails.Add(1)
		log.Printf("stream: metadata update failed: %v", err)
		return
	}
	c.song.Store(song)
}

func (c *Client) processBlock(block []float32) {
	if g := float32(c.gain.Load()); g != 1.0 {
		for i := range block {
			block[i] *= g
		}
	}
	c.gate.ProcessBlock(block)
	c.limiter.ProcessBlock(block)

	var pl, pr float32
	for i := 0; i < len(block); i += 2 {
		if v := abs32(block[i]); v > pl {
			pl = v
		}
		if v := abs32(block[i+1]); v > pr {
			pr = v
		}
	}
	c.peakL.Store(float64(pl))
	c.peakR.Store(float64(pr))
}

// recover handles a mid-stream failure: publish Error, then retry the
// connection per the reconnect policy. Returns false when the worker should
// exit. Audio buffered during the gap is discarded, not queued.
func (c *Client) recover(src Source, cfg Config, cause error, stop <-chan struct{}) bool {
	c.setStatus(StatusError, cause.Error())
	c.transport.Close()

	if !cfg.AutoReconnect {
		return false
	}

	for cfg.Unbounded() || int(c.reconnects.Load()) < cfg.MaxAttempts {
		select {
		case <-stop:
			return false
		case <-time.After(cfg.ReconnectDelay):
		}
		c.reconnects.Inc()
		c.setStatus(StatusReconnecting, "")
		c.setStatus(StatusConnecting, "")

		if err := c.transport.Connect(); err != nil {
			c.setStatus(StatusError, err.Error())
			if errors.Is(err, ErrProtocol) {
				// Credentials or mount are wrong; retrying cannot help.
				return false
			}
			continue
		}

		c.connectedAt.Store(time.Now().UnixMilli())
		c.setStatus(StatusConnected, "")
		if hdr := c.enc.Header(); len(hdr) > 0 {
			if err := c.transport.Write(hdr); err != nil {
				c.setStatus(StatusError, err.Error())
				continue
			}
			c.bytesSent.Add(int64(len(hdr)))
		}
		c.setStatus(StatusStreaming, "")

		// Live semantics: whatever piled up during the outage is stale.
		c.drainSource(src)
		return true
	}
	return false
}

func (c *Client) drainSource(src Source) {
	buf := make([]float32, src.BlockFrames()*2)
	for src.ReadFrames(buf) > 0 {
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
