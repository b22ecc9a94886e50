// ABOUTME: Stream configuration: protocol, codec, bitrate, server, metadata
// ABOUTME: Validation tables for codec/protocol/bitrate/rate combinations
package stream

import (
	"fmt"
	"time"
)

// Protocol selects the source-client handshake shape.
type Protocol int

const (
	Icecast2 Protocol = iota
	SHOUTcast
)

func (p Protocol) String() string {
	if p == SHOUTcast {
		return "shoutcast"
	}
	return "icecast2"
}

// Codec selects the stream encoding.
type Codec int

const (
	CodecMP3 Codec = iota
	CodecVorbis
	CodecOpus
	CodecAAC
)

func (c Codec) String() string {
	switch c {
	case CodecMP3:
		return "mp3"
	case CodecVorbis:
		return "vorbis"
	case CodecOpus:
		return "opus"
	case CodecAAC:
		return "aac"
	}
	return "unknown"
}

// MimeType returns the Content-Type sent in the source handshake.
func (c Codec) MimeType() string {
	switch c {
	case CodecVorbis, CodecOpus:
		return "application/ogg"
	case CodecAAC:
		return "audio/aac"
	default:
		return "audio/mpeg"
	}
}

var (
	protocolCodecs = map[Protocol][]Codec{
		Icecast2:  {CodecMP3, CodecVorbis, CodecOpus, CodecAAC},
		SHOUTcast: {CodecMP3, CodecAAC},
	}

	codecBitrates = map[Codec][]int{
		CodecMP3:    {64, 96, 128, 160, 192, 256, 320},
		CodecVorbis: {64, 96, 128, 160, 192, 256},
		CodecOpus:   {64, 96, 128, 160, 192, 256},
		CodecAAC:    {64, 96, 128, 160, 192, 256, 320},
	}

	supportedRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000}

	// Opus frames are defined only at these rates.
	opusRates = []int{8000, 16000, 24000, 48000}
)

// ConfigError reports an invalid stream configuration. It is returned
// synchronously from Configure; nothing about the running stream changes.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("stream config: %s: %s", e.Field, e.Message)
}

// Config describes one outgoing stream. The zero value is not usable; start
// from DefaultConfig or a Builder.
type Config struct {
	Protocol Protocol
	Codec    Codec
	Bitrate  int // kbps
	Rate     int // stream sample rate, Hz
	Channels int

	Host     string
	Port     int
	Mount    string
	User     string
	Password string

	Name        string
	Description string
	Genre       string
	URL         string
	Public      bool

	MetadataEnabled bool
	UserAgent       string

	AutoReconnect  bool
	ReconnectDelay time.Duration
	MaxAttempts    int // negative means unbounded
	ConnectTimeout time.Duration
}

// DefaultConfig returns a local Icecast2 MP3 stream at 128 kbps.
func DefaultConfig() Config {
	return Config{
		Protocol:        Icecast2,
		Codec:           CodecMP3,
		Bitrate:         128,
		Rate:            44100,
		Channels:        2,
		Host:            "localhost",
		Port:            8000,
		Mount:           "/stream",
		User:            "source",
		Password:        "hackme",
		Name:            "OneStopRadio Stream",
		MetadataEnabled: true,
		UserAgent:       "OneStopRadio/1.0",
		AutoReconnect:   true,
		ReconnectDelay:  5 * time.Second,
		MaxAttempts:     -1,
		ConnectTimeout:  10 * time.Second,
	}
}

// Validate checks the configuration against the protocol, codec, bitrate,
// and sample-rate tables. It returns a *ConfigError describing the first
// violation found.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ConfigError{Field: "host", Message: "empty"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Field: "port", Message: fmt.Sprintf("%d out of range", c.Port)}
	}
	if c.Mount == "" || c.Mount[0] != '/' {
		return &ConfigError{Field: "mount", Message: "must start with /"}
	}
	if c.Channels != 1 && c.Channels != 2 {
		return &ConfigError{Field: "channels", Message: fmt.Sprintf("%d unsupported", c.Channels)}
	}

	if !containsCodec(protocolCodecs[c.Protocol], c.Codec) {
		return &ConfigError{
			Field:   "codec",
			Message: fmt.Sprintf("%s not allowed over %s", c.Codec, c.Protocol),
		}
	}
	if !containsInt(codecBitrates[c.Codec], c.Bitrate) {
		return &ConfigError{
			Field:   "bitrate",
			Message: fmt.Sprintf("%d kbps not supported for %s", c.Bitrate, c.Codec),
		}
	}
	if !containsInt(supportedRates, c.Rate) {
		return &ConfigError{Field: "rate", Message: fmt.Sprintf("%d Hz unsupported", c.Rate)}
	}
	if c.Codec == CodecOpus && !containsInt(opusRates, c.Rate) {
		return &ConfigError{
			Field:   "rate",
			Message: fmt.Sprintf("%d Hz not an opus rate (8, 16, 24, or 48 kHz)", c.Rate),
		}
	}
	return nil
}

// Unbounded reports whether reconnect attempts are unlimited.
func (c *Config) Unbounded() bool { return c.MaxAttempts < 0 }

func containsCodec(list []Codec, v Codec) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Builder assembles a Config fluently, starting from the defaults.
type Builder struct {
	cfg Config
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

func (b *Builder) Protocol(p Protocol) *Builder { b.cfg.Protocol = p; return b }
func (b *Builder) Codec(c Codec) *Builder       { b.cfg.Codec = c; return b }
func (b *Builder) Bitrate(kbps int) *Builder    { b.cfg.Bitrate = kbps; return b }
func (b *Builder) Rate(hz int) *Builder         { b.cfg.Rate = hz; return b }
func (b *Builder) Channels(n int) *Builder      { b.cfg.Channels = n; return b }

func (b *Builder) Server(host string, port int) *Builder {
	b.cfg.Host = host
	b.cfg.Port = port
	return b
}

func (b *Builder) Mount(mount string) *Builder { b.cfg.Mount = mount; return b }

func (b *Builder) Credentials(user, password string) *Builder {
	b.cfg.User = user
	b.cfg.Password = password
	return b
}

func (b *Builder) Station(name, description, genre, url string) *Builder {
	b.cfg.Name = name
	b.cfg.Description = description
	b.cfg.Genre = genre
	b.cfg.URL = url
	return b
}

func (b *Builder) Public(on bool) *Builder { b.cfg.Public = on; return b }

func (b *Builder) Reconnect(on bool, delay time.Duration, maxAttempts int) *Builder {
	b.cfg.AutoReconnect = on
	b.cfg.ReconnectDelay = delay
	b.cfg.MaxAttempts = maxAttempts
	return b
}

// Build validates and returns the assembled configuration.
func (b *Builder) Build() (Config, error) {
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}
