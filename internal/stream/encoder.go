// ABOUTME: Codec frame encoders: native Opus-in-Ogg and ffmpeg-piped codecs
// ABOUTME: Interleaved int16 PCM in, wire-ready codec bytes out
package stream

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	opus "gopkg.in/hraban/opus.v2"
)

// Encoder turns interleaved int16 PCM at the stream rate into codec bytes
// ready for the transport. Only the stream worker calls it.
type Encoder interface {
	// Header returns bytes that must be sent once, right after the
	// handshake (the Ogg preamble for Opus). May be nil.
	Header() []byte
	// Encode consumes PCM and returns any codec bytes produced. Encoders
	// buffer internally; an empty return is normal.
	Encode(pcm []int16) ([]byte, error)
	Close() error
}

// NewEncoder builds the encoder for the configured codec.
func NewEncoder(cfg Config) (Encoder, error) {
	if cfg.Codec == CodecOpus {
		return newOpusEncoder(cfg)
	}
	return newFFmpegEncoder(cfg)
}

// opusSerial tags the single logical Ogg stream per connection.
const opusSerial = 0x05f5e100

type opusEncoder struct {
	enc      *opus.Encoder
	ogg      *oggWriter
	channels int

	frameSize   int // samples per channel, 20 ms
	granule     uint64
	granuleStep uint64 // 48 kHz units per frame

	acc    []int16
	packet []byte
	header []byte
}

func newOpusEncoder(cfg Config) (*opusEncoder, error) {
	enc, err := opus.NewEncoder(cfg.Rate, cfg.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus init: %w: %v", ErrEncoder, err)
	}
	if err := enc.SetBitrate(cfg.Bitrate * 1000); err != nil {
		return nil, fmt.Errorf("opus bitrate: %w: %v", ErrEncoder, err)
	}

	e := &opusEncoder{
		enc:         enc,
		ogg:         newOggWriter(opusSerial),
		channels:    cfg.Channels,
		frameSize:   cfg.Rate / 50,
		granuleStep: uint64(48000 / 50),
		packet:      make([]byte, 4000),
	}

	head, err := e.ogg.page(opusHead(cfg.Channels, cfg.Rate), 0, oggBOS)
	if err != nil {
		return nil, err
	}
	tags, err := e.ogg.page(opusTags(cfg.UserAgent), 0, 0)
	if err != nil {
		return nil, err
	}
	e.header = append(head, tags...)
	return e, nil
}

func (e *opusEncoder) Header() []byte { return e.header }

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	e.acc = append(e.acc, pcm...)

	var out []byte
	need := e.frameSize * e.channels
	for len(e.acc) >= need {
		n, err := e.enc.Encode(e.acc[:need], e.packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w: %v", ErrEncoder, err)
		}
		e.acc = e.acc[need:]
		e.granule += e.granuleStep

		page, err := e.ogg.page(e.packet[:n], e.granule, 0)
		if err != nil {
			return nil, fmt.Errorf("opus page: %w: %v", ErrEncoder, err)
		}
		out = append(out, page...)
	}
	return out, nil
}

func (e *opusEncoder) Close() error { return nil }

// ffmpegEncoder pipes PCM through an ffmpeg child process. Used for MP3,
// Vorbis, and AAC, where no production-quality native Go encoder exists.
type ffmpegEncoder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu   sync.Mutex
	out  []byte
	fail error

	done chan struct{}
}

func codecArgs(cfg Config) []string {
	switch cfg.Codec {
	case CodecVorbis:
		return []string{"-f", "ogg", "-codec:a", "libvorbis"}
	case CodecAAC:
		return []string{"-f", "adts", "-codec:a", "aac"}
	default:
		return []string{"-f", "mp3", "-codec:a", "libmp3lame"}
	}
}

func newFFmpegEncoder(cfg Config) (*ffmpegEncoder, error) {
	args := []string{
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprint(cfg.Rate),
		"-ac", fmt.Sprint(cfg.Channels),
		"-i", "pipe:0",
	}
	args = append(args, codecArgs(cfg)...)
	args = append(args, "-b:a", fmt.Sprintf("%dk", cfg.Bitrate), "pipe:1")

	cmd := exec.Command("ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w: %v", ErrEncoder, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w: %v", ErrEncoder, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w: %v", ErrEncoder, err)
	}

	e := &ffmpegEncoder{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	go e.drain(stdout)
	return e, nil
}

func (e *ffmpegEncoder) drain(r io.Reader) {
	defer close(e.done)
	buf := make([]byte, 16*1024)
	for {
		n, err := r.Read(buf)
		e.mu.Lock()
		if n > 0 {
			e.out = append(e.out, buf[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				e.fail = fmt.Errorf("ffmpeg read: %w: %v", ErrEncoder, err)
			}
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

func (e *ffmpegEncoder) Header() []byte { return nil }

func (e *ffmpegEncoder) Encode(pcm []int16) ([]byte, error) {
	raw := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}
	if _, err := e.stdin.Write(raw); err != nil {
		return nil, fmt.Errorf("ffmpeg write: %w: %v", ErrEncoder, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	if len(e.out) == 0 {
		return nil, nil
	}
	out := e.out
	e.out = nil
	return out, nil
}

func (e *ffmpegEncoder) Close() error {
	e.stdin.Close()
	<-e.done
	return e.cmd.Wait()
}
