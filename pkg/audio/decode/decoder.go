// ABOUTME: File decoder entry point
// ABOUTME: Probes format by extension and decodes whole files to float32 tracks
package decode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// Error kinds surfaced to callers. Load failures leave the deck untouched.
var (
	ErrFileNotFound      = errors.New("audio file not found")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrDecodeFailed      = errors.New("audio decode failed")
)

// FileDecoder decodes one container/codec family into a whole track.
type FileDecoder interface {
	// Decode reads and decodes the file at path in full.
	Decode(path string) (*audio.Track, error)
}

var decoders = map[string]FileDecoder{
	".wav":  WAVDecoder{},
	".aiff": AIFFDecoder{},
	".aif":  AIFFDecoder{},
	".flac": FLACDecoder{},
	".mp3":  MP3Decoder{},
	".ogg":  VorbisDecoder{},
	".oga":  VorbisDecoder{},
	".aac":  FFmpegDecoder{},
	".m4a":  FFmpegDecoder{},
}

// SupportedExtensions lists the file extensions ReadFile accepts.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	return exts
}

// ReadFile decodes an audio file in full. The returned track holds interleaved
// float32 samples at the file's native rate (AAC/M4A are delivered at the
// engine rate, see ffmpeg.go).
func ReadFile(path string) (*audio.Track, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrFileNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	track, err := dec.Decode(path)
	if err != nil {
		return nil, err
	}

	track.Path = path
	track.FileSize = info.Size()
	if track.Gain == 0 {
		track.Gain = 1.0
	}
	if track.Title == "" {
		base := filepath.Base(path)
		track.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return track, nil
}
