// ABOUTME: Ogg Vorbis file decoder
// ABOUTME: Decodes Ogg Vorbis files to float32 tracks via jfreymuth/oggvorbis
package decode

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// VorbisDecoder decodes Ogg Vorbis files.
type VorbisDecoder struct{}

func (VorbisDecoder) Decode(path string) (*audio.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	defer f.Close()

	samples, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: vorbis: %v", ErrDecodeFailed, err)
	}

	return &audio.Track{
		Format: audio.Format{
			SampleRate: format.SampleRate,
			Channels:   format.Channels,
		},
		Samples: samples,
	}, nil
}
