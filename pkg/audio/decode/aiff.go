// ABOUTME: AIFF file decoder
// ABOUTME: Decodes AIFF/AIFC PCM files to float32 tracks via go-audio
package decode

import (
	"fmt"
	"os"

	"github.com/go-audio/aiff"
	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// AIFFDecoder decodes AIFF PCM files.
type AIFFDecoder struct{}

func (AIFFDecoder) Decode(path string) (*audio.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	defer f.Close()

	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid AIFF file", ErrUnsupportedFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: aiff: %v", ErrDecodeFailed, err)
	}

	samples := intToFloat32(buf.Data, int(dec.BitDepth))

	return &audio.Track{
		Format: audio.Format{
			SampleRate: buf.Format.SampleRate,
			Channels:   buf.Format.NumChannels,
		},
		Samples: samples,
	}, nil
}
