// ABOUTME: FLAC file decoder
// ABOUTME: Decodes FLAC files to float32 tracks via mewkiz/flac
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// FLACDecoder decodes FLAC files frame by frame.
type FLACDecoder struct{}

func (FLACDecoder) Decode(path string) (*audio.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("%w: flac: %v", ErrUnsupportedFormat, err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	var samples []float32
	if info.NSamples > 0 {
		samples = make([]float32, 0, int(info.NSamples)*channels)
	}

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: flac: %v", ErrDecodeFailed, err)
		}

		// Subframes are planar; interleave them.
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for c := 0; c < channels; c++ {
				samples = append(samples, float32(frame.Subframes[c].Samples[i])/scale)
			}
		}
	}

	return &audio.Track{
		Format: audio.Format{
			SampleRate: int(info.SampleRate),
			Channels:   channels,
		},
		Samples: samples,
	}, nil
}
