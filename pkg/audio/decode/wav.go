// ABOUTME: WAV file decoder
// ABOUTME: Decodes RIFF/WAVE PCM files to float32 tracks via go-audio
package decode

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// WAVDecoder decodes RIFF/WAVE PCM files.
type WAVDecoder struct{}

func (WAVDecoder) Decode(path string) (*audio.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: wav: %v", ErrDecodeFailed, err)
	}

	bitDepth := int(dec.BitDepth)
	samples := intToFloat32(buf.Data, bitDepth)

	return &audio.Track{
		Format: audio.Format{
			SampleRate: buf.Format.SampleRate,
			Channels:   buf.Format.NumChannels,
		},
		Samples: samples,
	}, nil
}

// intToFloat32 normalizes go-audio int samples by bit depth.
func intToFloat32(data []int, bitDepth int) []float32 {
	var maxVal float32
	switch bitDepth {
	case 8:
		maxVal = 128.0
	case 16:
		maxVal = 32768.0
	case 24:
		maxVal = 8388608.0
	case 32:
		maxVal = 2147483648.0
	default:
		maxVal = 32768.0
	}

	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / maxVal
	}
	return out
}
