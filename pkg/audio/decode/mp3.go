// ABOUTME: MP3 file decoder
// ABOUTME: Decodes MP3 files to float32 tracks via go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// MP3Decoder decodes MPEG layer 3 files. go-mp3 always emits 16-bit
// little-endian stereo at the file's sample rate.
type MP3Decoder struct{}

func (MP3Decoder) Decode(path string) (*audio.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %v", ErrUnsupportedFormat, err)
	}

	var pcm []byte
	buf := make([]byte, 32768)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: mp3: %v", ErrDecodeFailed, err)
		}
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	return &audio.Track{
		Format: audio.Format{
			SampleRate: dec.SampleRate(),
			Channels:   2,
		},
		Samples: samples,
	}, nil
}
