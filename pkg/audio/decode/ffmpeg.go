// ABOUTME: AAC/M4A file decoder
// ABOUTME: Decodes via an ffmpeg child process emitting raw float32 PCM
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// FFmpegDecoder handles formats with no native Go decoder (AAC, M4A). ffmpeg
// emits f32le stereo at the engine rate, so these tracks never need a second
// resampling pass.
type FFmpegDecoder struct{}

func (FFmpegDecoder) Decode(path string) (*audio.Track, error) {
	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(audio.DefaultChannels),
		"-ar", strconv.Itoa(audio.DefaultSampleRate),
		"pipe:1",
	)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrDecodeFailed, err, errBuf.String())
	}

	raw := out.Bytes()
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no audio", ErrDecodeFailed)
	}

	return &audio.Track{
		Format: audio.Format{
			SampleRate: audio.DefaultSampleRate,
			Channels:   audio.DefaultChannels,
		},
		Samples: samples,
	}, nil
}
