// ABOUTME: Waveform serialization: JSON export and the OSRWF v1 binary form
// ABOUTME: Binary layout is little-endian, fields in declaration order
package analyzer

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	osrwfMagic   = "OSRWF"
	osrwfVersion = 1

	// Hard ceilings so a corrupt header cannot drive huge allocations.
	maxPathLen   = 64 * 1024
	maxNumPoints = 1 << 24
)

type jsonMetadata struct {
	Duration     float64 `json:"duration"`
	SampleRate   uint32  `json:"sample_rate"`
	Channels     uint32  `json:"channels"`
	TotalSamples uint32  `json:"total_samples"`
	GlobalPeak   float32 `json:"global_peak"`
	DynamicRange float32 `json:"dynamic_range"`
	FilePath     string  `json:"file_path"`
	FileSize     int64   `json:"file_size"`
	WindowSize   uint32  `json:"window_size"`
	HopSize      uint32  `json:"hop_size"`
	Resolution   float64 `json:"resolution"`
	NumPoints    int     `json:"num_points"`
}

type jsonPoint struct {
	Amp    float32 `json:"amp"`
	Peak   float32 `json:"peak"`
	Freq   float32 `json:"freq"`
	Low    float32 `json:"low"`
	Mid    float32 `json:"mid"`
	High   float32 `json:"high"`
	Time   float64 `json:"time"`
	Sample uint32  `json:"sample"`
}

type jsonWaveform struct {
	Metadata jsonMetadata `json:"metadata"`
	Waveform []jsonPoint  `json:"waveform"`
}

// JSON renders the waveform in the human-readable export form.
func (w *Waveform) JSON() ([]byte, error) {
	out := jsonWaveform{
		Metadata: jsonMetadata{
			Duration:     w.Duration,
			SampleRate:   w.SampleRate,
			Channels:     w.Channels,
			TotalSamples: w.TotalSamples,
			GlobalPeak:   w.GlobalPeak,
			DynamicRange: w.DynamicRange,
			FilePath:     w.Path,
			FileSize:     w.FileSize,
			WindowSize:   w.WindowSize,
			HopSize:      w.HopSize,
			Resolution:   w.Resolution,
			NumPoints:    len(w.Points),
		},
		Waveform: make([]jsonPoint, len(w.Points)),
	}
	for i, p := range w.Points {
		out.Waveform[i] = jsonPoint{
			Amp:    p.Amplitude,
			Peak:   p.Peak,
			Freq:   p.FrequencyEnergy,
			Low:    p.Low,
			Mid:    p.Mid,
			High:   p.High,
			Time:   p.Timestamp,
			Sample: p.SampleIndex,
		}
	}
	return json.Marshal(out)
}

// EncodeBinary writes the OSRWF v1 form.
func (w *Waveform) EncodeBinary(out io.Writer) error {
	bw := bufio.NewWriter(out)

	if _, err := bw.WriteString(osrwfMagic); err != nil {
		return fmt.Errorf("write waveform: %w", err)
	}
	fields := []any{
		uint32(osrwfVersion),
		w.Duration,
		w.SampleRate,
		w.Channels,
		w.TotalSamples,
		w.GlobalPeak,
		w.DynamicRange,
		w.WindowSize,
		w.HopSize,
		w.Resolution,
		uint32(len(w.Path)),
	}
	for _, f := range fields {
		if err := binary.Write(bw, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("write waveform: %w", err)
		}
	}
	if _, err := bw.WriteString(w.Path); err != nil {
		return fmt.Errorf("write waveform: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(w.Points))); err != nil {
		return fmt.Errorf("write waveform: %w", err)
	}

	for i := range w.Points {
		p := &w.Points[i]
		for _, f := range []any{
			p.Amplitude, p.Peak, p.FrequencyEnergy,
			p.Low, p.Mid, p.High,
			p.Timestamp, p.SampleIndex,
		} {
			if err := binary.Write(bw, binary.LittleEndian, f); err != nil {
				return fmt.Errorf("write waveform point %d: %w", i, err)
			}
		}
	}
	return bw.Flush()
}

// DecodeBinary reads one OSRWF v1 record.
func DecodeBinary(in io.Reader) (*Waveform, error) {
	br := bufio.NewReader(in)

	magic := make([]byte, len(osrwfMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}
	if string(magic) != osrwfMagic {
		return nil, fmt.Errorf("read waveform: bad magic %q", magic)
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}
	if version != osrwfVersion {
		return nil, fmt.Errorf("read waveform: unsupported version %d", version)
	}

	w := &Waveform{}
	var pathLen uint32
	for _, f := range []any{
		&w.Duration,
		&w.SampleRate,
		&w.Channels,
		&w.TotalSamples,
		&w.GlobalPeak,
		&w.DynamicRange,
		&w.WindowSize,
		&w.HopSize,
		&w.Resolution,
		&pathLen,
	} {
		if err := binary.Read(br, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("read waveform: %w", err)
		}
	}
	if pathLen > maxPathLen {
		return nil, fmt.Errorf("read waveform: path length %d", pathLen)
	}
	path := make([]byte, pathLen)
	if _, err := io.ReadFull(br, path); err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}
	w.Path = string(path)

	var numPoints uint32
	if err := binary.Read(br, binary.LittleEndian, &numPoints); err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}
	if numPoints > maxNumPoints {
		return nil, fmt.Errorf("read waveform: %d points", numPoints)
	}

	w.Points = make([]Point, numPoints)
	for i := range w.Points {
		p := &w.Points[i]
		for _, f := range []any{
			&p.Amplitude, &p.Peak, &p.FrequencyEnergy,
			&p.Low, &p.Mid, &p.High,
			&p.Timestamp, &p.SampleIndex,
		} {
			if err := binary.Read(br, binary.LittleEndian, f); err != nil {
				return nil, fmt.Errorf("read waveform point %d: %w", i, err)
			}
		}
	}
	return w, nil
}

// WriteFile writes the OSRWF binary to path.
func (w *Waveform) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write waveform: %w", err)
	}
	if err := w.EncodeBinary(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads an OSRWF binary from path.
func ReadFile(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}
	defer f.Close()
	return DecodeBinary(f)
}
