// ABOUTME: Audio device backends: portaudio duplex, oto monitor, null
// ABOUTME: Render callback contract plus device enumeration by opaque id
package engine

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gordonklaus/portaudio"
	"github.com/onestopradio/radiocore-go/pkg/audio"
)

// RenderFunc produces one block: in carries captured mic frames (silence
// when no input exists), out receives the monitor mix. Both are interleaved
// stereo of equal length. Called on the device's audio thread.
type RenderFunc func(in, out []float32)

// Device drives the render callback at the engine block cadence.
type Device interface {
	Start(render RenderFunc) error
	Stop() error
	Name() string
}

// DeviceInfo describes one host device. ID is opaque to callers.
type DeviceInfo struct {
	ID      string
	Name    string
	Inputs  int
	Outputs int
}

// ListInputs enumerates capture-capable host devices.
func ListInputs() ([]DeviceInfo, error) {
	return listDevices(true)
}

// ListOutputs enumerates playback-capable host devices.
func ListOutputs() ([]DeviceInfo, error) {
	return listDevices(false)
}

func listDevices(inputs bool) ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("device enumeration: %w", err)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("device enumeration: %w", err)
	}

	var out []DeviceInfo
	for i, d := range devs {
		if inputs && d.MaxInputChannels == 0 {
			continue
		}
		if !inputs && d.MaxOutputChannels == 0 {
			continue
		}
		out = append(out, DeviceInfo{
			ID:      fmt.Sprintf("pa:%d", i),
			Name:    d.Name,
			Inputs:  d.MaxInputChannels,
			Outputs: d.MaxOutputChannels,
		})
	}
	return out, nil
}

// deviceIndex parses an opaque "pa:N" device id.
func deviceIndex(id string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(id, "pa:%d", &n); err != nil || n < 0 {
		return 0, fmt.Errorf("bad device id %q", id)
	}
	return n, nil
}

// OpenDevice opens the best available backend: portaudio duplex first, the
// oto output (no capture) second, a clocked null device last. inputID and
// outputID are enumeration ids; empty selects the host defaults. The
// returned message is non-empty when a fallback happened.
func OpenDevice(sampleRate, blockFrames int, inputID, outputID string) (Device, string) {
	pa := &paDevice{
		sampleRate:  sampleRate,
		blockFrames: blockFrames,
		inputID:     inputID,
		outputID:    outputID,
	}
	if err := pa.probe(); err == nil {
		return pa, ""
	} else {
		log.Printf("engine: duplex device unavailable: %v", err)
	}

	o := &otoDevice{sampleRate: sampleRate, blockFrames: blockFrames}
	if err := o.probe(); err == nil {
		return o, "no duplex device; monitor output only, mic disabled"
	} else {
		log.Printf("engine: monitor output unavailable: %v", err)
	}

	return &nullDevice{sampleRate: sampleRate, blockFrames: blockFrames},
		"no audio device; running on the null clock"
}

// paDevice is the duplex portaudio backend.
type paDevice struct {
	sampleRate  int
	blockFrames int
	inputID     string // "pa:N", empty = default
	outputID    string
	stream      *portaudio.Stream
	initialized bool
}

func (d *paDevice) Name() string { return "portaudio" }

func (d *paDevice) probe() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	d.initialized = true
	if _, err := portaudio.DefaultOutputDevice(); err != nil {
		d.terminate()
		return err
	}
	return nil
}

// open builds the duplex stream, honoring device selections when present.
func (d *paDevice) open(render RenderFunc) (*portaudio.Stream, error) {
	cb := func(in, out []float32) { render(in, out) }
	if d.inputID == "" && d.outputID == "" {
		return portaudio.OpenDefaultStream(
			audio.DefaultChannels, audio.DefaultChannels,
			float64(d.sampleRate), d.blockFrames, cb,
		)
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	inDev, err := resolveDevice(devs, d.inputID, portaudio.DefaultInputDevice)
	if err != nil {
		return nil, err
	}
	outDev, err := resolveDevice(devs, d.outputID, portaudio.DefaultOutputDevice)
	if err != nil {
		return nil, err
	}

	params := portaudio.HighLatencyParameters(inDev, outDev)
	params.SampleRate = float64(d.sampleRate)
	params.FramesPerBuffer = d.blockFrames
	if inDev != nil && inDev.MaxInputChannels >= audio.DefaultChannels {
		params.Input.Channels = audio.DefaultChannels
	}
	if outDev != nil && outDev.MaxOutputChannels >= audio.DefaultChannels {
		params.Output.Channels = audio.DefaultChannels
	}
	return portaudio.OpenStream(params, cb)
}

// resolveDevice maps a "pa:N" id to its DeviceInfo, or the host default
// when the id is empty.
func resolveDevice(devs []*portaudio.DeviceInfo, id string, def func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if id == "" {
		return def()
	}
	n, err := deviceIndex(id)
	if err != nil {
		return nil, err
	}
	if n >= len(devs) {
		return nil, fmt.Errorf("no such device %q", id)
	}
	return devs[n], nil
}

func (d *paDevice) Start(render RenderFunc) error {
	if !d.initialized {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
		d.initialized = true
	}

	stream, err := d.open(render)
	if err != nil {
		d.terminate()
		return fmt.Errorf("open duplex stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		d.terminate()
		return fmt.Errorf("start duplex stream: %w", err)
	}
	d.stream = stream
	log.Printf("engine: portaudio duplex at %d Hz, %d-frame blocks", d.sampleRate, d.blockFrames)
	return nil
}

func (d *paDevice) Stop() error {
	if d.stream != nil {
		d.stream.Stop()
		d.stream.Close()
		d.stream = nil
	}
	d.terminate()
	return nil
}

func (d *paDevice) terminate() {
	if d.initialized {
		portaudio.Terminate()
		d.initialized = false
	}
}

// otoDevice is the output-only monitor backend. The persistent player pulls
// from a pipe; a writer goroutine renders blocks with silent input.
type otoDevice struct {
	sampleRate  int
	blockFrames int

	otoCtx *oto.Context
	player *oto.Player
	pipeR  *io.PipeReader
	pipeW  *io.PipeWriter
	stop   chan struct{}
	done   chan struct{}
}

func (d *otoDevice) Name() string { return "oto" }

func (d *otoDevice) probe() error {
	if d.otoCtx != nil {
		return nil
	}
	op := &oto.NewContextOptions{
		SampleRate:   d.sampleRate,
		ChannelCount: audio.DefaultChannels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return err
	}
	<-ready
	d.otoCtx = ctx
	return nil
}

func (d *otoDevice) Start(render RenderFunc) error {
	if err := d.probe(); err != nil {
		return fmt.Errorf("oto context: %w", err)
	}

	d.pipeR, d.pipeW = io.Pipe()
	d.player = d.otoCtx.NewPlayer(d.pipeR)
	d.player.Play()
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	go d.writeLoop(render)
	log.Printf("engine: oto monitor output at %d Hz (no capture)", d.sampleRate)
	return nil
}

func (d *otoDevice) writeLoop(render RenderFunc) {
	defer close(d.done)

	in := make([]float32, d.blockFrames*2) // always silent, no capture
	out := make([]float32, d.blockFrames*2)
	raw := make([]byte, d.blockFrames*2*2)

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		render(in, out)
		for i, s := range out {
			binary.LittleEndian.PutUint16(raw[i*2:], uint16(audio.SampleToInt16(s)))
		}
		// Blocks until the player consumes; this paces the render loop.
		if _, err := d.pipeW.Write(raw); err != nil {
			return
		}
	}
}

func (d *otoDevice) Stop() error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.pipeR.Close()
	d.pipeW.Close()
	<-d.done
	if d.player != nil {
		d.player.Close()
		d.player = nil
	}
	if d.otoCtx != nil {
		d.otoCtx.Suspend()
	}
	d.stop = nil
	return nil
}

// nullDevice clocks the render callback from a timer and discards output.
// Keeps the engine (and the stream path) running with no sound card.
type nullDevice struct {
	sampleRate  int
	blockFrames int
	stop        chan struct{}
	done        chan struct{}
}

func (d *nullDevice) Name() string { return "null" }

func (d *nullDevice) Start(render RenderFunc) error {
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	interval := time.Duration(d.blockFrames) * time.Second / time.Duration(d.sampleRate)

	go func() {
		defer close(d.done)
		in := make([]float32, d.blockFrames*2)
		out := make([]float32, d.blockFrames*2)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				render(in, out)
			}
		}
	}()
	log.Printf("engine: null device clocking %d-frame blocks", d.blockFrames)
	return nil
}

func (d *nullDevice) Stop() error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	<-d.done
	d.stop = nil
	return nil
}
