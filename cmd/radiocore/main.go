// ABOUTME: Entry point for the radiocore engine console
// ABOUTME: Parses CLI flags, wires the engine, TUI, status feed, and mDNS
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onestopradio/radiocore-go/internal/deck"
	"github.com/onestopradio/radiocore-go/internal/discovery"
	"github.com/onestopradio/radiocore-go/internal/engine"
	"github.com/onestopradio/radiocore-go/internal/stream"
	"github.com/onestopradio/radiocore-go/internal/ui"
	"github.com/onestopradio/radiocore-go/internal/version"
	"github.com/onestopradio/radiocore-go/pkg/audio"
)

var (
	stationName = flag.String("name", "", "Station name (default: hostname-radiocore)")
	listDevices = flag.Bool("list-devices", false, "List audio devices and exit")
	inputDev    = flag.String("input", "", "Capture device id (see -list-devices)")
	outputDev   = flag.String("output", "", "Playback device id (see -list-devices)")
	trackA      = flag.String("deck-a", "", "Track to preload on deck A")
	trackB      = flag.String("deck-b", "", "Track to preload on deck B")
	logFile     = flag.String("log-file", "radiocore.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	statusPort  = flag.Int("status-port", 0, "Websocket status feed port (0 = disabled)")
	enableMDNS  = flag.Bool("mdns", false, "Advertise the status feed via mDNS")

	streamHost     = flag.String("icecast-host", "", "Icecast host (empty = no streaming)")
	streamPort     = flag.Int("icecast-port", 8000, "Icecast port")
	streamMount    = flag.String("icecast-mount", "/stream", "Mount point")
	streamUser     = flag.String("icecast-user", "source", "Source user")
	streamPassword = flag.String("icecast-password", "", "Source password")
	streamBitrate  = flag.Int("bitrate", 128, "Stream bitrate in kbps")
)

func main() {
	flag.Parse()
	useTUI := !*noTUI

	if *listDevices {
		printDevices()
		return
	}

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	name := *stationName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		name = fmt.Sprintf("%s-radiocore", hostname)
	}
	log.Printf("starting %s %s as %q", version.Product, version.Version, name)

	eng, err := engine.New(engine.DefaultConfig())
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer eng.Close()

	eng.SetCallbacks(engine.Callbacks{
		OnTrackLoaded: func(id deck.ID, track *audio.Track) {
			log.Printf("deck %s loaded %s (%s)", id, track.Path, track.Duration())
		},
		OnTrackEnded: func(id deck.ID) {
			log.Printf("deck %s reached end of track", id)
		},
		OnStreamStatus: func(status, message string) {
			if message != "" {
				log.Printf("stream %s: %s", status, message)
			} else {
				log.Printf("stream %s", status)
			}
		},
		OnDeviceError: func(message string) {
			log.Printf("audio device: %s", message)
		},
	})

	if *inputDev != "" {
		if err := eng.SelectInput(*inputDev); err != nil {
			log.Fatalf("input device: %v", err)
		}
	}
	if *outputDev != "" {
		if err := eng.SelectOutput(*outputDev); err != nil {
			log.Fatalf("output device: %v", err)
		}
	}

	if err := eng.Start(); err != nil {
		log.Fatalf("engine start: %v", err)
	}
	defer eng.Stop()

	if *trackA != "" {
		if err := eng.LoadTrack(deck.DeckA, *trackA); err != nil {
			log.Printf("deck A: %v", err)
		}
	}
	if *trackB != "" {
		if err := eng.LoadTrack(deck.DeckB, *trackB); err != nil {
			log.Printf("deck B: %v", err)
		}
	}

	if *streamHost != "" {
		cfg, err := stream.NewBuilder().
			Server(*streamHost, *streamPort).
			Mount(*streamMount).
			Credentials(*streamUser, *streamPassword).
			Bitrate(*streamBitrate).
			Station(name, "", "", "").
			Build()
		if err != nil {
			log.Fatalf("stream config: %v", err)
		}
		if err := eng.ConfigureStream(cfg); err != nil {
			log.Fatalf("stream config: %v", err)
		}
		if err := eng.ConnectStream(); err != nil {
			log.Printf("stream connect: %v", err)
		} else if err := eng.StartStreaming(); err != nil {
			log.Printf("stream start: %v", err)
		}
	}

	var status *statusServer
	if *statusPort > 0 {
		status = newStatusServer(eng)
		if err := status.start(*statusPort); err != nil {
			log.Fatalf("%v", err)
		}
		defer status.shutdown()

		if *enableMDNS {
			disc := discovery.NewManager(discovery.Config{
				InstanceName: name,
				Port:         *statusPort,
			})
			if err := disc.Advertise(); err != nil {
				log.Printf("%v", err)
			} else {
				defer disc.Stop()
			}
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if useTUI {
		runTUI(eng, sig)
		return
	}

	log.Printf("running, ctrl-c to stop")
	<-sig
	log.Printf("shutting down")
}

func printDevices() {
	inputs, err := engine.ListInputs()
	if err != nil {
		log.Fatalf("inputs: %v", err)
	}
	fmt.Println("Inputs:")
	for _, d := range inputs {
		fmt.Printf("  %-6s %s (%d ch)\n", d.ID, d.Name, d.Inputs)
	}

	outputs, err := engine.ListOutputs()
	if err != nil {
		log.Fatalf("outputs: %v", err)
	}
	fmt.Println("Outputs:")
	for _, d := range outputs {
		fmt.Printf("  %-6s %s (%d ch)\n", d.ID, d.Name, d.Outputs)
	}
}

// runTUI drives the console until quit or an OS signal.
func runTUI(eng *engine.Engine, sig <-chan os.Signal) {
	controls := ui.NewControls()
	prog, err := ui.Run(controls)
	if err != nil {
		log.Fatalf("tui: %v", err)
	}
	go prog.Run()
	defer prog.Quit()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			return
		case <-controls.Quit:
			return
		case cmd := <-controls.Commands:
			applyCommand(eng, cmd)
		case <-ticker.C:
			prog.Send(statusMsg(eng))
		}
	}
}

func applyCommand(eng *engine.Engine, cmd ui.Command) {
	switch cmd.Kind {
	case ui.CmdMasterVolume:
		eng.SetMasterVolume(cmd.Value)
	case ui.CmdToggleTalkover:
		eng.EnableTalkover(!eng.Mic().Talkover().Active())
	case ui.CmdMicMute:
		eng.SetMicMute(cmd.On)
	}
}

func statusMsg(eng *engine.Engine) ui.StatusMsg {
	mixer := eng.MixerState()
	stats := eng.StreamStats()

	return ui.StatusMsg{
		DeckA: deckStatus(eng, deck.DeckA),
		DeckB: deckStatus(eng, deck.DeckB),
		Master: &ui.MasterStatus{
			Crossfader:    mixer.Crossfader,
			Volume:        mixer.MasterVolume,
			PeakL:         mixer.Master.PeakLeft,
			PeakR:         mixer.Master.PeakRight,
			MicEnabled:    eng.Mic().Enabled(),
			MicMuted:      eng.Mic().Muted(),
			Talkover:      mixer.TalkoverState,
			EventsDropped: mixer.EventsDropped,
			RingOverruns:  mixer.RingOverruns,
		},
		Stream: &ui.StreamStatus{
			Status:      stats.Status.String(),
			BitrateKbps: stats.BitrateKbps,
			BytesSent:   stats.BytesSent,
			Reconnects:  stats.Reconnects,
			LastError:   stats.LastError,
		},
	}
}

func deckStatus(eng *engine.Engine, id deck.ID) *ui.DeckStatus {
	snap, err := eng.Snapshot(id)
	if err != nil {
		return nil
	}

	rate := float64(eng.Config().SampleRate)
	title := snap.Title
	d := eng.Deck(id)
	if t := d.Track(); t != nil {
		rate = float64(t.Format.SampleRate)
		if title == "" {
			title = t.Path
		}
	}

	return &ui.DeckStatus{
		State:    snap.State.String(),
		Title:    title,
		Artist:   snap.Artist,
		Position: snap.PositionFrames / rate,
		Duration: float64(snap.DurationFrames) / rate,
		BPM:      snap.BPM,
		Rate:     snap.Rate,
		PeakL:    snap.Levels.PeakLeft,
		PeakR:    snap.Levels.PeakRight,
	}
}
