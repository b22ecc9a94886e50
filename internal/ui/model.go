// ABOUTME: Bubbletea model for the engine console TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// DeckStatus is one deck panel's state.
type DeckStatus struct {
	State    string
	Title    string
	Artist   string
	Position float64 // seconds
	Duration float64 // seconds
	BPM      float64
	Rate     float64
	PeakL    float64 // linear, 0..1
	PeakR    float64
}

// Model represents the TUI state
type Model struct {
	// Decks
	deckA DeckStatus
	deckB DeckStatus

	// Master bus
	crossfader   float64
	masterVolume float64
	masterPeakL  float64
	masterPeakR  float64

	// Mic
	micEnabled bool
	micMuted   bool
	talkover   string

	// Stream
	streamStatus  string
	streamBitrate float64
	bytesSent     int64
	reconnects    int
	lastError     string

	// Control channel back to the engine loop
	controls *Controls

	// Debug
	showDebug bool
	dropped   int64
	overruns  int64

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderDeck("A", m.deckA)
	s += m.renderDeck("B", m.deckB)
	s += m.renderMaster()
	s += m.renderStream()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	return `┌─ RadioCore ──────────────────────────────────────────┐
`
}

func (m Model) renderDeck(tag string, d DeckStatus) string {
	track := "(empty)"
	if d.Title != "" {
		track = truncate(fmt.Sprintf("%s - %s", d.Artist, d.Title), 40)
	}

	meter := renderBar(int(d.PeakL*100), 100, 10)
	return fmt.Sprintf("│ Deck %s [%-7s] %-40s│\n"+
		"│   %6.1fs/%6.1fs  %5.1f BPM  x%.2f  [%s]     │\n",
		tag, d.State, track,
		d.Position, d.Duration, d.BPM, d.Rate, meter)
}

func (m Model) renderMaster() string {
	mic := "off"
	if m.micEnabled {
		mic = "on"
		if m.micMuted {
			mic = "muted"
		}
	}

	return fmt.Sprintf("├──────────────────────────────────────────────────────┤\n"+
		"│ XFade: [%s]  Master: [%s] %3.0f%%        │\n"+
		"│ L:[%s] R:[%s]  Mic: %-5s  Talkover: %-10s│\n",
		renderBar(int((m.crossfader+1)*50), 100, 10),
		renderBar(int(m.masterVolume*100), 100, 10), m.masterVolume*100,
		renderBar(int(m.masterPeakL*100), 100, 10),
		renderBar(int(m.masterPeakR*100), 100, 10),
		mic, m.talkover)
}

func (m Model) renderStream() string {
	line := fmt.Sprintf("%s  %.0f kbps  %d KB sent", m.streamStatus, m.streamBitrate, m.bytesSent/1024)
	if m.lastError != "" {
		line = fmt.Sprintf("%s  (%s)", line, truncate(m.lastError, 24))
	}
	return fmt.Sprintf("│ Stream: %-45s│\n", truncate(line, 45))
}

func (m Model) renderDebug() string {
	return fmt.Sprintf("│ DEBUG: events dropped %d, ring overruns %d, reconnects %d │\n",
		m.dropped, m.overruns, m.reconnects)
}

func (m Model) renderHelp() string {
	return `│ ↑/↓:Master  t:Talkover  m:Mic mute  d:Debug  q:Quit  │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.masterVolume += 0.05
		if m.masterVolume > 1 {
			m.masterVolume = 1
		}
		m.sendCommand(Command{Kind: CmdMasterVolume, Value: m.masterVolume})
	case "down":
		m.masterVolume -= 0.05
		if m.masterVolume < 0 {
			m.masterVolume = 0
		}
		m.sendCommand(Command{Kind: CmdMasterVolume, Value: m.masterVolume})
	case "t":
		m.sendCommand(Command{Kind: CmdToggleTalkover})
	case "m":
		m.micMuted = !m.micMuted
		m.sendCommand(Command{Kind: CmdMicMute, On: m.micMuted})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) sendCommand(c Command) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Commands <- c:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.DeckA != nil {
		m.deckA = *msg.DeckA
	}
	if msg.DeckB != nil {
		m.deckB = *msg.DeckB
	}
	if msg.Master != nil {
		m.crossfader = msg.Master.Crossfader
		m.masterVolume = msg.Master.Volume
		m.masterPeakL = msg.Master.PeakL
		m.masterPeakR = msg.Master.PeakR
		m.micEnabled = msg.Master.MicEnabled
		m.micMuted = msg.Master.MicMuted
		m.talkover = msg.Master.Talkover
		m.dropped = msg.Master.EventsDropped
		m.overruns = msg.Master.RingOverruns
	}
	if msg.Stream != nil {
		m.streamStatus = msg.Stream.Status
		m.streamBitrate = msg.Stream.BitrateKbps
		m.bytesSent = msg.Stream.BytesSent
		m.reconnects = msg.Stream.Reconnects
		m.lastError = msg.Stream.LastError
	}
}

// MasterStatus is the master-bus slice of a status update.
type MasterStatus struct {
	Crossfader    float64
	Volume        float64
	PeakL         float64
	PeakR         float64
	MicEnabled    bool
	MicMuted      bool
	Talkover      string
	EventsDropped int64
	RingOverruns  int64
}

// StreamStatus is the stream slice of a status update.
type StreamStatus struct {
	Status      string
	BitrateKbps float64
	BytesSent   int64
	Reconnects  int
	LastError   string
}

// StatusMsg updates TUI state. Nil sections leave the panel unchanged.
type StatusMsg struct {
	DeckA  *DeckStatus
	DeckB  *DeckStatus
	Master *MasterStatus
	Stream *StreamStatus
}

// Utility functions
func renderBar(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
