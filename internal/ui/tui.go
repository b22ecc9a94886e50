// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the engine console
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind discriminates TUI commands.
type CommandKind int

const (
	CmdMasterVolume CommandKind = iota
	CmdToggleTalkover
	CmdMicMute
)

// Command is one user action from the TUI.
type Command struct {
	Kind  CommandKind
	Value float64
	On    bool
}

// Controls holds channels for TUI-to-engine communication.
type Controls struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControls creates a control channel pair.
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 16),
		Quit:     make(chan struct{}, 1),
	}
}

// NewModel creates a new TUI model.
func NewModel(controls *Controls) Model {
	return Model{
		masterVolume: 1.0,
		controls:     controls,
		deckA:        DeckStatus{State: "empty", Rate: 1},
		deckB:        DeckStatus{State: "empty", Rate: 1},
		streamStatus: "disconnected",
		talkover:     "inactive",
	}
}

// Run starts the TUI.
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
