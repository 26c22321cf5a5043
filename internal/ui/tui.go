// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and adapts it to the app render sink
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cms-dev/timeview-go/internal/display"
	"github.com/cms-dev/timeview-go/internal/sync"
)

// ModeControl holds channels for mode selection and quit requests
type ModeControl struct {
	Changes chan display.Mode
	Quit    chan struct{}
}

// NewModeControl creates a new mode control handler
func NewModeControl() *ModeControl {
	return &ModeControl{
		Changes: make(chan display.Mode, 10),
		Quit:    make(chan struct{}, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(modeCtrl *ModeControl, server string) Model {
	return Model{
		server:   server,
		modeCtrl: modeCtrl,
	}
}

// Run creates the TUI program; the caller runs it
func Run(modeCtrl *ModeControl, server string) *tea.Program {
	return tea.NewProgram(NewModel(modeCtrl, server), tea.WithAltScreen())
}

// Sink forwards frames and sync state to a running program
type Sink struct {
	Program *tea.Program
}

// Render sends the frame to the TUI
func (s Sink) Render(frame display.Frame) {
	s.Program.Send(FrameMsg(frame))
}

// SyncStats sends the synchronization summary to the TUI
func (s Sink) SyncStats(stats sync.Stats) {
	s.Program.Send(SyncMsg(stats))
}
