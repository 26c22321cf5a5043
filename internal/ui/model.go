// ABOUTME: Bubbletea model for the timeview TUI
// ABOUTME: Defines display state, key handling, and rendering
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cms-dev/timeview-go/internal/display"
	"github.com/cms-dev/timeview-go/internal/sync"
)

// FrameMsg carries the per-tick display frame
type FrameMsg display.Frame

// SyncMsg carries synchronization state after each resync
type SyncMsg sync.Stats

// ServerMsg names the reference time server
type ServerMsg string

// Model represents the TUI state
type Model struct {
	server string

	frame    display.Frame
	hasFrame bool

	stats    sync.Stats
	hasStats bool

	showDebug bool

	width  int
	height int

	modeCtrl *ModeControl
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
	case FrameMsg:
		m.frame = display.Frame(msg)
		m.hasFrame = true
	case SyncMsg:
		m.stats = sync.Stats(msg)
		m.hasStats = true
	case ServerMsg:
		m.server = string(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 || !m.hasFrame {
		return "Loading..."
	}

	s := m.renderHeader()
	s += m.renderTime()
	if m.showDebug {
		s += m.renderDebug()
	}
	s += m.renderHelp()
	return s
}

// renderHeader renders the server and sync status
func (m Model) renderHeader() string {
	server := m.server
	if server == "" {
		server = "(none)"
	}

	syncText := "Waiting for first sync"
	if m.hasStats {
		if m.stats.Samples == 0 {
			syncText = fmt.Sprintf("Unsynced (%d failures)", m.stats.Failures)
		} else {
			syncText = fmt.Sprintf("offset %+.0fms, rtt p50 %dms", m.stats.Offset, m.stats.RTTP50)
		}
	}

	return fmt.Sprintf(`┌─ Timeview ───────────────────────────────────────────┐
│ Server: %-44s │
│ Sync:   %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(server, 44), truncate(syncText, 44))
}

// renderTime renders the event name and the formatted duration
func (m Model) renderTime() string {
	name := "No event"
	if m.frame.HasEvent {
		name = m.frame.Name
	}

	return fmt.Sprintf(`│ %-52s │
│                                                      │
│ %s │
│                                                      │
│ Mode: %-10s Phase: %-28s │
├──────────────────────────────────────────────────────┤
`, truncate(name, 52), center(m.frame.Text, 52), m.frame.Mode, m.frame.Phase)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ e:Elapsed  r:Remaining  c:Clock  d:Debug  q:Quit    │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders synchronization details
func (m Model) renderDebug() string {
	last := "never"
	if !m.stats.LastSync.IsZero() {
		last = m.stats.LastSync.Format("15:04:05")
	}

	return fmt.Sprintf(`│ DEBUG:                                               │
│   Offset: %+.1fms  Filtered: %+.1fms%-16s │
│   Samples: %-2d  Failures: %-6d  Last sync: %-8s │
│   RTT last: %.1fms  p50: %dms  p99: %dms%-10s │
├──────────────────────────────────────────────────────┤
`, m.stats.Offset, m.stats.Filtered, "",
		m.stats.Samples, m.stats.Failures, last,
		m.stats.LastRTT, m.stats.RTTP50, m.stats.RTTP99, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.modeCtrl != nil {
			select {
			case m.modeCtrl.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "e":
		m.requestMode(display.Elapsed)
	case "r":
		m.requestMode(display.Remaining)
	case "c":
		m.requestMode(display.Current)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// requestMode forwards a mode selection; the next frame reflects it
func (m Model) requestMode(mode display.Mode) {
	if m.modeCtrl == nil {
		return
	}
	select {
	case m.modeCtrl.Changes <- mode:
	default:
	}
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}
