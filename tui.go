// ABOUTME: Runs the bubbletea program alongside the client
// ABOUTME: Reports when the program exits so main can shut down
package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/cms-dev/timeview-go/internal/ui"
)

type tui struct {
	program *tea.Program
	done    chan struct{}
}

func startTUI(modeCtrl *ui.ModeControl, server string) *tui {
	t := &tui{
		program: ui.Run(modeCtrl, server),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		if _, err := t.program.Run(); err != nil {
			log.Error().Err(err).Msg("TUI error")
		}
	}()

	return t
}
