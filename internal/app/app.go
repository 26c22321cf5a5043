// ABOUTME: Main timeview application orchestration
// ABOUTME: Drives clock resyncs, event refreshes, and per-second rendering on one loop
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/cms-dev/timeview-go/internal/display"
	"github.com/cms-dev/timeview-go/internal/events"
	"github.com/cms-dev/timeview-go/internal/metrics"
	"github.com/cms-dev/timeview-go/internal/scheduler"
	"github.com/cms-dev/timeview-go/internal/sync"
)

const (
	TickInterval   = time.Second
	FirstResync    = 10 * time.Second
	ResyncInterval = 60 * time.Second
)

// Sink receives one frame per tick
type Sink interface {
	Render(frame display.Frame)
}

// StatsSink is implemented by sinks that also show synchronization state
type StatsSink interface {
	SyncStats(stats sync.Stats)
}

// Config holds application configuration
type Config struct {
	Clock    clockwork.Clock
	Source   sync.TimeSource
	Location *time.Location
	Events   *events.Store
	Sink     Sink
	Mode     display.Mode
	Metrics  *metrics.Collectors

	// EventsURL, when set, is re-fetched on every resync
	EventsURL  string
	HTTPClient *http.Client

	// ModeChanges delivers user mode selections, typically from the TUI
	ModeChanges <-chan display.Mode
}

// App owns the synchronized clock and renders the display state
type App struct {
	config   Config
	loop     *scheduler.Loop
	clock    *sync.ClockSync
	resolver *display.Resolver

	// loop-owned
	mode      display.Mode
	resyncing bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new application
func New(config Config) *App {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Events == nil {
		config.Events, _ = events.NewStore(nil)
	}

	cs := sync.NewClockSync(sync.Config{
		Clock:    config.Clock,
		Source:   config.Source,
		Location: config.Location,
		Metrics:  config.Metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		config:   config,
		loop:     scheduler.NewLoop(config.Clock),
		clock:    cs,
		resolver: display.NewResolver(cs, config.Location),
		mode:     config.Mode,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Clock returns the synchronized clock
func (a *App) Clock() *sync.ClockSync {
	return a.clock
}

// Start schedules resyncs and ticks and runs until Stop or ctx ends
func (a *App) Start(ctx context.Context) error {
	defer a.cancel()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	a.loop.Do(a.resync)
	a.loop.After(FirstResync, a.resync)
	a.loop.Every(ResyncInterval, a.resync)
	a.loop.Do(a.tick)
	a.loop.Every(TickInterval, a.tick)

	if a.config.ModeChanges != nil {
		go a.handleModeChanges(ctx)
	}

	log.Info().
		Str("mode", a.config.Mode.String()).
		Str("zone", a.config.Location.String()).
		Msg("timeview started")

	err := a.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the application
func (a *App) Stop() {
	a.cancel()
}

// SetMode changes the display mode and re-renders immediately. It reports
// false once the application has stopped.
func (a *App) SetMode(mode display.Mode) bool {
	return a.loop.Do(func() {
		if a.mode != mode {
			log.Info().Str("mode", mode.String()).Msg("display mode changed")
		}
		a.mode = mode
		a.tick()
	})
}

// Refresh re-renders immediately, e.g. after the event list changed
func (a *App) Refresh() bool {
	return a.loop.Do(a.tick)
}

// Stats returns the synchronization summary
func (a *App) Stats() sync.Stats {
	return a.clock.Stats()
}

func (a *App) handleModeChanges(ctx context.Context) {
	for {
		select {
		case mode := <-a.config.ModeChanges:
			a.SetMode(mode)
		case <-ctx.Done():
			return
		}
	}
}

// tick resolves and renders the current state
func (a *App) tick() {
	state := a.resolver.Resolve(a.config.Events.Snapshot(), a.mode)
	if a.config.Sink != nil {
		a.config.Sink.Render(state.Frame())
	}
}

// resync starts one probe off the loop and applies it back on the loop.
// A resync due while another is in flight is skipped.
func (a *App) resync() {
	if a.resyncing {
		log.Debug().Msg("resync already in flight, skipping")
		return
	}
	a.resyncing = true

	go func() {
		m, probeErr := a.clock.Probe(a.ctx)

		posted := a.loop.Do(func() {
			a.resyncing = false
			// Complete logs failures itself
			_ = a.clock.Complete(m, probeErr)
			a.publishStats()
		})
		if !posted {
			log.Debug().Msg("dropping probe result after shutdown")
		}
	}()

	if a.config.EventsURL != "" {
		go a.refreshEvents()
	}
}

func (a *App) publishStats() {
	if s, ok := a.config.Sink.(StatsSink); ok {
		s.SyncStats(a.clock.Stats())
	}
}

func (a *App) refreshEvents() {
	list, err := events.Fetch(a.ctx, a.config.HTTPClient, a.config.EventsURL)
	if err != nil {
		log.Warn().Err(err).Str("url", a.config.EventsURL).Msg("failed to refresh events")
		return
	}
	if err := a.config.Events.Set(list); err != nil {
		log.Warn().Err(err).Msg("rejected fetched event list")
		return
	}
	a.Refresh()
}

// WriterSink prints one line per frame, for running without the TUI
type WriterSink struct {
	W io.Writer
}

// Render writes the frame
func (s WriterSink) Render(frame display.Frame) {
	name := "-"
	if frame.HasEvent {
		name = frame.Name
	}
	fmt.Fprintf(s.W, "%s\t%s\t%s\t%s\n", frame.Text, frame.Mode, frame.Phase, name)
}
