// ABOUTME: Entry point for the timeview client
// ABOUTME: Parses config and CLI flags, then shows synchronized contest time
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cms-dev/timeview-go/internal/app"
	"github.com/cms-dev/timeview-go/internal/config"
	"github.com/cms-dev/timeview-go/internal/discovery"
	"github.com/cms-dev/timeview-go/internal/events"
	"github.com/cms-dev/timeview-go/internal/logging"
	"github.com/cms-dev/timeview-go/internal/metrics"
	"github.com/cms-dev/timeview-go/internal/probe"
	internalsync "github.com/cms-dev/timeview-go/internal/sync"
	"github.com/cms-dev/timeview-go/internal/ui"
	"github.com/cms-dev/timeview-go/internal/version"
)

const discoveryTimeout = 10 * time.Second

var (
	configPath  = flag.String("config", "", "Config file (YAML or TOML)")
	timeURL     = flag.String("time-url", "", "HTTP endpoint returning the Timestamp header")
	wsURL       = flag.String("ws-url", "", "WebSocket time endpoint (preferred over -time-url)")
	eventsFile  = flag.String("events", "", "Event list file (YAML, TOML, or JSON)")
	eventsURL   = flag.String("events-url", "", "URL serving the event list as JSON")
	natsURL     = flag.String("nats", "", "NATS server for live event list updates")
	natsSubject = flag.String("nats-subject", "", "NATS subject for event list updates")
	mode        = flag.String("mode", "", "Display mode: elapsed, remaining, or current")
	timezone    = flag.String("timezone", "", "IANA zone for the local clock (default: system)")
	logFile     = flag.String("log-file", "", "Log file path")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, print one line per second instead")
	discover    = flag.Bool("discover", false, "Find the time server via mDNS")
)

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	applyFlags(&cfg)

	// TUI mode: log only to file
	closer, err := logging.Setup(logging.Options{File: cfg.LogFile, Console: cfg.NoTUI, Debug: cfg.Debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	displayMode, _ := cfg.DisplayMode()
	loc, _ := cfg.Location()

	log.Info().Str("version", version.Version).Msg("starting timeview")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg)
	}

	source, serverLabel, closeSource := timeSource(ctx, &cfg)
	defer closeSource()

	store, err := loadEvents(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load events")
	}

	// TUI setup
	var sink app.Sink = app.WriterSink{W: os.Stdout}
	var tuiProg *tui
	var modeCtrl *ui.ModeControl
	if !cfg.NoTUI {
		modeCtrl = ui.NewModeControl()
		tuiProg = startTUI(modeCtrl, serverLabel)
		sink = ui.Sink{Program: tuiProg.program}
	}

	appConfig := app.Config{
		Source:   source,
		Location: loc,
		Events:   store,
		Sink:     sink,
		Mode:     displayMode,
		Metrics:  collectors,
	}
	if cfg.EventsFile == "" {
		appConfig.EventsURL = cfg.EventsURL
	}
	if modeCtrl != nil {
		appConfig.ModeChanges = modeCtrl.Changes
	}
	application := app.New(appConfig)

	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Close()

		feed := events.NewFeed(store, func([]events.Event) { application.Refresh() })
		if _, err := feed.Subscribe(nc, cfg.NATSSubject); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to event updates")
		}
	}

	appDone := make(chan error, 1)
	go func() { appDone <- application.Start(ctx) }()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan struct{}
	var tuiDone <-chan struct{}
	if modeCtrl != nil {
		quit = modeCtrl.Quit
		tuiDone = tuiProg.done
	}

	select {
	case <-quit:
		log.Info().Msg("received quit signal from TUI")
	case <-tuiDone:
		log.Info().Msg("TUI exited")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-appDone:
		if err != nil {
			log.Error().Err(err).Msg("timeview stopped unexpectedly")
		}
	}

	application.Stop()
	if tuiProg != nil {
		tuiProg.program.Quit()
		<-tuiProg.done
	}

	log.Info().Msg("timeview stopped")
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "time-url":
			cfg.TimeURL = *timeURL
		case "ws-url":
			cfg.WSURL = *wsURL
		case "events":
			cfg.EventsFile = *eventsFile
		case "events-url":
			cfg.EventsURL = *eventsURL
		case "nats":
			cfg.NATSURL = *natsURL
		case "nats-subject":
			cfg.NATSSubject = *natsSubject
		case "mode":
			cfg.Mode = *mode
		case "timezone":
			cfg.Timezone = *timezone
		case "log-file":
			cfg.LogFile = *logFile
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "debug":
			cfg.Debug = *debug
		case "no-tui":
			cfg.NoTUI = *noTUI
		case "discover":
			cfg.Discover = *discover
		}
	})
}

// timeSource picks the probe transport, discovering a server if none is set
func timeSource(ctx context.Context, cfg *config.Config) (internalsync.TimeSource, string, func()) {
	if cfg.WSURL != "" {
		ws := probe.NewWebSocket(cfg.WSURL)
		return ws, cfg.WSURL, func() { _ = ws.Close() }
	}

	if cfg.TimeURL == "" {
		log.Info().Msg("starting server discovery")
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		disc := discovery.NewManager(discovery.Config{ServiceName: hostname + "-timeview"})
		defer disc.Stop()

		wctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		defer cancel()
		server, err := disc.WaitForServer(wctx)
		if err != nil {
			log.Fatal().Err(err).Dur("timeout", discoveryTimeout).Msg("no time server found")
		}
		cfg.TimeURL = server.TimeURL()
		log.Info().Str("url", cfg.TimeURL).Msg("discovered time server")
	}

	return probe.NewHTTP(cfg.TimeURL), cfg.TimeURL, func() {}
}

// loadEvents builds the initial event list from a file or URL
func loadEvents(ctx context.Context, cfg config.Config) (*events.Store, error) {
	var list []events.Event
	var err error

	switch {
	case cfg.EventsFile != "":
		list, err = events.LoadFile(cfg.EventsFile)
	case cfg.EventsURL != "":
		fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		list, err = events.Fetch(fctx, nil, cfg.EventsURL)
		cancel()
		if err != nil {
			// later resyncs retry the fetch
			log.Warn().Err(err).Msg("initial event fetch failed")
			err = nil
		}
	}
	if err != nil {
		return nil, err
	}

	log.Info().Int("events", len(list)).Msg("event list loaded")
	return events.NewStore(list)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
