// ABOUTME: Entry point for the timeview reference time server
// ABOUTME: Parses CLI flags and serves the clock, event list, and metrics
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/cms-dev/timeview-go/internal/events"
	"github.com/cms-dev/timeview-go/internal/logging"
	"github.com/cms-dev/timeview-go/internal/server"
	"github.com/cms-dev/timeview-go/internal/version"
)

var (
	port        = flag.Int("port", 8890, "HTTP server port")
	name        = flag.String("name", "", "Server friendly name (default: hostname-timeview-server)")
	logFile     = flag.String("log-file", "timeview-server.log", "Log file path")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	eventsFile  = flag.String("events", "", "Event list to serve on /events (YAML, TOML, or JSON)")
	natsURL     = flag.String("nats", "", "NATS server for live event list updates")
	natsSubject = flag.String("nats-subject", events.DefaultSubject, "NATS subject for event list updates")
	origins     = flag.String("allowed-origins", "*", "Comma-separated CORS origins")
)

func main() {
	flag.Parse()

	// Log to both file and console
	closer, err := logging.Setup(logging.Options{File: *logFile, Console: true, Debug: *debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	// Determine server name
	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-timeview-server", hostname)
	}

	var list []events.Event
	if *eventsFile != "" {
		list, err = events.LoadFile(*eventsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load events")
		}
	}
	store, err := events.NewStore(list)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid event list")
	}

	if *natsURL != "" {
		nc, err := events.Connect(*natsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Close()

		if _, err := events.NewFeed(store, nil).Subscribe(nc, *natsSubject); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe to event updates")
		}
	}

	log.Info().
		Str("name", serverName).
		Int("port", *port).
		Str("version", version.Version).
		Int("events", len(list)).
		Msg("starting timeview server")
	log.Info().Str("file", *logFile).Msg("press Ctrl-C to stop")

	srv := server.New(server.Config{
		Port:           *port,
		Name:           serverName,
		EnableMDNS:     !*noMDNS,
		Events:         store,
		AllowedOrigins: splitList(*origins),
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
