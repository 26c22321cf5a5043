// ABOUTME: Reference time server for timeview clients
// ABOUTME: Serves the clock over HTTP headers and WebSocket, plus events and metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/cms-dev/timeview-go/internal/discovery"
	"github.com/cms-dev/timeview-go/internal/events"
	"github.com/cms-dev/timeview-go/internal/metrics"
	"github.com/cms-dev/timeview-go/internal/protocol"
)

const (
	TimePath    = "/time"
	TimeWSPath  = "/time/ws"
	EventsPath  = "/events"
	MetricsPath = "/metrics"

	shutdownTimeout = 5 * time.Second
	writeDeadline   = 10 * time.Second
)

// Config holds server configuration
type Config struct {
	Port           int
	Name           string
	EnableMDNS     bool
	Events         *events.Store
	Clock          clockwork.Clock
	Registry       *prometheus.Registry
	AllowedOrigins []string
}

// Server answers time probes
type Server struct {
	config   Config
	serverID string
	clock    clockwork.Clock
	metrics  *metrics.ServerCollectors

	upgrader   websocket.Upgrader
	httpServer *http.Server
	handler    http.Handler

	mdnsManager *discovery.Manager

	clientsMu sync.Mutex
	clients   map[string]*websocket.Conn

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a server instance
func New(config Config) *Server {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Events == nil {
		config.Events, _ = events.NewStore(nil)
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		clock:    config.Clock,
		metrics:  metrics.NewServer(config.Registry),
		upgrader: websocket.Upgrader{
			// origin policy is enforced by the CORS allowlist
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*websocket.Conn),
		stopChan: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(TimePath, s.handleTime)
	mux.HandleFunc(TimeWSPath, s.handleWebSocket)
	mux.HandleFunc(EventsPath, s.handleEvents)
	mux.Handle(MetricsPath, promhttp.HandlerFor(config.Registry, promhttp.HandlerOpts{}))

	s.handler = cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		ExposedHeaders: []string{protocol.TimestampHeader},
	}).Handler(mux)

	return s
}

// Handler returns the HTTP handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	log.Info().Str("name", s.config.Name).Str("id", s.serverID).Msg("time server starting")

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			TimePath:    TimePath,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Warn().Err(err).Msg("failed to start mDNS advertisement")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("time server listening")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Info().Msg("time server shutting down")
	case err := <-errChan:
		serverErr = err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	s.closeClients()
	s.wg.Wait()

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	log.Info().Msg("time server stopped cleanly")
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) nowMillis() int64 {
	return s.clock.Now().UnixMilli()
}

// handleTime answers with the server clock in the Timestamp header
func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ts := strconv.FormatInt(s.nowMillis(), 10)
	w.Header().Set(protocol.TimestampHeader, ts)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte(ts))
	}

	s.metrics.ObserveRequest("http")
}

// handleEvents serves the configured event list
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	list := s.config.Events.Snapshot()
	if list == nil {
		list = []events.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"events": list}); err != nil {
		log.Warn().Err(err).Msg("failed to encode events")
	}
}

// handleWebSocket answers client/time messages on a persistent connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	s.clientsMu.Lock()
	s.clients[clientID] = conn
	s.clientsMu.Unlock()

	log.Debug().Str("client", clientID).Str("remote", r.RemoteAddr).Msg("time client connected")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.removeClient(clientID)
		s.serveClient(conn)
	}()
}

func (s *Server) serveClient(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed message")
			continue
		}
		if env.Type != protocol.TypeClientTime {
			log.Debug().Str("type", env.Type).Msg("unknown message type")
			continue
		}

		var ct protocol.ClientTime
		if err := json.Unmarshal(env.Payload, &ct); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed client/time")
			continue
		}

		resp := protocol.Message{
			Type: protocol.TypeServerTime,
			Payload: protocol.ServerTime{
				ClientTransmitted: ct.ClientTransmitted,
				Timestamp:         s.nowMillis(),
			},
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(resp); err != nil {
			log.Debug().Err(err).Msg("error sending server time")
			return
		}
		s.metrics.ObserveRequest("websocket")
	}
}

func (s *Server) removeClient(id string) {
	s.clientsMu.Lock()
	conn, ok := s.clients[id]
	delete(s.clients, id)
	s.clientsMu.Unlock()

	if ok {
		conn.Close()
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, conn := range s.clients {
		conn.Close()
	}
}

// ClientCount returns the number of open WebSocket clients
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}
