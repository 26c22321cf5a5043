// ABOUTME: Tests for time probes
// ABOUTME: Tests header parsing, HTTP failures, and the WebSocket exchange
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/cms-dev/timeview-go/internal/protocol"
)

func TestHTTPProbeReadsHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id header")
		}
		w.Header().Set("Timestamp", "1709294400123")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewHTTP(server.URL)
	ts, err := p.ServerTimestamp(context.Background())
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if ts != 1709294400123 {
		t.Errorf("expected 1709294400123, got %d", ts)
	}
}

func TestHTTPProbeMissingHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL).ServerTimestamp(context.Background())
	if !errors.Is(err, ErrMissingTimestamp) {
		t.Errorf("expected ErrMissingTimestamp, got %v", err)
	}
}

func TestHTTPProbeMalformedHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Timestamp", "soon")
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL).ServerTimestamp(context.Background())
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("expected ErrMalformedTimestamp, got %v", err)
	}
}

func TestHTTPProbeBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Timestamp", "1709294400123")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL).ServerTimestamp(context.Background())
	if !errors.Is(err, ErrStatus) {
		t.Errorf("expected ErrStatus, got %v", err)
	}
}

func TestHTTPProbeNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := NewHTTP(url).ServerTimestamp(context.Background()); err == nil {
		t.Error("expected error from closed server")
	}
}

func TestParseTimestamp(t *testing.T) {
	if _, err := ParseTimestamp(" 42 "); err != nil {
		t.Errorf("expected whitespace to be trimmed, got %v", err)
	}
	if _, err := ParseTimestamp("-5"); !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("expected negative timestamp to be rejected, got %v", err)
	}
	if _, err := ParseTimestamp("1.5"); !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("expected fractional timestamp to be rejected, got %v", err)
	}
}

func newTimeWSServer(t *testing.T, ts int64) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return
			}
			var ct protocol.ClientTime
			json.Unmarshal(env.Payload, &ct)

			// an unrelated message first, which the probe must skip
			conn.WriteJSON(protocol.Message{Type: "server/hello", Payload: map[string]string{}})
			conn.WriteJSON(protocol.Message{
				Type:    protocol.TypeServerTime,
				Payload: protocol.ServerTime{ClientTransmitted: ct.ClientTransmitted, Timestamp: ts},
			})
		}
	}))
}

func TestWebSocketProbe(t *testing.T) {
	server := newTimeWSServer(t, 1709294400999)
	defer server.Close()

	p := NewWebSocket("ws" + strings.TrimPrefix(server.URL, "http"))
	defer p.Close()

	for i := 0; i < 2; i++ {
		ts, err := p.ServerTimestamp(context.Background())
		if err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
		if ts != 1709294400999 {
			t.Errorf("expected 1709294400999, got %d", ts)
		}
	}
}

func TestWebSocketProbeDialFailure(t *testing.T) {
	p := NewWebSocket("ws://127.0.0.1:1/time/ws")
	if _, err := p.ServerTimestamp(context.Background()); err == nil {
		t.Error("expected dial error")
	}
}
