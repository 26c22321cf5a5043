// ABOUTME: WebSocket time probe for persistent connections to the time server
// ABOUTME: Sends client/time and waits for the matching server/time reply
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/cms-dev/timeview-go/internal/protocol"
)

const wsIOTimeout = 5 * time.Second

// WebSocket keeps one connection open and reconnects after failures
type WebSocket struct {
	URL string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket creates a WebSocket probe for url (ws:// or wss://)
func NewWebSocket(url string) *WebSocket {
	return &WebSocket{URL: url}
}

// ServerTimestamp performs one client/time exchange
func (p *WebSocket) ServerTimestamp(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConn(ctx); err != nil {
		return 0, err
	}

	ts, err := p.exchange(ctx)
	if err != nil {
		p.closeLocked()
		return 0, err
	}
	return ts, nil
}

// ensureConn dials if there is no open connection
func (p *WebSocket) ensureConn(ctx context.Context) error {
	if p.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	log.Debug().Str("url", p.URL).Msg("time websocket connected")
	p.conn = conn
	return nil
}

func (p *WebSocket) exchange(ctx context.Context) (int64, error) {
	deadline := time.Now().Add(wsIOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	sent := time.Now().UnixMilli()
	msg := protocol.Message{
		Type:    protocol.TypeClientTime,
		Payload: protocol.ClientTime{ClientTransmitted: sent},
	}

	_ = p.conn.SetWriteDeadline(deadline)
	if err := p.conn.WriteJSON(msg); err != nil {
		return 0, fmt.Errorf("failed to send client/time: %w", err)
	}

	_ = p.conn.SetReadDeadline(deadline)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("failed to read server/time: %w", err)
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return 0, fmt.Errorf("failed to parse message: %w", err)
		}
		if env.Type != protocol.TypeServerTime {
			log.Debug().Str("type", env.Type).Msg("ignoring message while waiting for server/time")
			continue
		}

		var st protocol.ServerTime
		if err := json.Unmarshal(env.Payload, &st); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedTimestamp, err)
		}
		if st.ClientTransmitted != sent {
			// stale reply to an earlier request
			continue
		}
		if st.Timestamp <= 0 {
			return 0, ErrMissingTimestamp
		}
		return st.Timestamp, nil
	}
}

// Close closes the connection if open
func (p *WebSocket) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *WebSocket) closeLocked() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
