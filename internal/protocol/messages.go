// ABOUTME: Time protocol message type definitions
// ABOUTME: Defines the JSON envelope and time request/response payloads
package protocol

import "encoding/json"

// TimestampHeader carries the server clock reading on HTTP responses
const TimestampHeader = "Timestamp"

// Message types
const (
	TypeClientTime = "client/time"
	TypeServerTime = "server/time"
)

// Message is the top-level wrapper for outgoing messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is the top-level wrapper for incoming messages
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ClientTime is sent to request the server clock
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in milliseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	Timestamp         int64 `json:"timestamp"`          // Server clock in milliseconds since epoch
}
