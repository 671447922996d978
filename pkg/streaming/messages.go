// Package streaming defines the messages the mirror server exchanges with
// remote displays over WebSocket.
package streaming

import (
	"encoding/json"
	"time"
)

// Message types.
const (
	TypeSnapshot = "snapshot" // server -> client, full view
	TypePing     = "ping"     // client -> server
	TypeAck      = "ack"      // server -> client, reply to ping
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SnapshotPayload is the whole console view keyed by region name.
// Seq increases with every snapshot the server sends.
type SnapshotPayload struct {
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Regions map[string]any `json:"regions"`
}

// NewSnapshot encodes a snapshot envelope.
func NewSnapshot(p SnapshotPayload) ([]byte, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypeSnapshot, Payload: payload})
}

// DecodeSnapshot reads a snapshot envelope.
func DecodeSnapshot(data []byte) (SnapshotPayload, error) {
	var env Envelope
	var p SnapshotPayload
	if err := json.Unmarshal(data, &env); err != nil {
		return p, err
	}
	if env.Type != TypeSnapshot {
		return p, &UnexpectedTypeError{Want: TypeSnapshot, Got: env.Type}
	}
	err := json.Unmarshal(env.Payload, &p)
	return p, err
}

// UnexpectedTypeError reports an envelope of the wrong type.
type UnexpectedTypeError struct {
	Want, Got string
}

func (e *UnexpectedTypeError) Error() string {
	return "expected " + e.Want + " message, got " + e.Got
}
