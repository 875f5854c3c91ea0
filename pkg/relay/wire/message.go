// Package wire defines the JSON messages exchanged between a tracker
// bridge and the experiment host over a websocket.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of a websocket message.
type MessageType string

const (
	// Bridge → host
	TypeHello  MessageType = "hello"  // Bridge identity
	TypeGaze   MessageType = "gaze"   // Raw gaze sample
	TypeButton MessageType = "button" // Gamepad button event
	TypeClock  MessageType = "clock"  // Tracker clock reading

	// Host → bridge
	TypeStart   MessageType = "start"   // Open the session log
	TypeStop    MessageType = "stop"    // Close the session log
	TypeMessage MessageType = "message" // Log a message
	TypeCode    MessageType = "code"    // Send an event code
	TypeFlush   MessageType = "flush"   // Drop queued events

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope of every websocket message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the payload into v.
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON encoding of m.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes a message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// HelloData announces a bridge.
type HelloData struct {
	ID      string `json:"id"`
	Tracker string `json:"tracker"` // e.g. "file", "sim"
}

// GazeData is one raw gaze sample in screen pixels.
type GazeData struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	T     int64   `json:"t"` // tracker ms
	Valid bool    `json:"valid"`
}

// ButtonData is one button event.
type ButtonData struct {
	Button  int   `json:"button"`
	Pressed bool  `json:"pressed"`
	T       int64 `json:"t"`
}

// ClockData is a tracker clock reading.
type ClockData struct {
	T int64 `json:"t"`
}

// StartData opens a session log. An empty filename means do not record.
type StartData struct {
	Filename string `json:"filename"`
}

// TextData carries a log message.
type TextData struct {
	Text string `json:"text"`
}

// CodeData carries an event code.
type CodeData struct {
	Code int `json:"code"`
}

// PingData carries a ping.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData answers a ping.
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
