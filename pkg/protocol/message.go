// Package protocol defines the WebSocket message types exchanged over
// the status socket between the attentix service and dashboard clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Service → Dashboard messages
	TypeStatus  MessageType = "status"  // Per-frame attention snapshot
	TypePlayer  MessageType = "player"  // Playback state
	TypeSession MessageType = "session" // Session lifecycle event

	// Dashboard → Service messages
	TypeCommand MessageType = "command" // Transport command
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Service → Dashboard Message Types
// =============================================================================

// StatusData is the per-frame attention snapshot
type StatusData struct {
	FrameID      uint64 `json:"frame_id"`
	FaceDetected bool   `json:"face_detected"`
	FaceTimedOut bool   `json:"face_timed_out,omitempty"`

	// Eye geometry, zero when no face is visible
	LeftEAR  float64 `json:"left_ear"`
	RightEAR float64 `json:"right_ear"`
	AvgEAR   float64 `json:"avg_ear"`

	EyeState string  `json:"eye_state"`
	Variance float64 `json:"variance"`
	Stable   bool    `json:"stable"`

	State   string `json:"state"`
	Changed bool   `json:"changed,omitempty"`
	Command string `json:"command,omitempty"` // "play" or "pause" on edge frames

	// Debounce counters
	ConfirmCount int `json:"confirm_count"`
	BreakCount   int `json:"break_count"`
	NoFaceCount  int `json:"no_face_count"`

	Detection  bool    `json:"detection"` // Whether playback control is active
	CaptureFPS float64 `json:"capture_fps"`
}

// PlayerData is the playback state snapshot
type PlayerData struct {
	Path       string  `json:"path,omitempty"`
	Playing    bool    `json:"playing"`
	Finished   bool    `json:"finished,omitempty"`
	PositionMS int64   `json:"position_ms"`
	DurationMS int64   `json:"duration_ms"`
	Fraction   float64 `json:"fraction"` // 0.0 to 1.0
	Index      int     `json:"index"`    // Playlist position
	Count      int     `json:"count"`    // Playlist size
}

// SessionData announces a session lifecycle event
type SessionData struct {
	ID        string `json:"id"`
	Event     string `json:"event"`              // "started" or "ended"
	StartedAt int64  `json:"started_at"`         // Unix milliseconds
	EndedAt   int64  `json:"ended_at,omitempty"` // Unix milliseconds

	// Set on "ended"
	AttentiveRatio float64 `json:"attentive_ratio,omitempty"` // 0.0 to 1.0
	Transitions    int     `json:"transitions,omitempty"`
}

// Session lifecycle events
const (
	SessionStarted = "started"
	SessionEnded   = "ended"
)

// =============================================================================
// Dashboard → Service Message Types
// =============================================================================

// CommandData carries a transport command from the dashboard
type CommandData struct {
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"` // Seek fraction for ActionSeek
}

// Transport actions
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionStop     = "stop"
	ActionSeek     = "seek" // Value is the target fraction, 0.0 to 1.0
	ActionNext     = "next"
	ActionPrevious = "prev"
)
