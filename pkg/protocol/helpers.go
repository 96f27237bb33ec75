package protocol

import (
	"time"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewStatusMessage creates a status message from an attention snapshot
func NewStatusMessage(data StatusData) (*Message, error) {
	return NewMessage(TypeStatus, data)
}

// NewPlayerMessage creates a player state message
func NewPlayerMessage(data PlayerData) (*Message, error) {
	return NewMessage(TypePlayer, data)
}

// NewSessionStartedMessage announces a new session
func NewSessionStartedMessage(id string, startedAt time.Time) (*Message, error) {
	return NewMessage(TypeSession, SessionData{
		ID:        id,
		Event:     SessionStarted,
		StartedAt: startedAt.UnixMilli(),
	})
}

// NewSessionEndedMessage announces the end of a session with its summary numbers
func NewSessionEndedMessage(id string, startedAt, endedAt time.Time, attentiveRatio float64, transitions int) (*Message, error) {
	return NewMessage(TypeSession, SessionData{
		ID:             id,
		Event:          SessionEnded,
		StartedAt:      startedAt.UnixMilli(),
		EndedAt:        endedAt.UnixMilli(),
		AttentiveRatio: attentiveRatio,
		Transitions:    transitions,
	})
}

// NewCommandMessage creates a transport command message
func NewCommandMessage(action string, value float64) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{
		Action: action,
		Value:  value,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetStatusData extracts the attention snapshot from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPlayerData extracts the player state from a message
func (m *Message) GetPlayerData() (*PlayerData, error) {
	var data PlayerData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSessionData extracts the session event from a message
func (m *Message) GetSessionData() (*SessionData, error) {
	var data SessionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCommandData extracts the transport command from a message
func (m *Message) GetCommandData() (*CommandData, error) {
	var data CommandData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
