package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "status message",
			msgType: TypeStatus,
			data:    StatusData{FrameID: 7, State: "attentive", AvgEAR: 0.31},
			wantErr: false,
		},
		{
			name:    "player message",
			msgType: TypePlayer,
			data:    PlayerData{Playing: true, Fraction: 0.5},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypeCommand,
			data:    nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if msg == nil && !tt.wantErr {
				t.Error("NewMessage() returned nil message")
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := StatusData{
		FrameID:      42,
		FaceDetected: true,
		LeftEAR:      0.29,
		RightEAR:     0.33,
		AvgEAR:       0.31,
		EyeState:     "open",
		Variance:     12.5,
		Stable:       true,
		State:        "attentive",
		ConfirmCount: 12,
		Detection:    true,
		CaptureFPS:   29.7,
	}

	msg, err := NewStatusMessage(original)
	if err != nil {
		t.Fatalf("NewStatusMessage() error = %v", err)
	}

	// Serialize to bytes
	bytes, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	// Parse back
	parsed, err := ParseMessage(bytes)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	// Verify type
	if parsed.Type != TypeStatus {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeStatus)
	}

	// Extract data
	status, err := parsed.GetStatusData()
	if err != nil {
		t.Fatalf("GetStatusData() error = %v", err)
	}

	if status.FrameID != original.FrameID {
		t.Errorf("FrameID = %v, want %v", status.FrameID, original.FrameID)
	}
	if status.AvgEAR != original.AvgEAR {
		t.Errorf("AvgEAR = %v, want %v", status.AvgEAR, original.AvgEAR)
	}
	if status.State != original.State {
		t.Errorf("State = %v, want %v", status.State, original.State)
	}
	if !status.Stable {
		t.Error("Stable should survive the round trip")
	}
}

func TestPlayerMessage(t *testing.T) {
	msg, err := NewPlayerMessage(PlayerData{
		Path:       "videos/clip.mp4",
		Playing:    true,
		PositionMS: 15000,
		DurationMS: 60000,
		Fraction:   0.25,
		Index:      1,
		Count:      3,
	})
	if err != nil {
		t.Fatalf("NewPlayerMessage() error = %v", err)
	}

	if msg.Type != TypePlayer {
		t.Errorf("Type = %v, want %v", msg.Type, TypePlayer)
	}

	player, err := msg.GetPlayerData()
	if err != nil {
		t.Fatalf("GetPlayerData() error = %v", err)
	}

	if player.Path != "videos/clip.mp4" {
		t.Errorf("Path = %v, want videos/clip.mp4", player.Path)
	}
	if !player.Playing {
		t.Error("Playing should be true")
	}
	if player.Fraction != 0.25 {
		t.Errorf("Fraction = %v, want 0.25", player.Fraction)
	}
}

func TestSessionMessages(t *testing.T) {
	started := time.UnixMilli(1700000000000)

	msg, err := NewSessionStartedMessage("abc-123", started)
	if err != nil {
		t.Fatalf("NewSessionStartedMessage() error = %v", err)
	}
	if msg.Type != TypeSession {
		t.Errorf("Type = %v, want %v", msg.Type, TypeSession)
	}

	session, err := msg.GetSessionData()
	if err != nil {
		t.Fatalf("GetSessionData() error = %v", err)
	}
	if session.Event != SessionStarted {
		t.Errorf("Event = %v, want %v", session.Event, SessionStarted)
	}
	if session.StartedAt != started.UnixMilli() {
		t.Errorf("StartedAt = %v, want %v", session.StartedAt, started.UnixMilli())
	}
	if session.EndedAt != 0 {
		t.Errorf("EndedAt = %v, want 0 on start", session.EndedAt)
	}

	ended := started.Add(90 * time.Second)
	msg, err = NewSessionEndedMessage("abc-123", started, ended, 0.82, 5)
	if err != nil {
		t.Fatalf("NewSessionEndedMessage() error = %v", err)
	}

	session, err = msg.GetSessionData()
	if err != nil {
		t.Fatalf("GetSessionData() error = %v", err)
	}
	if session.Event != SessionEnded {
		t.Errorf("Event = %v, want %v", session.Event, SessionEnded)
	}
	if session.EndedAt != ended.UnixMilli() {
		t.Errorf("EndedAt = %v, want %v", session.EndedAt, ended.UnixMilli())
	}
	if session.AttentiveRatio != 0.82 {
		t.Errorf("AttentiveRatio = %v, want 0.82", session.AttentiveRatio)
	}
	if session.Transitions != 5 {
		t.Errorf("Transitions = %v, want 5", session.Transitions)
	}
}

func TestCommandMessage(t *testing.T) {
	msg, err := NewCommandMessage(ActionSeek, 0.75)
	if err != nil {
		t.Fatalf("NewCommandMessage() error = %v", err)
	}

	if msg.Type != TypeCommand {
		t.Errorf("Type = %v, want %v", msg.Type, TypeCommand)
	}

	cmd, err := msg.GetCommandData()
	if err != nil {
		t.Fatalf("GetCommandData() error = %v", err)
	}

	if cmd.Action != ActionSeek {
		t.Errorf("Action = %v, want %v", cmd.Action, ActionSeek)
	}
	if cmd.Value != 0.75 {
		t.Errorf("Value = %v, want 0.75", cmd.Value)
	}
}

func TestParseInvalidMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "invalid json",
			input:   "not json",
			wantErr: true,
		},
		{
			name:    "empty json",
			input:   "{}",
			wantErr: false, // Empty is valid, just no type
		},
		{
			name:    "valid message",
			input:   `{"type":"command","ts":1234567890,"data":{"action":"play"}}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageJSON(t *testing.T) {
	// Verify JSON structure matches expected format
	msg, _ := NewCommandMessage(ActionPlay, 0)

	bytes, _ := msg.Bytes()

	var parsed map[string]interface{}
	if err := json.Unmarshal(bytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal as map: %v", err)
	}

	if parsed["type"] != "command" {
		t.Errorf("type = %v, want command", parsed["type"])
	}

	if _, ok := parsed["ts"]; !ok {
		t.Error("ts field should be present")
	}

	if _, ok := parsed["data"]; !ok {
		t.Error("data field should be present")
	}
}

func BenchmarkNewStatusMessage(b *testing.B) {
	status := StatusData{
		FrameID:      1,
		FaceDetected: true,
		AvgEAR:       0.3,
		EyeState:     "open",
		Variance:     20,
		Stable:       true,
		State:        "attentive",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		status.FrameID = uint64(i)
		NewStatusMessage(status)
	}
}

func BenchmarkParseMessage(b *testing.B) {
	msg, _ := NewStatusMessage(StatusData{FrameID: 1, State: "attentive"})
	bytes, _ := msg.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseMessage(bytes)
	}
}
