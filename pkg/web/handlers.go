package web

import (
	"bytes"
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/attentix/attentix/internal/log"
	"github.com/attentix/attentix/pkg/attention"
	"github.com/attentix/attentix/pkg/hub"
	"github.com/attentix/attentix/pkg/protocol"
)

// configPayload is the wire form of the detection tuning. Fields are
// pointers so PUT /api/config can update a subset.
type configPayload struct {
	EARBlinkThreshold  *float64 `json:"ear_blink_threshold,omitempty"`
	EAROpenThreshold   *float64 `json:"ear_open_threshold,omitempty"`
	BlinkFrames        *int     `json:"blink_frames,omitempty"`
	StabilityThreshold *float64 `json:"stability_threshold,omitempty"`
	ConfirmFrames      *int     `json:"confirm_frames,omitempty"`
	BreakFrames        *int     `json:"break_frames,omitempty"`
	FaceTimeoutFrames  *int     `json:"face_timeout_frames,omitempty"`
}

func configToPayload(cfg attention.Config) configPayload {
	return configPayload{
		EARBlinkThreshold:  &cfg.EARBlinkThreshold,
		EAROpenThreshold:   &cfg.EAROpenThreshold,
		BlinkFrames:        &cfg.BlinkFrames,
		StabilityThreshold: &cfg.StabilityThreshold,
		ConfirmFrames:      &cfg.ConfirmFrames,
		BreakFrames:        &cfg.BreakFrames,
		FaceTimeoutFrames:  &cfg.FaceTimeoutFrames,
	}
}

// apply overlays the payload's set fields on a base tuning.
func (p configPayload) apply(cfg attention.Config) attention.Config {
	if p.EARBlinkThreshold != nil {
		cfg.EARBlinkThreshold = *p.EARBlinkThreshold
	}
	if p.EAROpenThreshold != nil {
		cfg.EAROpenThreshold = *p.EAROpenThreshold
	}
	if p.BlinkFrames != nil {
		cfg.BlinkFrames = *p.BlinkFrames
	}
	if p.StabilityThreshold != nil {
		cfg.StabilityThreshold = *p.StabilityThreshold
	}
	if p.ConfirmFrames != nil {
		cfg.ConfirmFrames = *p.ConfirmFrames
	}
	if p.BreakFrames != nil {
		cfg.BreakFrames = *p.BreakFrames
	}
	if p.FaceTimeoutFrames != nil {
		cfg.FaceTimeoutFrames = *p.FaceTimeoutFrames
	}
	return cfg
}

// handleStatus returns the latest pipeline status and playback state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    s.Status(),
		"player":    s.ctrl.PlayerInfo(),
		"detection": s.ctrl.DetectionEnabled(),
	})
}

// handleGetConfig returns the active detection tuning.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(configToPayload(s.ctrl.Config()))
}

// handleUpdateConfig applies a partial detection tuning update. Fields
// absent from the body keep their current value.
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var payload configPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid config body"})
	}
	cfg := payload.apply(s.ctrl.Config())
	if err := s.ctrl.UpdateConfig(cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	log.Info("detection tuning updated",
		"confirm_frames", cfg.ConfirmFrames,
		"break_frames", cfg.BreakFrames,
		"stability_threshold", cfg.StabilityThreshold)
	return c.JSON(configToPayload(cfg))
}

type loadRequest struct {
	Path string `json:"path"`
}

// handleVideoLoad loads a video file into the player.
func (s *Server) handleVideoLoad(c *fiber.Ctx) error {
	var req loadRequest
	if err := c.BodyParser(&req); err != nil || req.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path required"})
	}
	if err := s.ctrl.LoadVideo(req.Path); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"loaded": req.Path})
}

// handleTransport returns a handler that runs one playback action.
func (s *Server) handleTransport(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.ctrl.Transport(action, 0); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"action": action})
	}
}

type seekRequest struct {
	Fraction float64 `json:"fraction"`
}

// handleSeek jumps playback to a fraction of the video duration.
func (s *Server) handleSeek(c *fiber.Ctx) error {
	var req seekRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fraction required"})
	}
	if req.Fraction < 0 || req.Fraction > 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fraction must be between 0 and 1"})
	}
	if err := s.ctrl.Transport(protocol.ActionSeek, req.Fraction); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"action": protocol.ActionSeek, "fraction": req.Fraction})
}

// handleDetection returns a handler that toggles attention-driven
// playback control.
func (s *Server) handleDetection(enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.ctrl.SetDetection(enabled)
		log.Info("detection toggled", "enabled", enabled)
		return c.JSON(fiber.Map{"detection": enabled})
	}
}

// sessionEntry is one item in the /api/sessions listing.
type sessionEntry struct {
	ID                 string  `json:"id"`
	Source             string  `json:"source"`
	StartedAt          int64   `json:"started_at"`
	EndedAt            int64   `json:"ended_at,omitempty"`
	DurationMS         int64   `json:"duration_ms"`
	Frames             int     `json:"frames"`
	AttentiveRatio     float64 `json:"attentive_ratio"`
	FaceRatio          float64 `json:"face_ratio"`
	Transitions        int     `json:"transitions"`
	LongestAttentiveMS int64   `json:"longest_attentive_ms"`
}

// handleSessions lists recorded sessions with their attention summaries,
// newest first.
func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.sessions == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session store not configured"})
	}
	infos, err := s.sessions.Sessions()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	entries := make([]sessionEntry, 0, len(infos))
	for _, info := range infos {
		sum, err := s.sessions.Summarize(info.ID)
		if err != nil {
			log.Warn("failed to summarize session", "session", info.ID, "error", err)
			continue
		}
		entry := sessionEntry{
			ID:                 sum.ID,
			Source:             sum.Source,
			StartedAt:          sum.StartedAt.UnixMilli(),
			DurationMS:         sum.Duration.Milliseconds(),
			Frames:             sum.Frames,
			AttentiveRatio:     sum.AttentiveRatio,
			FaceRatio:          sum.FaceRatio,
			Transitions:        sum.Transitions,
			LongestAttentiveMS: sum.LongestAttentive.Milliseconds(),
		}
		if !sum.EndedAt.IsZero() {
			entry.EndedAt = sum.EndedAt.UnixMilli()
		}
		entries = append(entries, entry)
	}
	return c.JSON(entries)
}

// handleSessionReport renders the HTML report for one session.
func (s *Server) handleSessionReport(c *fiber.Ctx) error {
	if s.sessions == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session store not configured"})
	}
	var buf bytes.Buffer
	if err := s.sessions.RenderReport(&buf, c.Params("id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Type("html")
	return c.Send(buf.Bytes())
}

// handleStatusWS streams pipeline status as JSON and accepts transport
// commands from the dashboard. Blocks until the client disconnects.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	client.Run()
}

// handleCameraWS streams camera JPEG frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	client := hub.NewClient(s.cameraHub, c)
	client.Run()
}

// handleVideoWS streams frames of the playing video.
func (s *Server) handleVideoWS(c *websocket.Conn) {
	client := hub.NewClient(s.videoHub, c)
	client.Run()
}

// handleCommand dispatches transport commands arriving on the status
// socket. It runs on client read goroutines and must not block.
func (s *Server) handleCommand(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("failed to parse ws message", "error", err)
		return
	}
	if msg.Type != protocol.TypeCommand {
		return
	}
	cmd, err := msg.GetCommandData()
	if err != nil {
		log.Warn("ws command payload invalid", "error", err)
		return
	}
	if err := s.ctrl.Transport(cmd.Action, cmd.Value); err != nil {
		log.Warn("ws command rejected", "action", cmd.Action, "error", err)
	}
}
