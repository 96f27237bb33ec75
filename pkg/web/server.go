// Package web serves the attentix dashboard: a REST control surface
// under /api, websocket fan-out for the camera, video and status
// streams under /ws, and the static frontend at /.
package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/attentix/attentix/internal/log"
	"github.com/attentix/attentix/pkg/attention"
	"github.com/attentix/attentix/pkg/hub"
	"github.com/attentix/attentix/pkg/protocol"
	"github.com/attentix/attentix/pkg/session"
)

// Controller is the slice of the application the dashboard drives.
// The app package implements it.
type Controller interface {
	// Config returns the active detection tuning.
	Config() attention.Config

	// UpdateConfig validates and applies a new detection tuning.
	UpdateConfig(attention.Config) error

	// SetDetection pauses or resumes attention-driven playback control.
	// Manual transport keeps working either way.
	SetDetection(enabled bool)

	// DetectionEnabled reports whether detection drives the player.
	DetectionEnabled() bool

	// LoadVideo loads the given file into the player.
	LoadVideo(path string) error

	// Transport executes a playback action. Value carries the target
	// fraction for seeks and is ignored for every other action.
	Transport(action string, value float64) error

	// PlayerInfo returns the current playback state.
	PlayerInfo() protocol.PlayerData
}

// Config holds the web server settings.
type Config struct {
	// Addr is the listen address, for example ":8089".
	Addr string

	// StaticDir is the directory served at the root path.
	StaticDir string
}

// DefaultConfig returns the settings the attentix CLI starts with.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8089",
		StaticDir: "./web",
	}
}

// Server hosts the dashboard. Each stream gets its own hub so a slow
// camera viewer cannot stall status updates.
type Server struct {
	cfg  Config
	app  *fiber.App
	ctrl Controller

	// sessions is optional. Session endpoints answer 503 without it.
	sessions *session.Store

	statusHub *hub.Hub
	cameraHub *hub.Hub
	videoHub  *hub.Hub

	mu     sync.RWMutex
	status protocol.StatusData
}

// NewServer wires the fiber app, routes and stream hubs. Pass a nil
// store to run without session endpoints.
func NewServer(cfg Config, ctrl Controller, sessions *session.Store) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8089"
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "./web"
	}

	app := fiber.New(fiber.Config{
		AppName:               "attentix dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	s := &Server{
		cfg:       cfg,
		app:       app,
		ctrl:      ctrl,
		sessions:  sessions,
		statusHub: hub.New("status"),
		cameraHub: hub.New("camera"),
		videoHub:  hub.New("video"),
	}
	s.statusHub.OnMessage(s.handleCommand)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handleUpdateConfig)

	api.Post("/video/load", s.handleVideoLoad)
	api.Post("/video/play", s.handleTransport(protocol.ActionPlay))
	api.Post("/video/pause", s.handleTransport(protocol.ActionPause))
	api.Post("/video/stop", s.handleTransport(protocol.ActionStop))
	api.Post("/video/seek", s.handleSeek)
	api.Post("/video/next", s.handleTransport(protocol.ActionNext))
	api.Post("/video/prev", s.handleTransport(protocol.ActionPrevious))

	api.Post("/detection/enable", s.handleDetection(true))
	api.Post("/detection/disable", s.handleDetection(false))

	api.Get("/sessions", s.handleSessions)
	api.Get("/sessions/:id/report", s.handleSessionReport)

	// Websocket routes need the upgrade check before the handler runs.
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/status", websocket.New(s.handleStatusWS))
	s.app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	s.app.Get("/ws/video", websocket.New(s.handleVideoWS))

	s.app.Static("/", s.cfg.StaticDir)
}

// Start runs the stream hubs and serves until the listener fails or
// Shutdown is called. The hubs stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.videoHub.Run(ctx)

	fmt.Printf("🌐 Dashboard on http://localhost%s\n", s.cfg.Addr)
	log.Info("web server listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// StartAsync runs Start on its own goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown stops the listener. The hub goroutines exit with the
// context passed to Start.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// BroadcastStatus caches the latest pipeline status and fans it out to
// status socket clients.
func (s *Server) BroadcastStatus(data protocol.StatusData) {
	s.mu.Lock()
	s.status = data
	s.mu.Unlock()

	msg, err := protocol.NewStatusMessage(data)
	if err != nil {
		log.Error("failed to build status message", "error", err)
		return
	}
	s.broadcast(msg)
}

// BroadcastPlayer fans playback state out to status socket clients.
func (s *Server) BroadcastPlayer(data protocol.PlayerData) {
	msg, err := protocol.NewPlayerMessage(data)
	if err != nil {
		log.Error("failed to build player message", "error", err)
		return
	}
	s.broadcast(msg)
}

// BroadcastMessage sends an already built protocol message to status
// socket clients. Session lifecycle events arrive through here.
func (s *Server) BroadcastMessage(msg *protocol.Message) {
	s.broadcast(msg)
}

func (s *Server) broadcast(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		log.Error("failed to encode message", "type", string(msg.Type), "error", err)
		return
	}
	s.statusHub.Broadcast(hub.NewJSONMessage(data))
}

// SendCameraFrame fans a JPEG camera frame out to camera stream clients.
func (s *Server) SendCameraFrame(frame []byte) {
	s.cameraHub.BroadcastBinary(frame)
}

// SendVideoFrame fans a JPEG video frame out to video stream clients.
func (s *Server) SendVideoFrame(frame []byte) {
	s.videoHub.BroadcastBinary(frame)
}

// Status returns the most recently broadcast pipeline status.
func (s *Server) Status() protocol.StatusData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CameraClients returns the number of connected camera stream clients.
// The capture loop skips the camera fan-out when nobody is watching.
func (s *Server) CameraClients() int { return s.cameraHub.ClientCount() }

// VideoClients returns the number of connected video stream clients.
func (s *Server) VideoClients() int { return s.videoHub.ClientCount() }
