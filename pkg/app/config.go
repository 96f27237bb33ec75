// Package app wires the attentix pipeline: a camera source feeds the
// landmark sidecar, the detector turns landmarks into attention state,
// and the player, dashboard and session store consume the results.
package app

import (
	"fmt"

	"github.com/attentix/attentix/internal/config"
	"github.com/attentix/attentix/pkg/attention"
)

// Config holds all configuration for the attentix service.
// Flag parsing is done in cmd/attentix/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// DebugFrames additionally logs every pipeline frame.
	DebugFrames bool

	// DeviceID selects the local webcam. Negative probes 0..9.
	DeviceID int

	// RemoteURL switches capture to a WebRTC camera when set, e.g.
	// ws://phone:8443.
	RemoteURL string

	// ReplayPath replays a JSONL landmark recording instead of live
	// capture. Mutually exclusive with RemoteURL.
	ReplayPath string

	// Python is the interpreter that runs the landmark sidecar.
	Python string

	// MeshScript points at an external worker script. Empty runs the
	// bundled one.
	MeshScript string

	// Detection is the attention tuning.
	Detection attention.Config

	// DetectionEnabled controls whether attention drives the player at
	// startup. Manual transport always works.
	DetectionEnabled bool

	// VideoDir is scanned for the playlist.
	VideoDir string

	// AutoLoad is a video file loaded (paused) at startup.
	AutoLoad string

	// Audio runs the ffplay soundtrack sidecar.
	Audio bool

	// HTTPAddr is the dashboard listen address.
	HTTPAddr string

	// StaticDir holds the dashboard frontend.
	StaticDir string

	// DBPath is the sqlite session database. Empty disables session
	// recording.
	DBPath string

	// SnapshotDir stores webp stills on attention loss when set.
	SnapshotDir string

	// RecordPath appends the landmark stream to a JSONL file when set.
	RecordPath string
}

// DefaultConfig returns sensible defaults for the attentix service.
func DefaultConfig() Config {
	return Config{
		DeviceID:         config.DefaultCameraID,
		Python:           config.DefaultPython,
		Detection:        attention.DefaultConfig(),
		DetectionEnabled: true,
		VideoDir:         config.DefaultVideoDir,
		Audio:            true,
		HTTPAddr:         config.DefaultHTTPAddr,
		StaticDir:        "./web",
		DBPath:           config.DefaultDBPath,
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnvConfig() {
	c.DeviceID = config.EnvInt("CAMERA_ID", c.DeviceID)
	c.RemoteURL = config.Env("CAMERA_URL", c.RemoteURL)
	c.Python = config.Env("MESH_PYTHON", c.Python)
	c.MeshScript = config.Env("MESH_SCRIPT", c.MeshScript)
	c.HTTPAddr = config.Env("HTTP_ADDR", c.HTTPAddr)
	c.VideoDir = config.Env("VIDEO_DIR", c.VideoDir)
	c.DBPath = config.Env("DB_PATH", c.DBPath)
	c.SnapshotDir = config.Env("SNAPSHOT_DIR", c.SnapshotDir)
}

// Validate checks that the configuration can run.
func (c *Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if c.ReplayPath != "" && c.RemoteURL != "" {
		return fmt.Errorf("app: replay and remote camera are mutually exclusive")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("app: HTTP address required")
	}
	return nil
}
