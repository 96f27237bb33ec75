// Attentix - attention-aware video playback.
// Watches the viewer through a camera and pauses the video when they
// stop watching. Serves a browser dashboard with live camera, video
// and pipeline state.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/attentix/attentix/pkg/app"
	"github.com/attentix/attentix/pkg/attention"
)

func main() {
	cfg := parseFlags()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() app.Config {
	cfg := app.DefaultConfig()

	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&cfg.DebugFrames, "debug-frames", false, "Log every pipeline frame (very verbose)")
	flag.IntVar(&cfg.DeviceID, "camera", cfg.DeviceID, "Webcam device index, -1 probes 0..9")
	flag.StringVar(&cfg.RemoteURL, "remote", "", "WebRTC camera signalling URL (overrides CAMERA_URL)")
	flag.StringVar(&cfg.ReplayPath, "replay", "", "Replay a JSONL landmark recording instead of live capture")
	flag.StringVar(&cfg.Python, "python", cfg.Python, "Python interpreter for the landmark worker")
	flag.BoolVar(&cfg.DetectionEnabled, "detection", cfg.DetectionEnabled, "Let attention control playback")
	flag.StringVar(&cfg.VideoDir, "videos", cfg.VideoDir, "Playlist directory")
	flag.StringVar(&cfg.AutoLoad, "load", "", "Video file to load at startup")
	flag.BoolVar(&cfg.Audio, "audio", cfg.Audio, "Play the soundtrack through ffplay")
	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "Dashboard listen address")
	flag.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Dashboard frontend directory")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Session database path, empty disables recording")
	flag.StringVar(&cfg.SnapshotDir, "snapshots", "", "Save webp stills on attention loss to this directory")
	flag.StringVar(&cfg.RecordPath, "record", "", "Append the landmark stream to this JSONL file")
	tuning := flag.String("tuning", "default", "Detection tuning: default, relaxed, strict")
	flag.Parse()

	switch *tuning {
	case "default":
	case "relaxed":
		cfg.Detection = attention.RelaxedConfig()
	case "strict":
		cfg.Detection = attention.StrictConfig()
	default:
		log.Fatalf("❌ Unknown tuning %q (want default, relaxed or strict)", *tuning)
	}

	return cfg
}
