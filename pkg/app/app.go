package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/attentix/attentix/internal/log"
	"github.com/attentix/attentix/pkg/attention"
	"github.com/attentix/attentix/pkg/capture"
	"github.com/attentix/attentix/pkg/debug"
	"github.com/attentix/attentix/pkg/facemesh"
	"github.com/attentix/attentix/pkg/facemesh/mediapipe"
	"github.com/attentix/attentix/pkg/facemesh/replay"
	"github.com/attentix/attentix/pkg/player"
	"github.com/attentix/attentix/pkg/protocol"
	"github.com/attentix/attentix/pkg/session"
	"github.com/attentix/attentix/pkg/web"
)

// Consecutive landmark failures before the sidecar gets restarted.
const meshFailureLimit = 30

// App is the attentix orchestrator. It owns every component and runs
// the strictly sequential detection loop: one frame in, one result
// out, no frame ever processed concurrently with another.
type App struct {
	config Config

	// Landmark pipeline. Either source+mesher (live) or stream
	// (replay) is set, never both.
	source capture.Source
	worker *mediapipe.Worker
	mesher facemesh.Mesher
	stream facemesh.Source

	// Playback
	player   *player.Player
	playlist *player.Playlist

	// Persistence, all optional
	store    *session.Store
	recorder *session.Recorder
	snaps    *session.Snapshotter
	meshLog  *facemesh.Recorder

	// Dashboard
	web *web.Server

	// mu guards the detector swap and the detection toggle. The loop
	// takes a snapshot of both per frame; only the loop calls Process.
	mu        sync.Mutex
	detector  *attention.Detector
	detection bool

	frameID uint64
}

var _ web.Controller = (*App)(nil)

// New creates the application with the given configuration.
func New(cfg Config) (*App, error) {
	cfg.LoadEnvConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Debug {
		log.Init("debug")
	} else {
		log.InitFromEnv()
	}
	debug.Enabled = cfg.Debug
	debug.Frames = cfg.DebugFrames

	return &App{
		config:    cfg,
		detection: cfg.DetectionEnabled,
	}, nil
}

// Init initializes all components.
// Call this after New() and before Run().
func (a *App) Init(ctx context.Context) error {
	fmt.Println("👁  Attentix - Attention-Aware Playback")
	fmt.Println("=======================================")
	debug.Logln("🐛 Debug mode enabled")

	if err := a.initLandmarks(ctx); err != nil {
		return err
	}

	det, err := attention.NewDetector(a.config.Detection)
	if err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	a.detector = det

	if err := a.initPlayback(); err != nil {
		return err
	}
	if err := a.initSessions(); err != nil {
		return err
	}
	if err := a.initRecording(); err != nil {
		return err
	}

	a.web = web.NewServer(web.Config{
		Addr:      a.config.HTTPAddr,
		StaticDir: a.config.StaticDir,
	}, a, a.store)

	return nil
}

// initLandmarks opens the landmark source: a JSONL replay, a remote
// WebRTC camera or the local webcam plus the mediapipe sidecar.
func (a *App) initLandmarks(ctx context.Context) error {
	if a.config.ReplayPath != "" {
		reader, err := replay.Open(a.config.ReplayPath, replay.Config{Speed: 1})
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		a.stream = reader
		fmt.Printf("🎞  Replaying landmarks from %s\n", a.config.ReplayPath)
		return nil
	}

	fmt.Print("📷 Opening camera... ")
	if a.config.RemoteURL != "" {
		remote, err := capture.DialRemote(ctx, capture.RemoteConfig{
			SignallingURL: a.config.RemoteURL,
		})
		if err != nil {
			return fmt.Errorf("remote camera: %w", err)
		}
		a.source = remote
	} else {
		cam, err := capture.OpenWebcam(capture.WebcamConfig{DeviceID: a.config.DeviceID})
		if err != nil {
			return fmt.Errorf("camera: %w", err)
		}
		a.source = cam
	}
	fmt.Println("✅")

	fmt.Print("🧠 Starting landmark worker... ")
	worker := mediapipe.NewWorker(mediapipe.Config{Python: a.config.Python, Script: a.config.MeshScript})
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("landmark worker: %w", err)
	}
	a.worker = worker
	a.mesher = worker
	fmt.Println("✅")
	return nil
}

// initPlayback builds the player and scans the playlist directory.
func (a *App) initPlayback() error {
	cfg := player.DefaultConfig()
	cfg.Audio = a.config.Audio
	a.player = player.NewPlayer(cfg)

	if a.config.VideoDir != "" {
		pl, err := player.LoadPlaylist(a.config.VideoDir)
		if err != nil {
			fmt.Printf("⚠️  Playlist: %v\n", err)
		} else {
			a.playlist = pl
			fmt.Printf("🎬 Playlist: %d videos in %s\n", pl.Count(), a.config.VideoDir)
		}
	}

	if a.config.AutoLoad != "" {
		if err := a.player.Load(a.config.AutoLoad); err != nil {
			return fmt.Errorf("load %s: %w", a.config.AutoLoad, err)
		}
		fmt.Printf("🎬 Loaded %s\n", a.config.AutoLoad)
	}
	return nil
}

// initSessions opens the sqlite store and starts a session recorder.
func (a *App) initSessions() error {
	if a.config.DBPath == "" {
		fmt.Println("💾 Session recording disabled")
		return nil
	}

	store, err := session.Open(a.config.DBPath)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	a.store = store

	rec, err := session.NewRecorder(store, a.sourceName())
	if err != nil {
		return fmt.Errorf("session recorder: %w", err)
	}
	a.recorder = rec
	fmt.Printf("💾 Session %s → %s\n", rec.ID(), a.config.DBPath)

	if a.config.SnapshotDir != "" {
		snaps, err := session.NewSnapshotter(session.SnapshotConfig{Dir: a.config.SnapshotDir})
		if err != nil {
			return fmt.Errorf("snapshots: %w", err)
		}
		a.snaps = snaps
		fmt.Printf("📸 Attention-loss snapshots → %s\n", a.config.SnapshotDir)
	}
	return nil
}

// initRecording opens the landmark JSONL log when configured.
func (a *App) initRecording() error {
	if a.config.RecordPath == "" {
		return nil
	}
	f, err := os.Create(a.config.RecordPath)
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	a.meshLog = facemesh.NewRecorder(f)
	fmt.Printf("📝 Recording landmarks → %s\n", a.config.RecordPath)
	return nil
}

// sourceName labels the session with its input.
func (a *App) sourceName() string {
	switch {
	case a.config.ReplayPath != "":
		return "replay:" + a.config.ReplayPath
	case a.config.RemoteURL != "":
		return "remote:" + a.config.RemoteURL
	default:
		return fmt.Sprintf("camera:%d", a.config.DeviceID)
	}
}

// Run starts the dashboard and pumps, then blocks in the detection
// loop until ctx is cancelled or the landmark source ends.
func (a *App) Run(ctx context.Context) error {
	fmt.Println("\n👁  Watching for attention. Ctrl+C to exit.")

	a.web.StartAsync(ctx)
	go a.pumpVideo(ctx)
	go a.pumpPlayerState(ctx)

	if a.recorder != nil {
		if msg, err := protocol.NewSessionStartedMessage(a.recorder.ID(), a.recorder.StartedAt()); err == nil {
			a.web.BroadcastMessage(msg)
		}
	}

	return a.runDetection(ctx)
}

// runDetection is the sequential pipeline loop.
func (a *App) runDetection(ctx context.Context) error {
	if a.stream != nil {
		return a.runReplay(ctx)
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		jpeg, err := a.source.Frame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("camera frame failed", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if a.web.CameraClients() > 0 {
			a.web.SendCameraFrame(jpeg)
		}

		frame, err := a.mesher.Mesh(jpeg)
		if err != nil {
			failures++
			debug.Log("mesh failed (%d consecutive): %v\n", failures, err)
			if failures >= meshFailureLimit && a.worker != nil {
				log.Warn("landmark worker unresponsive, restarting", "failures", failures)
				a.worker.Stop()
				if err := a.worker.Start(ctx); err != nil {
					log.Error("landmark worker restart failed", "error", err)
				}
				failures = 0
			}
			frame = nil
		} else {
			failures = 0
		}

		a.handleFrame(jpeg, frame)
	}
}

// runReplay drives the pipeline from a recording instead of a camera.
func (a *App) runReplay(ctx context.Context) error {
	for {
		frame, err := a.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("🎞  Replay finished")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("app: replay: %w", err)
		}
		a.handleFrame(nil, frame)
	}
}

// handleFrame runs one observation through the detector and fans the
// result out to the player, dashboard and session recorder.
func (a *App) handleFrame(jpeg []byte, frame *facemesh.Frame) {
	if a.meshLog != nil {
		if frame != nil && frame.Valid() {
			if err := a.meshLog.WriteFrame(frame); err != nil {
				log.Warn("landmark log write failed", "error", err)
			}
		} else if err := a.meshLog.WriteGap(time.Now()); err != nil {
			log.Warn("landmark log write failed", "error", err)
		}
	}

	a.mu.Lock()
	det := a.detector
	enabled := a.detection
	a.mu.Unlock()

	res := det.Process(frame)
	a.frameID++

	debug.FrameLog("frame=%d face=%v ear=%.3f var=%.1f state=%s\n",
		a.frameID, res.FaceDetected, res.AvgEAR, res.Variance, res.State)

	if a.recorder != nil {
		a.recorder.Observe(res)
	}

	if enabled && res.Command != attention.CommandNone {
		if err := a.player.Apply(res.Command); err != nil {
			log.Warn("transport command failed", "command", res.Command.String(), "error", err)
		} else if a.player.Loaded() {
			switch res.Command {
			case attention.CommandPlay:
				fmt.Println("▶️  Attention regained, playing")
			case attention.CommandPause:
				fmt.Println("⏸  Attention lost, paused")
			}
		}
	}

	if res.Changed && res.State == attention.NotAttentive && a.snaps != nil && a.recorder != nil && jpeg != nil {
		at := res.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := a.snaps.Save(a.recorder.ID(), at, jpeg); err != nil {
			log.Warn("snapshot failed", "error", err)
		}
	}

	a.web.BroadcastStatus(a.statusData(det, res, enabled))
}

// statusData maps a detector result to the dashboard wire form.
func (a *App) statusData(det *attention.Detector, res attention.Result, enabled bool) protocol.StatusData {
	confirm, brk, noFace := det.Counters()
	data := protocol.StatusData{
		FrameID:      a.frameID,
		FaceDetected: res.FaceDetected,
		FaceTimedOut: det.FaceTimedOut(),
		LeftEAR:      res.LeftEAR,
		RightEAR:     res.RightEAR,
		AvgEAR:       res.AvgEAR,
		EyeState:     res.EyeState.String(),
		Variance:     res.Variance,
		Stable:       res.Stable,
		State:        res.State.String(),
		Changed:      res.Changed,
		ConfirmCount: confirm,
		BreakCount:   brk,
		NoFaceCount:  noFace,
		Detection:    enabled,
		CaptureFPS:   a.captureRate(),
	}
	if res.Command != attention.CommandNone {
		data.Command = res.Command.String()
	}
	return data
}

type rater interface {
	Rate() float64
}

func (a *App) captureRate() float64 {
	if r, ok := a.source.(rater); ok {
		return r.Rate()
	}
	return 0
}

// pumpVideo decodes the playing video and fans frames out to the
// dashboard. Decoding is wall-clock paced inside the player; this loop
// only polls it.
func (a *App) pumpVideo(ctx context.Context) {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := a.player.Frame()
			if err != nil {
				continue
			}
			if a.web.VideoClients() > 0 {
				a.web.SendVideoFrame(frame)
			}
		}
	}
}

// pumpPlayerState broadcasts playback state to the dashboard at 2 Hz.
func (a *App) pumpPlayerState(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.web.BroadcastPlayer(a.PlayerInfo())
		}
	}
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Shutting down")

	if a.player != nil {
		if err := a.player.Close(); err != nil {
			log.Warn("player close failed", "error", err)
		}
	}
	if a.mesher != nil {
		if err := a.mesher.Close(); err != nil {
			log.Warn("landmark worker close failed", "error", err)
		}
	}
	if a.stream != nil {
		a.stream.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.meshLog != nil {
		count := a.meshLog.Count()
		if err := a.meshLog.Close(); err != nil {
			log.Warn("landmark log close failed", "error", err)
		} else {
			fmt.Printf("📝 Recorded %d mesh records\n", count)
		}
	}

	if a.recorder != nil {
		id := a.recorder.ID()
		if err := a.recorder.Close(); err != nil {
			log.Warn("session close failed", "error", err)
		} else if sum, err := a.store.Summarize(id); err == nil {
			fmt.Printf("💾 Session %s: %s, attentive %.0f%%, %d transitions\n",
				id, sum.Duration.Round(time.Second), sum.AttentiveRatio*100, sum.Transitions)
			if msg, err := protocol.NewSessionEndedMessage(id, sum.StartedAt, sum.EndedAt,
				sum.AttentiveRatio, sum.Transitions); err == nil {
				a.web.BroadcastMessage(msg)
			}
		}
	}

	if a.web != nil {
		if err := a.web.Shutdown(); err != nil {
			log.Warn("web server shutdown failed", "error", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

// Config returns the active detection tuning.
func (a *App) Config() attention.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detector.Config()
}

// UpdateConfig validates and applies a new detection tuning. The
// detection state machines restart from NotAttentive.
func (a *App) UpdateConfig(cfg attention.Config) error {
	det, err := attention.NewDetector(cfg)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.detector = det
	a.mu.Unlock()
	return nil
}

// SetDetection toggles attention-driven playback control. Toggling
// restarts the state machines so a command edge from before the toggle
// cannot fire the moment control resumes.
func (a *App) SetDetection(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detection == enabled {
		return
	}
	a.detection = enabled
	if det, err := attention.NewDetector(a.detector.Config()); err == nil {
		a.detector = det
	}
}

// DetectionEnabled reports whether attention drives the player.
func (a *App) DetectionEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detection
}

// LoadVideo loads a file into the player, paused at the start.
func (a *App) LoadVideo(path string) error {
	return a.player.Load(path)
}

// Transport executes one playback action from the dashboard.
func (a *App) Transport(action string, value float64) error {
	switch action {
	case protocol.ActionPlay:
		return a.player.Play()
	case protocol.ActionPause:
		return a.player.Pause()
	case protocol.ActionStop:
		return a.player.Stop()
	case protocol.ActionSeek:
		return a.player.Seek(value)
	case protocol.ActionNext:
		return a.advance(true)
	case protocol.ActionPrevious:
		return a.advance(false)
	default:
		return fmt.Errorf("app: unknown transport action %q", action)
	}
}

// advance loads the next or previous playlist entry and plays it.
func (a *App) advance(forward bool) error {
	if a.playlist == nil || a.playlist.Count() == 0 {
		return errors.New("app: no playlist loaded")
	}

	var (
		path string
		err  error
	)
	if forward {
		path, err = a.playlist.Next()
	} else {
		path, err = a.playlist.Previous()
	}
	if err != nil {
		return err
	}
	if err := a.player.Load(path); err != nil {
		return err
	}
	return a.player.Play()
}

// PlayerInfo returns the playback state in the dashboard wire form.
func (a *App) PlayerInfo() protocol.PlayerData {
	info := a.player.Info()
	data := protocol.PlayerData{
		Path:       info.Path,
		Playing:    info.Playing,
		Finished:   info.Finished,
		PositionMS: info.Position.Milliseconds(),
		DurationMS: info.Duration.Milliseconds(),
		Fraction:   info.Fraction,
	}
	if a.playlist != nil {
		data.Index = a.playlist.Index()
		data.Count = a.playlist.Count()
	}
	return data
}
