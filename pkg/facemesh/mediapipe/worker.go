// Package mediapipe runs the Python face landmark worker as a child
// process and bridges it to the facemesh.Mesher contract. Frames go
// down as base64 JPEG JSON lines; pixel-space landmark sets come back
// the same way.
package mediapipe

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/attentix/attentix/internal/log"
	"github.com/attentix/attentix/pkg/facemesh"
)

// Config tunes the worker process.
type Config struct {
	// Python is the interpreter binary. Defaults to python3.
	Python string
	// Script is an external worker script path. Empty runs the bundled
	// script from a temp directory.
	Script string
	// StartupTimeout bounds the wait for the worker's ready line, which
	// includes the mediapipe model load. Defaults to 20s.
	StartupTimeout time.Duration
	// MeshTimeout bounds a single landmark request. Defaults to 5s.
	MeshTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 20 * time.Second
	}
	if c.MeshTimeout <= 0 {
		c.MeshTimeout = 5 * time.Second
	}
	return c
}

// Metrics is a snapshot of worker health counters.
type Metrics struct {
	FramesSent   uint64
	MeshesFound  uint64
	NoFaceFrames uint64
	Failures     uint64
	AvgLatencyMS float64
	LastSeenAt   time.Time
}

type request struct {
	ID   uint64 `json:"id"`
	JPEG string `json:"jpeg"`
}

type response struct {
	ID     uint64       `json:"id"`
	Ready  bool         `json:"ready"`
	Width  int          `json:"w"`
	Height int          `json:"h"`
	Points [][2]float64 `json:"points"`
	Error  string       `json:"error"`
}

// Worker owns one Python landmark process. Mesh is safe for concurrent
// callers; responses are matched to requests by id.
type Worker struct {
	cfg       Config
	scriptDir string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Bool
	ready  chan struct{}

	mu      sync.Mutex
	pending map[uint64]chan response

	seq            atomic.Uint64
	framesSent     atomic.Uint64
	meshesFound    atomic.Uint64
	noFaceFrames   atomic.Uint64
	failures       atomic.Uint64
	totalLatencyMS atomic.Uint64
	lastSeenAt     atomic.Value // time.Time
}

// NewWorker builds an unstarted worker.
func NewWorker(cfg Config) *Worker {
	return &Worker{cfg: cfg.withDefaults()}
}

// Start spawns the Python process and blocks until it reports ready or
// the startup timeout expires. A stopped worker can be started again.
func (w *Worker) Start(ctx context.Context) error {
	if w.active.Load() {
		return fmt.Errorf("mediapipe: worker already started")
	}

	script := w.cfg.Script
	if script == "" {
		var err error
		script, w.scriptDir, err = materializeScript()
		if err != nil {
			return err
		}
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.ready = make(chan struct{})
	w.pending = make(map[uint64]chan response)

	w.cmd = exec.CommandContext(w.ctx, w.cfg.Python, "-u", script)

	var err error
	if w.stdin, err = w.cmd.StdinPipe(); err != nil {
		return fmt.Errorf("mediapipe: stdin pipe: %w", err)
	}
	if w.stdout, err = w.cmd.StdoutPipe(); err != nil {
		return fmt.Errorf("mediapipe: stdout pipe: %w", err)
	}
	if w.stderr, err = w.cmd.StderrPipe(); err != nil {
		return fmt.Errorf("mediapipe: stderr pipe: %w", err)
	}

	if err := w.cmd.Start(); err != nil {
		return fmt.Errorf("mediapipe: start %s: %w", w.cfg.Python, err)
	}

	log.Info("mediapipe worker spawned", "pid", w.cmd.Process.Pid, "script", script)
	w.active.Store(true)
	w.lastSeenAt.Store(time.Now())

	w.wg.Add(3)
	go w.readResults()
	go w.logStderr()
	go w.waitProcess()

	select {
	case <-w.ready:
		log.Info("mediapipe worker ready")
		return nil
	case <-time.After(w.cfg.StartupTimeout):
		w.Stop()
		return fmt.Errorf("mediapipe: worker not ready after %s", w.cfg.StartupTimeout)
	case <-w.ctx.Done():
		w.Stop()
		return fmt.Errorf("mediapipe: canceled during startup: %w", w.ctx.Err())
	}
}

// Mesh sends one JPEG to the worker and waits for its landmark set.
// It returns (nil, nil) when the worker saw no face.
func (w *Worker) Mesh(jpeg []byte) (*facemesh.Frame, error) {
	if !w.active.Load() {
		return nil, fmt.Errorf("mediapipe: worker not running")
	}

	id := w.seq.Add(1)
	ch := make(chan response, 1)
	w.mu.Lock()
	w.pending[id] = ch
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
	}()

	if err := w.send(request{ID: id, JPEG: base64.StdEncoding.EncodeToString(jpeg)}); err != nil {
		w.failures.Add(1)
		return nil, err
	}
	w.framesSent.Add(1)
	begin := time.Now()

	select {
	case resp, ok := <-ch:
		if !ok {
			w.failures.Add(1)
			return nil, fmt.Errorf("mediapipe: worker exited")
		}
		w.totalLatencyMS.Add(uint64(time.Since(begin).Milliseconds()))
		w.lastSeenAt.Store(time.Now())
		return w.frameFrom(resp)
	case <-time.After(w.cfg.MeshTimeout):
		w.failures.Add(1)
		return nil, fmt.Errorf("mediapipe: no result after %s (worker may be hung)", w.cfg.MeshTimeout)
	case <-w.ctx.Done():
		return nil, fmt.Errorf("mediapipe: worker stopping: %w", w.ctx.Err())
	}
}

func (w *Worker) frameFrom(resp response) (*facemesh.Frame, error) {
	if resp.Error != "" {
		w.failures.Add(1)
		return nil, fmt.Errorf("mediapipe: worker: %s", resp.Error)
	}
	if len(resp.Points) == 0 {
		w.noFaceFrames.Add(1)
		return nil, nil
	}

	f := &facemesh.Frame{
		Points:    make([]facemesh.Point, len(resp.Points)),
		Timestamp: time.Now(),
		Width:     resp.Width,
		Height:    resp.Height,
	}
	for i, p := range resp.Points {
		f.Points[i] = facemesh.Point{X: p[0], Y: p[1]}
	}
	w.meshesFound.Add(1)
	return f, nil
}

// send writes one request line to the worker with a hang guard on the
// pipe write.
func (w *Worker) send(req request) error {
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("mediapipe: encode request: %w", err)
	}
	line = append(line, '\n')

	writeErr := make(chan error, 1)
	go func() {
		_, err := w.stdin.Write(line)
		writeErr <- err
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			return fmt.Errorf("mediapipe: write request: %w", err)
		}
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("mediapipe: stdin write timeout (worker may be hung)")
	case <-w.ctx.Done():
		return fmt.Errorf("mediapipe: worker stopping: %w", w.ctx.Err())
	}
}

// readResults parses worker stdout lines and resolves the matching
// pending request. When stdout closes every waiter is released.
func (w *Worker) readResults() {
	defer w.wg.Done()
	defer w.failPending()

	sc := bufio.NewScanner(w.stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	readyOnce := false

	for sc.Scan() {
		var resp response
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			log.Error("mediapipe worker emitted unparsable line", "error", err, "line", truncate(sc.Text(), 120))
			continue
		}
		if resp.Ready {
			if !readyOnce {
				readyOnce = true
				close(w.ready)
			}
			continue
		}

		w.mu.Lock()
		ch, ok := w.pending[resp.ID]
		w.mu.Unlock()
		if !ok {
			log.Warn("mediapipe result for unknown request", "id", resp.ID)
			continue
		}
		ch <- resp
	}

	if err := sc.Err(); err != nil {
		log.Error("mediapipe stdout read failed", "error", err)
	}
}

// failPending closes every waiting channel so in-flight Mesh calls
// return a worker-exited error instead of timing out.
func (w *Worker) failPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.pending {
		close(ch)
		delete(w.pending, id)
	}
}

// logStderr forwards worker stderr to the structured log, mapping the
// Python level tags.
func (w *Worker) logStderr() {
	defer w.wg.Done()

	sc := bufio.NewScanner(w.stderr)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			log.Error("mediapipe worker error", "log", line)
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			log.Warn("mediapipe worker warning", "log", line)
		default:
			log.Debug("mediapipe worker log", "log", line)
		}
	}
}

// waitProcess reaps the child so it never lingers as a zombie.
func (w *Worker) waitProcess() {
	defer w.wg.Done()

	err := w.cmd.Wait()
	if err == nil {
		log.Info("mediapipe worker exited cleanly")
		return
	}
	select {
	case <-w.ctx.Done():
		log.Debug("mediapipe worker exited on shutdown")
	default:
		log.Error("mediapipe worker exited unexpectedly", "error", err)
	}
}

// Metrics returns a snapshot of the worker counters.
func (w *Worker) Metrics() Metrics {
	m := Metrics{
		FramesSent:   w.framesSent.Load(),
		MeshesFound:  w.meshesFound.Load(),
		NoFaceFrames: w.noFaceFrames.Load(),
		Failures:     w.failures.Load(),
	}
	if m.MeshesFound+m.NoFaceFrames > 0 {
		m.AvgLatencyMS = float64(w.totalLatencyMS.Load()) / float64(m.MeshesFound+m.NoFaceFrames)
	}
	if v := w.lastSeenAt.Load(); v != nil {
		m.LastSeenAt = v.(time.Time)
	}
	return m
}

// Stop shuts the worker down: cancel, close stdin so the script exits
// its read loop, then kill after a grace period. Implements the
// facemesh.Mesher Close contract.
func (w *Worker) Stop() error {
	if !w.active.Load() {
		return nil
	}
	w.active.Store(false)

	if w.cancel != nil {
		w.cancel()
	}
	if w.stdin != nil {
		w.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn("mediapipe worker stop timeout, killing process")
		if w.cmd != nil && w.cmd.Process != nil {
			w.cmd.Process.Kill()
		}
	}

	if w.scriptDir != "" {
		os.RemoveAll(w.scriptDir)
		w.scriptDir = ""
	}

	log.Info("mediapipe worker stopped",
		"frames", w.framesSent.Load(),
		"meshes", w.meshesFound.Load(),
		"no_face", w.noFaceFrames.Load(),
	)
	return nil
}

// Close implements facemesh.Mesher.
func (w *Worker) Close() error { return w.Stop() }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
