// Package player plays video files with wall-clock pacing, an ffplay
// audio sidecar and attention-driven pause control. Frames come out as
// JPEG for the dashboard hub; audio/video sync is positional, not
// sample-accurate.
package player

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/attentix/attentix/internal/log"
	"github.com/attentix/attentix/pkg/attention"
)

// ErrNoVideo marks transport operations on a player with nothing
// loaded.
var ErrNoVideo = errors.New("player: no video loaded")

// Jumps longer than this many frames reposition the decoder instead of
// grabbing through the gap.
const seekJumpFrames = 120

// Config tunes the player.
type Config struct {
	// JPEGQuality for broadcast frames, default 85.
	JPEGQuality int
	// Audio runs the ffplay sidecar. Disable for headless runs.
	Audio bool
}

// DefaultConfig returns the player defaults with audio on.
func DefaultConfig() Config {
	return Config{JPEGQuality: 85, Audio: true}
}

// Info is a point-in-time snapshot of the player state.
type Info struct {
	Path     string        `json:"path"`
	Playing  bool          `json:"playing"`
	Finished bool          `json:"finished"`
	Position time.Duration `json:"position_ns"`
	Duration time.Duration `json:"duration_ns"`
	Fraction float64       `json:"fraction"`
	FPS      float64       `json:"fps"`
	Frames   int           `json:"frames"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

// Player decodes a video file at its native rate against the wall
// clock. All methods are safe for concurrent use.
type Player struct {
	mu  sync.Mutex
	cfg Config

	cap      *gocv.VideoCapture
	mat      gocv.Mat
	path     string
	fps      float64
	frames   int
	duration time.Duration
	width    int
	height   int

	timeline  *Timeline
	audio     audioProc
	lastFrame int
	lastJPEG  []byte
	finished  bool
}

// NewPlayer builds an empty player.
func NewPlayer(cfg Config) *Player {
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	return &Player{
		cfg:       cfg,
		mat:       gocv.NewMat(),
		timeline:  NewTimeline(),
		lastFrame: -1,
	}
}

// Load opens a video file paused at position zero, replacing any
// loaded one.
func (p *Player) Load(path string) error {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return fmt.Errorf("player: open %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.audio.stop()
	if p.cap != nil {
		p.cap.Close()
	}
	p.cap = cap
	p.path = path

	p.fps = cap.Get(gocv.VideoCaptureFPS)
	if p.fps <= 0 {
		p.fps = 30
	}
	p.frames = int(cap.Get(gocv.VideoCaptureFrameCount))
	p.width = int(cap.Get(gocv.VideoCaptureFrameWidth))
	p.height = int(cap.Get(gocv.VideoCaptureFrameHeight))
	if p.frames > 0 {
		p.duration = time.Duration(float64(p.frames) / p.fps * float64(time.Second))
	} else {
		p.duration = 0
	}

	p.timeline.Reset()
	p.lastFrame = -1
	p.lastJPEG = nil
	p.finished = false

	log.Info("video loaded",
		"path", path,
		"fps", p.fps,
		"frames", p.frames,
		"duration", p.duration.Round(time.Millisecond),
		"size", fmt.Sprintf("%dx%d", p.width, p.height),
	)
	return nil
}

// Play starts or resumes playback. A finished video replays from the
// start. Audio failures are logged, not fatal; the soundtrack is
// best-effort.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cap == nil {
		return ErrNoVideo
	}
	if p.finished {
		p.seekLocked(0)
	}
	if p.timeline.Started() {
		p.timeline.Resume()
	} else {
		p.timeline.Start()
	}
	p.startAudioLocked()
	return nil
}

// Pause freezes playback and kills the audio sidecar.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cap == nil {
		return ErrNoVideo
	}
	p.timeline.Pause()
	p.audio.stop()
	return nil
}

// Stop pauses and rewinds to the start.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cap == nil {
		return ErrNoVideo
	}
	p.timeline.Pause()
	p.audio.stop()
	p.seekLocked(0)
	return nil
}

// Seek jumps to a fraction of the duration in [0,1], keeping the
// playing/paused state.
func (p *Player) Seek(fraction float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cap == nil {
		return ErrNoVideo
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	p.seekLocked(time.Duration(fraction * float64(p.duration)))
	if p.timeline.Playing() {
		p.startAudioLocked()
	}
	return nil
}

// seekLocked repositions timeline and decoder. Callers hold mu.
func (p *Player) seekLocked(pos time.Duration) {
	if !p.timeline.Started() {
		p.timeline.Start()
		p.timeline.Pause()
	}
	p.timeline.Seek(pos)
	target := p.frameAt(pos)
	if target >= p.frames && p.frames > 0 {
		target = p.frames - 1
	}
	p.cap.Set(gocv.VideoCapturePosFrames, float64(target))
	p.lastFrame = target - 1
	p.finished = false
}

// Apply executes an attention-derived transport command. With nothing
// loaded there is nothing to control and the command is ignored.
func (p *Player) Apply(cmd attention.Command) error {
	switch cmd {
	case attention.CommandPlay:
		if err := p.Play(); err != nil && !errors.Is(err, ErrNoVideo) {
			return err
		}
	case attention.CommandPause:
		if err := p.Pause(); err != nil && !errors.Is(err, ErrNoVideo) {
			return err
		}
	}
	return nil
}

// Frame returns the JPEG frame for the current position, decoding
// forward when the wall clock has moved past the last decoded frame.
// It returns io.EOF once the video ends, until a seek or replay.
func (p *Player) Frame() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cap == nil {
		return nil, ErrNoVideo
	}
	if p.finished {
		return nil, io.EOF
	}

	target := p.frameAt(p.timeline.Position())
	if p.frames > 0 && target >= p.frames {
		p.finishLocked()
		return nil, io.EOF
	}

	if target > p.lastFrame {
		if skip := target - p.lastFrame - 1; skip > 0 {
			if skip > seekJumpFrames {
				p.cap.Set(gocv.VideoCapturePosFrames, float64(target))
			} else {
				p.cap.Grab(skip)
			}
		}
		if ok := p.cap.Read(&p.mat); !ok || p.mat.Empty() {
			p.finishLocked()
			return nil, io.EOF
		}
		p.lastFrame = target

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, p.mat, []int{gocv.IMWriteJpegQuality, p.cfg.JPEGQuality})
		if err != nil {
			return nil, fmt.Errorf("player: encode frame: %w", err)
		}
		p.lastJPEG = make([]byte, buf.Len())
		copy(p.lastJPEG, buf.GetBytes())
		buf.Close()
	}

	if p.lastJPEG == nil {
		return nil, fmt.Errorf("player: no frame decoded yet")
	}
	out := make([]byte, len(p.lastJPEG))
	copy(out, p.lastJPEG)
	return out, nil
}

// finishLocked marks end of stream. Callers hold mu.
func (p *Player) finishLocked() {
	p.finished = true
	p.timeline.Pause()
	p.audio.stop()
	log.Info("video finished", "path", p.path)
}

func (p *Player) startAudioLocked() {
	if !p.cfg.Audio {
		return
	}
	if err := p.audio.start(p.path, p.timeline.Position()); err != nil {
		log.Warn("audio sidecar unavailable", "error", err)
	}
}

// frameAt converts a position to a frame index at the native rate.
func (p *Player) frameAt(pos time.Duration) int {
	return int(pos.Seconds() * p.fps)
}

// Info returns a snapshot of the player state.
func (p *Player) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := Info{
		Path:     p.path,
		Playing:  p.timeline.Playing(),
		Finished: p.finished,
		Position: p.timeline.Position(),
		Duration: p.duration,
		FPS:      p.fps,
		Frames:   p.frames,
		Width:    p.width,
		Height:   p.height,
	}
	if p.duration > 0 {
		info.Fraction = float64(info.Position) / float64(p.duration)
		if info.Fraction > 1 {
			info.Fraction = 1
		}
	}
	return info
}

// Loaded reports whether a video is open.
func (p *Player) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cap != nil
}

// Close releases the decoder and stops audio.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.audio.stop()
	p.mat.Close()
	if p.cap != nil {
		err := p.cap.Close()
		p.cap = nil
		if err != nil {
			return fmt.Errorf("player: close decoder: %w", err)
		}
	}
	return nil
}
