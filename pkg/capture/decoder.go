package capture

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os/exec"
	"sync"
	"time"
)

// Decoder turns accumulated H264 NAL units into JPEG stills through a
// short-lived ffmpeg pipe. Decoding is rate limited so the subprocess
// cost stays bounded; between decodes callers get the latest still.
type Decoder struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastDecode  time.Time

	latestMu sync.RWMutex
	latest   []byte
}

// NewDecoder builds a decoder that runs ffmpeg at most once per
// interval. Zero means a 100ms floor.
func NewDecoder(interval time.Duration) *Decoder {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Decoder{minInterval: interval}
}

// Decode feeds a run of NAL units through ffmpeg and returns the
// resulting JPEG. Undersized input and rate-limited calls return the
// latest previously decoded still, which is nil before the first
// success.
func (d *Decoder) Decode(nal []byte) ([]byte, error) {
	if len(nal) < 100 {
		return d.Latest(), nil
	}

	d.mu.Lock()
	if time.Since(d.lastDecode) < d.minInterval {
		d.mu.Unlock()
		return d.Latest(), nil
	}
	d.lastDecode = time.Now()
	d.mu.Unlock()

	still, err := decodeOnce(nal)
	if err != nil {
		return d.Latest(), err
	}
	if !usableJPEG(still) {
		return d.Latest(), nil
	}

	d.latestMu.Lock()
	d.latest = still
	d.latestMu.Unlock()
	return still, nil
}

// decodeOnce runs a single-shot ffmpeg over pipes, one frame out.
func decodeOnce(nal []byte) ([]byte, error) {
	cmd := exec.Command("ffmpeg",
		"-f", "h264",
		"-i", "pipe:0",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture: start ffmpeg: %w", err)
	}

	go func() {
		stdin.Write(nal)
		stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			// Partial NAL runs legitimately fail to produce a frame.
			return nil, nil
		}
	case <-time.After(200 * time.Millisecond):
		cmd.Process.Kill()
		<-done
		return nil, nil
	}

	return stdout.Bytes(), nil
}

// usableJPEG reports whether data parses as a JPEG of plausible frame
// dimensions. Truncated decodes come out tiny or unparsable.
func usableJPEG(data []byte) bool {
	if len(data) < 1000 {
		return false
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return cfg.Width >= 100 && cfg.Height >= 100
}

// Latest returns a copy of the most recently decoded still, nil when
// nothing decoded yet.
func (d *Decoder) Latest() []byte {
	d.latestMu.RLock()
	defer d.latestMu.RUnlock()
	if d.latest == nil {
		return nil
	}
	out := make([]byte, len(d.latest))
	copy(out, d.latest)
	return out
}
