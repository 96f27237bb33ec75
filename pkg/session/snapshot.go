package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// SnapshotConfig tunes the attention-break still writer.
type SnapshotConfig struct {
	Dir     string  // output directory, required
	MaxDim  int     // longest output side, default 480
	Quality float32 // webp quality, default 80
}

// Snapshotter writes downsized WebP stills of the camera frame when
// attention breaks. It is optional; the app only constructs one when a
// snapshot directory is configured.
type Snapshotter struct {
	dir     string
	maxDim  int
	quality float32
}

// NewSnapshotter creates the output directory and returns a writer.
func NewSnapshotter(cfg SnapshotConfig) (*Snapshotter, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("session: snapshot dir required")
	}
	if cfg.MaxDim <= 0 {
		cfg.MaxDim = 480
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 80
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: snapshot dir: %w", err)
	}
	return &Snapshotter{dir: cfg.Dir, maxDim: cfg.MaxDim, quality: cfg.Quality}, nil
}

// Save decodes a JPEG camera frame, shrinks its longest side to the
// configured maximum and writes <session>-<ms>.webp. It returns the
// written path.
func (s *Snapshotter) Save(sessionID string, at time.Time, jpegFrame []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(jpegFrame))
	if err != nil {
		return "", fmt.Errorf("session: snapshot decode: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > s.maxDim || h > s.maxDim {
		if w >= h {
			img = imaging.Resize(img, s.maxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, s.maxDim, imaging.Lanczos)
		}
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%d.webp", sessionID, at.UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("session: snapshot create: %w", err)
	}
	defer f.Close()

	if err := webp.Encode(f, img, &webp.Options{Quality: s.quality}); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("session: snapshot encode: %w", err)
	}
	return path, nil
}
