// Package replay turns recorded landmark streams back into live
// sources, pacing frames on their recorded timestamps.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/attentix/attentix/pkg/facemesh"
)

// Recordings hold one JSON document per line; a full mesh record stays
// well under this.
const maxLineBytes = 1 << 20

// Config tunes playback.
type Config struct {
	// Speed scales pacing: 1 replays at the recorded rate, 2 at twice
	// the rate. Zero or negative disables pacing and Next returns
	// frames as fast as the caller drains them.
	Speed float64
}

// Reader replays a recording as a facemesh.Source. No-face gap records
// come back as frames with nil points, so downstream timeout logic
// sees the same absence runs the recorder saw.
type Reader struct {
	sc    *bufio.Scanner
	c     io.Closer
	speed float64

	now   func() time.Time
	start time.Time
	base  int64
}

// New wraps an open recording stream. The caller keeps ownership of
// src.
func New(src io.Reader, cfg Config) *Reader {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc, speed: cfg.Speed, now: time.Now}
}

// Open opens a recording file for replay.
func Open(path string, cfg Config) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	r := New(f, cfg)
	r.c = f
	return r, nil
}

// Next returns the next recorded frame, sleeping first so the stream
// advances at the recorded pace. It returns io.EOF once the recording
// is exhausted and ctx.Err() when canceled mid-wait.
func (r *Reader) Next(ctx context.Context) (*facemesh.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for r.sc.Scan() {
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := facemesh.ParseRecord(line)
		if err != nil {
			return nil, err
		}
		if err := r.pace(ctx, rec.TS); err != nil {
			return nil, err
		}
		return rec.Frame(), nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("replay: read: %w", err)
	}
	return nil, io.EOF
}

// pace sleeps until the wall clock catches up with the record's offset
// into the recording, scaled by speed. The first record anchors the
// clock and is delivered immediately.
func (r *Reader) pace(ctx context.Context, ts int64) error {
	if r.speed <= 0 {
		return nil
	}
	if r.start.IsZero() {
		r.start = r.now()
		r.base = ts
		return nil
	}
	offset := time.Duration(float64(ts-r.base)/r.speed) * time.Millisecond
	wait := r.start.Add(offset).Sub(r.now())
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close closes the underlying file when the reader owns one.
func (r *Reader) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

// Frames reads an entire recording without pacing.
func Frames(path string) ([]*facemesh.Frame, error) {
	r, err := Open(path, Config{})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var frames []*facemesh.Frame
	for {
		f, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
}
