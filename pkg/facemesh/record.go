package facemesh

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is the JSONL wire form of a single observation. A record
// without points marks a frame where the producer saw no face, so a
// replayed stream keeps the original timing through detection gaps.
type Record struct {
	TS     int64        `json:"ts_ms"` // Unix milliseconds
	Width  int          `json:"w,omitempty"`
	Height int          `json:"h,omitempty"`
	Points [][2]float64 `json:"points,omitempty"`
}

// NewRecord converts a frame to its wire form.
func NewRecord(f *Frame) Record {
	rec := Record{
		TS:     f.Timestamp.UnixMilli(),
		Width:  f.Width,
		Height: f.Height,
	}
	if len(f.Points) > 0 {
		rec.Points = make([][2]float64, len(f.Points))
		for i, p := range f.Points {
			rec.Points[i] = [2]float64{p.X, p.Y}
		}
	}
	return rec
}

// Frame converts a record back to a frame. No-face records yield a
// frame with nil Points.
func (r Record) Frame() *Frame {
	f := &Frame{
		Timestamp: time.UnixMilli(r.TS),
		Width:     r.Width,
		Height:    r.Height,
	}
	if len(r.Points) > 0 {
		f.Points = make([]Point, len(r.Points))
		for i, p := range r.Points {
			f.Points[i] = Point{X: p[0], Y: p[1]}
		}
	}
	return f
}

// ParseRecord parses a single JSONL line.
func ParseRecord(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, fmt.Errorf("facemesh: parse record: %w", err)
	}
	return rec, nil
}

// Recorder appends observations to a JSONL stream, one record per
// camera frame including no-face gaps. Safe for one writer goroutine
// plus concurrent Count/Close callers.
type Recorder struct {
	mu sync.Mutex
	w  *bufio.Writer
	c  io.Closer
	n  int
}

// NewRecorder wraps an open stream. The caller keeps ownership of w
// unless it also implements io.Closer, in which case Close closes it.
func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	return r
}

// CreateRecording creates mesh-<uuid>.jsonl in dir and returns a
// recorder writing to it plus the file path.
func CreateRecording(dir string) (*Recorder, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("facemesh: create recording dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("mesh-%s.jsonl", uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("facemesh: create recording: %w", err)
	}
	return NewRecorder(f), path, nil
}

// WriteFrame appends one observation.
func (r *Recorder) WriteFrame(f *Frame) error {
	if !f.Valid() {
		return ErrNoFace
	}
	return r.writeRecord(NewRecord(f))
}

// WriteGap appends a no-face marker at the given time.
func (r *Recorder) WriteGap(ts time.Time) error {
	return r.writeRecord(Record{TS: ts.UnixMilli()})
}

func (r *Recorder) writeRecord(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("facemesh: encode record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(line); err != nil {
		return fmt.Errorf("facemesh: write record: %w", err)
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("facemesh: write record: %w", err)
	}
	r.n++
	return nil
}

// Count returns the number of records written so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Close flushes buffered records and closes the underlying file when
// the recorder owns one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("facemesh: flush recording: %w", err)
	}
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
