package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/attentix/attentix/pkg/facemesh"
)

// writeFixture records two full frames stepMS apart followed by one
// no-face gap.
func writeFixture(t *testing.T, rec *facemesh.Recorder, stepMS int64) {
	t.Helper()

	points := make([]facemesh.Point, facemesh.MeshPoints)
	for i := range points {
		points[i] = facemesh.Point{X: float64(i), Y: float64(i) / 2}
	}
	base := time.UnixMilli(1_000)

	for i := int64(0); i < 2; i++ {
		f := &facemesh.Frame{
			Points:    points,
			Timestamp: base.Add(time.Duration(i*stepMS) * time.Millisecond),
			Width:     640,
			Height:    480,
		}
		if err := rec.WriteFrame(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.WriteGap(base.Add(time.Duration(2*stepMS) * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
}

func recording(t *testing.T, stepMS int64) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	writeFixture(t, facemesh.NewRecorder(&buf), stepMS)
	return &buf
}

func TestNextReplaysFramesAndGaps(t *testing.T) {
	r := New(recording(t, 40), Config{})
	ctx := context.Background()

	first, err := r.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Valid() {
		t.Error("first frame failed mesh validation")
	}
	if got := first.Timestamp.UnixMilli(); got != 1_000 {
		t.Errorf("first frame ts = %d, want 1000", got)
	}

	if _, err := r.Next(ctx); err != nil {
		t.Fatal(err)
	}

	gap, err := r.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if gap.Points != nil {
		t.Errorf("gap frame has %d points, want none", len(gap.Points))
	}
	if got := gap.Timestamp.UnixMilli(); got != 1_080 {
		t.Errorf("gap ts = %d, want 1080", got)
	}

	if _, err := r.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("err after last record = %v, want io.EOF", err)
	}
}

func TestNextPacesOnRecordedTimestamps(t *testing.T) {
	r := New(recording(t, 60), Config{Speed: 1})
	ctx := context.Background()

	if _, err := r.Next(ctx); err != nil {
		t.Fatal(err)
	}
	begin := time.Now()
	if _, err := r.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(begin); elapsed < 40*time.Millisecond {
		t.Errorf("second frame arrived after %v, want at least ~60ms of pacing", elapsed)
	}
}

func TestNextHonorsCancellation(t *testing.T) {
	r := New(recording(t, 40), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNextRejectsGarbage(t *testing.T) {
	r := New(strings.NewReader("not json\n"), Config{})
	if _, err := r.Next(context.Background()); err == nil {
		t.Fatal("Next returned nil error for a garbage line")
	}
}

func TestFramesReadsWholeRecording(t *testing.T) {
	rec, path, err := facemesh.CreateRecording(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeFixture(t, rec, 40)

	frames, err := Frames(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	if !frames[0].Valid() || frames[2].Points != nil {
		t.Error("frame shapes lost through the file round trip")
	}
}
