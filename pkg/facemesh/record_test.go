package facemesh

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRecordRoundTrip(t *testing.T) {
	f := &Frame{
		Points:    fullMesh(),
		Timestamp: time.UnixMilli(1718000000123),
		Width:     640,
		Height:    480,
	}

	line, err := json.Marshal(NewRecord(f))
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	rec, err := ParseRecord(line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}

	if diff := cmp.Diff(f, rec.Frame()); diff != "" {
		t.Errorf("frame changed across wire (-want +got):\n%s", diff)
	}
}

func TestParseRecordRejectsGarbage(t *testing.T) {
	if _, err := ParseRecord([]byte("{not json")); err == nil {
		t.Error("ParseRecord accepted malformed input")
	}
}

func TestRecorderGapsAndCount(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)

	f := &Frame{Points: fullMesh(), Timestamp: time.UnixMilli(1000)}
	if err := rec.WriteFrame(f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := rec.WriteGap(time.UnixMilli(1033)); err != nil {
		t.Fatalf("WriteGap: %v", err)
	}
	if got := rec.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var frames []*Frame
	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		r, err := ParseRecord(sc.Bytes())
		if err != nil {
			t.Fatalf("ParseRecord: %v", err)
		}
		frames = append(frames, r.Frame())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("read %d records, want 2", len(frames))
	}
	if !frames[0].Valid() {
		t.Error("first record lost its mesh")
	}
	if frames[1].Valid() {
		t.Error("gap record came back with a mesh")
	}
	if got := frames[1].Timestamp.UnixMilli(); got != 1033 {
		t.Errorf("gap timestamp = %d, want 1033", got)
	}
}

func TestWriteFrameRejectsPartialMesh(t *testing.T) {
	rec := NewRecorder(&bytes.Buffer{})
	err := rec.WriteFrame(&Frame{Points: make([]Point, 10)})
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("WriteFrame(partial mesh) = %v, want ErrNoFace", err)
	}
}
