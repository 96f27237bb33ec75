package session

import (
	"testing"
	"time"

	"github.com/attentix/attentix/pkg/attention"
)

func result(at time.Time, state attention.State, changed bool, ear float64, face bool) attention.Result {
	res := attention.Result{
		Timestamp:    at,
		FaceDetected: face,
		State:        state,
		Changed:      changed,
	}
	if face {
		res.LeftEAR = ear
		res.RightEAR = ear
		res.AvgEAR = ear
		res.Variance = 12
		res.Stable = true
	}
	return res
}

func TestRecorderAggregatesPerSecond(t *testing.T) {
	store := openTestStore(t)

	rec, err := NewRecorder(store, "camera:0")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	t0 := testStart // aligned to a whole second
	rec.Observe(result(t0, attention.NotAttentive, false, 0.30, true))
	rec.Observe(result(t0.Add(33*time.Millisecond), attention.NotAttentive, false, 0.28, true))
	rec.Observe(result(t0.Add(66*time.Millisecond), attention.Attentive, true, 0.32, true))
	rec.Observe(result(t0.Add(1*time.Second), attention.Attentive, false, 0.31, true))
	rec.Observe(result(t0.Add(1033*time.Millisecond), attention.Attentive, false, 0.29, true))

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	samples, err := store.Samples(rec.ID())
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("Samples() returned %d rows, want 2", len(samples))
	}

	first := samples[0]
	if first.At.UnixMilli() != t0.UnixMilli() {
		t.Errorf("first sample At = %v, want %v", first.At, t0)
	}
	if first.TotalFrames != 3 || first.FaceFrames != 3 || first.AttentiveFrames != 1 {
		t.Errorf("first sample counts = %d/%d/%d, want 3/3/1",
			first.TotalFrames, first.FaceFrames, first.AttentiveFrames)
	}
	if !near(first.EARMean, 0.30) {
		t.Errorf("first EARMean = %v, want 0.30", first.EARMean)
	}
	if !near(first.EARMin, 0.28) || !near(first.EARMax, 0.32) {
		t.Errorf("first EAR min/max = %v/%v, want 0.28/0.32", first.EARMin, first.EARMax)
	}

	second := samples[1]
	if second.TotalFrames != 2 || second.AttentiveFrames != 2 {
		t.Errorf("second sample counts = %d/%d, want 2/2", second.TotalFrames, second.AttentiveFrames)
	}
	if !near(second.EARMean, 0.30) {
		t.Errorf("second EARMean = %v, want 0.30", second.EARMean)
	}

	transitions, err := store.Transitions(rec.ID())
	if err != nil {
		t.Fatalf("Transitions() error = %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("Transitions() returned %d rows, want 1", len(transitions))
	}
	if transitions[0].State != "attentive" {
		t.Errorf("transition state = %q, want attentive", transitions[0].State)
	}
	if transitions[0].At.UnixMilli() != t0.Add(66*time.Millisecond).UnixMilli() {
		t.Errorf("transition at = %v, want %v", transitions[0].At, t0.Add(66*time.Millisecond))
	}

	info, err := store.Session(rec.ID())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if info.Frames != 5 {
		t.Errorf("Frames = %d, want 5", info.Frames)
	}
	if info.EndedAt.IsZero() {
		t.Error("EndedAt should be set after Close")
	}
	if info.Source != "camera:0" {
		t.Errorf("Source = %q, want camera:0", info.Source)
	}
}

func TestRecorderNoFaceSeconds(t *testing.T) {
	store := openTestStore(t)
	rec, err := NewRecorder(store, "test")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	t0 := testStart
	rec.Observe(result(t0, attention.NotAttentive, false, 0, false))
	rec.Observe(result(t0.Add(40*time.Millisecond), attention.NotAttentive, false, 0, false))

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	samples, err := store.Samples(rec.ID())
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Samples() returned %d rows, want 1", len(samples))
	}
	smp := samples[0]
	if smp.TotalFrames != 2 || smp.FaceFrames != 0 {
		t.Errorf("counts = %d/%d, want 2/0", smp.TotalFrames, smp.FaceFrames)
	}
	if smp.EARMean != 0 || smp.EARMin != 0 || smp.EARMax != 0 {
		t.Errorf("faceless sample has nonzero EAR: %+v", smp)
	}
}

func TestRecorderStampsZeroTimestamps(t *testing.T) {
	store := openTestStore(t)
	rec, err := NewRecorder(store, "test")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	rec.Observe(attention.Result{Variance: 1000})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	samples, err := store.Samples(rec.ID())
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Samples() returned %d rows, want 1", len(samples))
	}
	if age := time.Since(samples[0].At); age < 0 || age > time.Minute {
		t.Errorf("zero timestamp should be stamped near now, got %v ago", age)
	}
}

func TestRecorderObserveNeverBlocks(t *testing.T) {
	// A recorder whose goroutine is not draining: Observe must drop
	// instead of blocking.
	rec := &Recorder{ch: make(chan attention.Result)}

	done := make(chan struct{})
	go func() {
		rec.Observe(attention.Result{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a full channel")
	}
	if rec.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", rec.Dropped())
	}
}

func TestRecorderCloseTwice(t *testing.T) {
	store := openTestStore(t)
	rec, err := NewRecorder(store, "test")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
