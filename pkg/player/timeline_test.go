package player

import (
	"testing"
	"time"
)

func testTimeline() (*Timeline, *time.Time) {
	clock := time.UnixMilli(0)
	t := NewTimeline()
	t.now = func() time.Time { return clock }
	return t, &clock
}

func TestTimelinePauseFreezesPosition(t *testing.T) {
	tl, clock := testTimeline()

	tl.Start()
	*clock = clock.Add(time.Second)
	if got := tl.Position(); got != time.Second {
		t.Fatalf("position after 1s = %v, want 1s", got)
	}

	tl.Pause()
	*clock = clock.Add(2 * time.Second)
	if got := tl.Position(); got != time.Second {
		t.Errorf("position while paused = %v, want 1s", got)
	}

	tl.Resume()
	*clock = clock.Add(500 * time.Millisecond)
	if got := tl.Position(); got != 1500*time.Millisecond {
		t.Errorf("position after resume = %v, want 1.5s", got)
	}
}

func TestTimelineSeekPreservesState(t *testing.T) {
	tl, clock := testTimeline()

	tl.Start()
	*clock = clock.Add(3 * time.Second)
	tl.Seek(10 * time.Second)
	if got := tl.Position(); got != 10*time.Second {
		t.Errorf("position after playing seek = %v, want 10s", got)
	}
	if !tl.Playing() {
		t.Error("playing seek paused the timeline")
	}
	*clock = clock.Add(time.Second)
	if got := tl.Position(); got != 11*time.Second {
		t.Errorf("position 1s after seek = %v, want 11s", got)
	}

	tl.Pause()
	tl.Seek(2 * time.Second)
	*clock = clock.Add(5 * time.Second)
	if got := tl.Position(); got != 2*time.Second {
		t.Errorf("position after paused seek = %v, want 2s", got)
	}
	if tl.Playing() {
		t.Error("paused seek resumed the timeline")
	}
}

func TestTimelineSeekClampsNegative(t *testing.T) {
	tl, _ := testTimeline()
	tl.Start()
	tl.Seek(-5 * time.Second)
	if got := tl.Position(); got != 0 {
		t.Errorf("position after negative seek = %v, want 0", got)
	}
}

func TestTimelinePositionMonotonicWithoutSeeks(t *testing.T) {
	tl, clock := testTimeline()
	tl.Start()

	prev := tl.Position()
	steps := []struct {
		advance time.Duration
		action  func()
	}{
		{100 * time.Millisecond, tl.Pause},
		{300 * time.Millisecond, func() {}},
		{0, tl.Resume},
		{250 * time.Millisecond, func() {}},
		{0, tl.Pause},
		{0, tl.Pause},
		{700 * time.Millisecond, tl.Resume},
		{50 * time.Millisecond, func() {}},
		{0, tl.Resume},
		{400 * time.Millisecond, func() {}},
	}
	for i, s := range steps {
		*clock = clock.Add(s.advance)
		s.action()
		pos := tl.Position()
		if pos < prev {
			t.Fatalf("step %d: position went backwards: %v -> %v", i, prev, pos)
		}
		prev = pos
	}
}

func TestTimelineUnstartedIsZero(t *testing.T) {
	tl, clock := testTimeline()
	*clock = clock.Add(time.Hour)
	if got := tl.Position(); got != 0 {
		t.Errorf("unstarted position = %v, want 0", got)
	}
	if tl.Started() || tl.Playing() {
		t.Error("unstarted timeline reports started or playing")
	}
	tl.Pause()
	tl.Resume()
	if got := tl.Position(); got != 0 {
		t.Errorf("position after no-op pause/resume = %v, want 0", got)
	}
}

func TestTimelineReset(t *testing.T) {
	tl, clock := testTimeline()
	tl.Start()
	*clock = clock.Add(time.Second)
	tl.Reset()
	if tl.Started() || tl.Playing() || tl.Position() != 0 {
		t.Errorf("after Reset: started=%v playing=%v pos=%v", tl.Started(), tl.Playing(), tl.Position())
	}
}
