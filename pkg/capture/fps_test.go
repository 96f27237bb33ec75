package capture

import (
	"testing"
	"time"
)

func TestFPSCounterCountsWindow(t *testing.T) {
	clock := time.UnixMilli(0)
	f := NewFPSCounter()
	f.now = func() time.Time { return clock }

	for i := 0; i < 30; i++ {
		f.Tick()
		clock = clock.Add(33 * time.Millisecond)
	}
	// 30 ticks over 990ms, all inside the window.
	if got := f.Rate(); got != 30 {
		t.Errorf("Rate = %v, want 30", got)
	}
}

func TestFPSCounterDropsOldTicks(t *testing.T) {
	clock := time.UnixMilli(0)
	f := NewFPSCounter()
	f.now = func() time.Time { return clock }

	for i := 0; i < 10; i++ {
		f.Tick()
	}
	clock = clock.Add(1100 * time.Millisecond)
	if got := f.Rate(); got != 0 {
		t.Errorf("Rate after window expiry = %v, want 0", got)
	}
}

func TestFPSCounterPartialWindow(t *testing.T) {
	clock := time.UnixMilli(0)
	f := NewFPSCounter()
	f.now = func() time.Time { return clock }

	for i := 0; i < 10; i++ {
		f.Tick()
		clock = clock.Add(200 * time.Millisecond)
	}
	// Ticks land at 0..1800ms; at t=2000ms only those after 1000ms count.
	if got := f.Rate(); got != 4 {
		t.Errorf("Rate = %v, want 4", got)
	}
}
