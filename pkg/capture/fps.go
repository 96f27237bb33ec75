package capture

import (
	"sync"
	"time"
)

// FPSCounter measures frame throughput over a sliding one second
// window. Safe for concurrent use.
type FPSCounter struct {
	mu    sync.Mutex
	now   func() time.Time
	ticks []time.Time
}

// NewFPSCounter returns an empty counter.
func NewFPSCounter() *FPSCounter {
	return &FPSCounter{now: time.Now}
}

// Tick records one frame.
func (f *FPSCounter) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, f.now())
	f.prune(f.now())
}

// Rate returns the number of frames seen in the last second.
func (f *FPSCounter) Rate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prune(f.now())
	return float64(len(f.ticks))
}

// prune drops ticks older than the window. Callers hold mu.
func (f *FPSCounter) prune(now time.Time) {
	cutoff := now.Add(-time.Second)
	i := 0
	for i < len(f.ticks) && !f.ticks[i].After(cutoff) {
		i++
	}
	if i > 0 {
		f.ticks = append(f.ticks[:0], f.ticks[i:]...)
	}
}
