package player

import "time"

// Timeline tracks playback position against the wall clock. Pausing
// freezes the position; resuming accounts the paused span so position
// picks up exactly where it stopped. Not safe for concurrent use; the
// Player serializes access.
type Timeline struct {
	now func() time.Time

	start       time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	playing     bool
}

// NewTimeline returns a stopped timeline at position zero.
func NewTimeline() *Timeline {
	return &Timeline{now: time.Now}
}

// Start begins playback from position zero.
func (t *Timeline) Start() {
	t.start = t.now()
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
	t.playing = true
}

// Pause freezes the position. No-op while paused or unstarted.
func (t *Timeline) Pause() {
	if !t.playing || t.start.IsZero() {
		return
	}
	t.pausedAt = t.now()
	t.playing = false
}

// Resume continues from the frozen position. No-op while playing or
// unstarted.
func (t *Timeline) Resume() {
	if t.playing || t.start.IsZero() {
		return
	}
	t.pausedTotal += t.now().Sub(t.pausedAt)
	t.pausedAt = time.Time{}
	t.playing = true
}

// Seek moves the position, preserving the playing/paused state.
func (t *Timeline) Seek(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	now := t.now()
	t.start = now.Add(-pos)
	t.pausedTotal = 0
	if !t.playing {
		t.pausedAt = now
	}
}

// Position returns the current playback position. It grows with the
// wall clock while playing and stands still while paused.
func (t *Timeline) Position() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	if t.playing {
		return t.now().Sub(t.start) - t.pausedTotal
	}
	return t.pausedAt.Sub(t.start) - t.pausedTotal
}

// Playing reports whether the timeline is advancing.
func (t *Timeline) Playing() bool { return t.playing }

// Started reports whether playback has ever begun since the last
// Reset.
func (t *Timeline) Started() bool { return !t.start.IsZero() }

// Reset returns to the unstarted state at position zero.
func (t *Timeline) Reset() {
	t.start = time.Time{}
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
	t.playing = false
}
