package session

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/attentix/attentix/internal/log"
	"github.com/attentix/attentix/pkg/attention"
)

// resultBuffer sizes the recorder's inbox. At 30 fps it holds several
// seconds of results, enough to ride out a slow disk.
const resultBuffer = 256

// Recorder drains attention results into the store off the hot path.
// Observe never blocks; a single goroutine buckets results into
// one-second aggregates and writes them together with the state
// transitions.
type Recorder struct {
	store  *Store
	id     string
	source string

	startedAt time.Time
	ch        chan attention.Result
	done      chan struct{}

	dropped atomic.Uint64
	closed  atomic.Bool

	// Owned by the run goroutine until done closes.
	frames int
	bucket *bucket
}

type bucket struct {
	second       time.Time
	earSum       float64
	earMin       float64
	earMax       float64
	varianceSum  float64
	attentive    int
	face         int
	total        int
}

// NewRecorder opens a new session in store and starts the write
// goroutine. source names where the frames come from (camera device,
// signalling URL, recording path).
func NewRecorder(store *Store, source string) (*Recorder, error) {
	r := &Recorder{
		store:     store,
		id:        uuid.NewString(),
		source:    source,
		startedAt: time.Now(),
		ch:        make(chan attention.Result, resultBuffer),
		done:      make(chan struct{}),
	}
	if err := store.CreateSession(r.id, source, r.startedAt); err != nil {
		return nil, err
	}
	go r.run()
	return r, nil
}

// ID returns the session id.
func (r *Recorder) ID() string { return r.id }

// StartedAt returns when the session opened.
func (r *Recorder) StartedAt() time.Time { return r.startedAt }

// Dropped returns how many results were discarded because the write
// goroutine fell behind.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Observe queues one result. It never blocks.
func (r *Recorder) Observe(res attention.Result) {
	select {
	case r.ch <- res:
	default:
		r.dropped.Add(1)
	}
}

// Close flushes the pending aggregate, closes the session row and
// stops the write goroutine. Safe to call twice.
func (r *Recorder) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	close(r.ch)
	<-r.done
	if err := r.store.EndSession(r.id, time.Now(), r.frames); err != nil {
		return fmt.Errorf("session: close recorder: %w", err)
	}
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for res := range r.ch {
		r.ingest(res)
	}
	r.flush()
}

func (r *Recorder) ingest(res attention.Result) {
	ts := res.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	r.frames++

	sec := ts.Truncate(time.Second)
	if r.bucket != nil && !sec.Equal(r.bucket.second) {
		r.flush()
	}
	if r.bucket == nil {
		r.bucket = &bucket{
			second: sec,
			earMin: math.Inf(1),
			earMax: math.Inf(-1),
		}
	}

	b := r.bucket
	b.total++
	if res.FaceDetected {
		b.face++
		b.earSum += res.AvgEAR
		b.earMin = math.Min(b.earMin, res.AvgEAR)
		b.earMax = math.Max(b.earMax, res.AvgEAR)
		b.varianceSum += res.Variance
	}
	if res.State == attention.Attentive {
		b.attentive++
	}

	if res.Changed {
		if err := r.store.AddTransition(r.id, ts, res.State.String()); err != nil {
			log.Warn("session transition write failed", "session", r.id, "error", err)
		}
	}
}

func (r *Recorder) flush() {
	b := r.bucket
	r.bucket = nil
	if b == nil || b.total == 0 {
		return
	}

	smp := Sample{
		At:              b.second,
		AttentiveFrames: b.attentive,
		FaceFrames:      b.face,
		TotalFrames:     b.total,
	}
	if b.face > 0 {
		smp.EARMean = b.earSum / float64(b.face)
		smp.EARMin = b.earMin
		smp.EARMax = b.earMax
		smp.VarianceMean = b.varianceSum / float64(b.face)
	}

	if err := r.store.AddSample(r.id, smp); err != nil {
		log.Warn("session sample write failed", "session", r.id, "error", err)
	}
}
