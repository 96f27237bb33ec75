package session

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary condenses one session for the sessions API and report
// headers.
type Summary struct {
	ID        string
	Source    string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	Frames    int

	// Frame ratios over all recorded samples.
	AttentiveRatio float64
	FaceRatio      float64

	Transitions      int
	AttentiveSpans   int
	LongestAttentive time.Duration

	// EAR statistics over samples that saw a face.
	EARMean      float64
	EARStdDev    float64
	VarianceMean float64
}

// Summarize computes the summary for one session.
func (s *Store) Summarize(id string) (*Summary, error) {
	info, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	samples, err := s.Samples(id)
	if err != nil {
		return nil, err
	}
	transitions, err := s.Transitions(id)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		ID:        info.ID,
		Source:    info.Source,
		StartedAt: info.StartedAt,
		EndedAt:   info.EndedAt,
		Frames:    info.Frames,
	}

	// An open session ends, for reporting purposes, at its last sample.
	end := info.EndedAt
	if end.IsZero() {
		end = info.StartedAt
		if n := len(samples); n > 0 {
			end = samples[n-1].At.Add(time.Second)
		}
	}
	sum.Duration = end.Sub(info.StartedAt)

	var attentive, face, total int
	var earMeans, varianceMeans []float64
	for _, smp := range samples {
		attentive += smp.AttentiveFrames
		face += smp.FaceFrames
		total += smp.TotalFrames
		if smp.FaceFrames > 0 {
			earMeans = append(earMeans, smp.EARMean)
			varianceMeans = append(varianceMeans, smp.VarianceMean)
		}
	}
	if total > 0 {
		sum.AttentiveRatio = float64(attentive) / float64(total)
		sum.FaceRatio = float64(face) / float64(total)
	}
	if len(earMeans) > 0 {
		sum.EARMean = stat.Mean(earMeans, nil)
		sum.VarianceMean = stat.Mean(varianceMeans, nil)
	}
	if len(earMeans) > 1 {
		sum.EARStdDev = stat.StdDev(earMeans, nil)
	}

	sum.Transitions = len(transitions)
	sum.AttentiveSpans, sum.LongestAttentive = attentiveSpans(transitions, end)
	return sum, nil
}

// attentiveSpans walks the transition log and measures the attentive
// stretches, closing a still-open stretch at end.
func attentiveSpans(transitions []Transition, end time.Time) (count int, longest time.Duration) {
	var (
		open  bool
		since time.Time
	)
	for _, tr := range transitions {
		switch {
		case tr.State == "attentive" && !open:
			open = true
			since = tr.At
			count++
		case tr.State != "attentive" && open:
			open = false
			if d := tr.At.Sub(since); d > longest {
				longest = d
			}
		}
	}
	if open {
		if d := end.Sub(since); d > longest {
			longest = d
		}
	}
	return count, longest
}
