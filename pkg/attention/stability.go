package attention

import (
	"gonum.org/v1/gonum/stat"

	"github.com/attentix/attentix/pkg/facemesh"
)

// unstableVariance is reported while a window holds fewer than
// minStabilitySamples positions.
const unstableVariance = 1000

// positionRing keeps a fixed window of 2D positions split by axis so
// the variance path can hand slices to gonum directly.
type positionRing struct {
	xs, ys  *floatRing
	scratch []float64
}

func newPositionRing(capacity int) *positionRing {
	return &positionRing{
		xs:      newFloatRing(capacity),
		ys:      newFloatRing(capacity),
		scratch: make([]float64, capacity),
	}
}

func (r *positionRing) Push(p facemesh.Point) {
	r.xs.Push(p.X)
	r.ys.Push(p.Y)
}

func (r *positionRing) Len() int { return r.xs.Len() }

// Variance returns Var(x) + Var(y) over the window in population
// form, or unstableVariance while the window is too short to judge.
func (r *positionRing) Variance() float64 {
	n := r.xs.Len()
	if n < minStabilitySamples {
		return unstableVariance
	}
	buf := r.scratch[:n]
	r.xs.Fill(buf)
	vx := stat.PopVariance(buf, nil)
	r.ys.Fill(buf)
	vy := stat.PopVariance(buf, nil)
	return vx + vy
}

func (r *positionRing) Reset() {
	r.xs.Reset()
	r.ys.Reset()
}

// Stability estimates whether the head and eyes are holding one spot,
// the proxy this pipeline uses for screen-directed gaze. It keeps
// short windows of eye-center and nose positions and calls the gaze
// stable while the combined positional variance stays at or below the
// configured threshold.
type Stability struct {
	threshold float64
	eyes      *positionRing
	nose      *positionRing
}

// NewStability builds an estimator from an already validated config.
func NewStability(cfg Config) *Stability {
	return &Stability{
		threshold: cfg.StabilityThreshold,
		eyes:      newPositionRing(positionWindow),
		nose:      newPositionRing(positionWindow),
	}
}

// Observe appends one frame's positions and returns the combined
// variance plus the stability verdict. Underfilled windows read as
// maximally unstable.
func (s *Stability) Observe(eyeCenter, noseCenter facemesh.Point) (variance float64, stable bool) {
	s.eyes.Push(eyeCenter)
	s.nose.Push(noseCenter)

	variance = (s.eyes.Variance() + s.nose.Variance()) / 2
	return variance, variance <= s.threshold
}

// Reset clears both windows, as after face loss.
func (s *Stability) Reset() {
	s.eyes.Reset()
	s.nose.Reset()
}
