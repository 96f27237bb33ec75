package attention

import (
	"math"

	"github.com/attentix/attentix/pkg/facemesh"
)

// Canonical landmark index sets of the 468-point mesh, each eye
// ordered p1..p6 with p1/p4 the horizontal corners and (p2,p6),
// (p3,p5) the vertical pairs.
var (
	leftEyeIndices  = []int{33, 159, 158, 133, 153, 145}
	rightEyeIndices = []int{362, 386, 385, 263, 380, 374}
	noseIndices     = []int{1, 4, 6, 168, 197, 195, 5}
)

// EyeMetrics is the per-frame geometry reduced from a full mesh.
type EyeMetrics struct {
	LeftEAR    float64
	RightEAR   float64
	AvgEAR     float64
	EyeCenter  facemesh.Point
	NoseCenter facemesh.Point
}

// Metrics reduces a landmark frame to eye aspect ratios and the eye
// and nose reference centers. It is a pure function of the frame and
// returns facemesh.ErrNoFace when the mesh is absent or incomplete.
func Metrics(f *facemesh.Frame) (EyeMetrics, error) {
	if !f.Valid() {
		return EyeMetrics{}, facemesh.ErrNoFace
	}

	left := earAt(f, leftEyeIndices)
	right := earAt(f, rightEyeIndices)

	leftCenter := f.Centroid(leftEyeIndices)
	rightCenter := f.Centroid(rightEyeIndices)

	return EyeMetrics{
		LeftEAR:  left,
		RightEAR: right,
		AvgEAR:   (left + right) / 2,
		EyeCenter: facemesh.Point{
			X: (leftCenter.X + rightCenter.X) / 2,
			Y: (leftCenter.Y + rightCenter.Y) / 2,
		},
		NoseCenter: f.Centroid(noseIndices),
	}, nil
}

// EAR computes the eye aspect ratio of one eye from its six canonical
// points: (|p2-p6| + |p3-p5|) / (2 |p1-p4|). Low when the eye is
// closed, around 0.3 when open. An eye with no horizontal span reads
// as 0.
func EAR(p1, p2, p3, p4, p5, p6 facemesh.Point) float64 {
	a := dist(p2, p6)
	b := dist(p3, p5)
	c := dist(p1, p4)
	if c == 0 {
		return 0
	}
	return (a + b) / (2 * c)
}

func earAt(f *facemesh.Frame, idx []int) float64 {
	return EAR(
		f.Points[idx[0]], f.Points[idx[1]], f.Points[idx[2]],
		f.Points[idx[3]], f.Points[idx[4]], f.Points[idx[5]],
	)
}

func dist(a, b facemesh.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
