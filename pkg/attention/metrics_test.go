package attention

import (
	"errors"
	"math"
	"testing"

	"github.com/attentix/attentix/pkg/facemesh"
)

// meshFrame builds a full 468-point frame whose eye landmarks produce
// the requested average EAR and whose eye/nose centers track at, so
// detector tests can steer geometry with two numbers.
func meshFrame(ear float64, at facemesh.Point) *facemesh.Frame {
	pts := make([]facemesh.Point, facemesh.MeshPoints)
	h := 15 * ear

	eye := func(base facemesh.Point, idx []int) {
		pts[idx[0]] = facemesh.Point{X: base.X, Y: base.Y}
		pts[idx[1]] = facemesh.Point{X: base.X + 10, Y: base.Y - h}
		pts[idx[2]] = facemesh.Point{X: base.X + 20, Y: base.Y - h}
		pts[idx[3]] = facemesh.Point{X: base.X + 30, Y: base.Y}
		pts[idx[4]] = facemesh.Point{X: base.X + 20, Y: base.Y + h}
		pts[idx[5]] = facemesh.Point{X: base.X + 10, Y: base.Y + h}
	}
	eye(at, leftEyeIndices)
	eye(facemesh.Point{X: at.X + 60, Y: at.Y}, rightEyeIndices)

	for _, i := range noseIndices {
		pts[i] = facemesh.Point{X: at.X + 45, Y: at.Y + 40}
	}

	return &facemesh.Frame{Points: pts, Width: 640, Height: 480}
}

func TestEARFormula(t *testing.T) {
	p := func(x, y float64) facemesh.Point { return facemesh.Point{X: x, Y: y} }

	// Vertical gaps of 6 and 4, horizontal span 20: (6+4)/(2*20).
	got := EAR(p(0, 0), p(5, -3), p(15, -2), p(20, 0), p(15, 2), p(5, 3))
	want := 0.25
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("EAR = %v, want %v", got, want)
	}
}

func TestEARZeroSpan(t *testing.T) {
	p := facemesh.Point{X: 3, Y: 7}
	if got := EAR(p, p, p, p, p, p); got != 0 {
		t.Errorf("EAR with no horizontal span = %v, want 0", got)
	}
}

func TestMetricsNoFace(t *testing.T) {
	if _, err := Metrics(nil); !errors.Is(err, facemesh.ErrNoFace) {
		t.Errorf("Metrics(nil) error = %v, want ErrNoFace", err)
	}

	short := &facemesh.Frame{Points: make([]facemesh.Point, 99)}
	if _, err := Metrics(short); !errors.Is(err, facemesh.ErrNoFace) {
		t.Errorf("Metrics(short mesh) error = %v, want ErrNoFace", err)
	}
}

func TestMetricsGeometry(t *testing.T) {
	at := facemesh.Point{X: 100, Y: 200}
	m, err := Metrics(meshFrame(0.3, at))
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}

	if math.Abs(m.LeftEAR-0.3) > 1e-9 || math.Abs(m.RightEAR-0.3) > 1e-9 {
		t.Errorf("EARs = (%v, %v), want 0.3 each", m.LeftEAR, m.RightEAR)
	}
	if math.Abs(m.AvgEAR-0.3) > 1e-9 {
		t.Errorf("AvgEAR = %v, want 0.3", m.AvgEAR)
	}

	// Each synthetic eye centroid sits 15 px into its 30 px span.
	wantEye := facemesh.Point{X: at.X + 45, Y: at.Y}
	if math.Abs(m.EyeCenter.X-wantEye.X) > 1e-9 || math.Abs(m.EyeCenter.Y-wantEye.Y) > 1e-9 {
		t.Errorf("EyeCenter = %+v, want %+v", m.EyeCenter, wantEye)
	}
	wantNose := facemesh.Point{X: at.X + 45, Y: at.Y + 40}
	if math.Abs(m.NoseCenter.X-wantNose.X) > 1e-9 || math.Abs(m.NoseCenter.Y-wantNose.Y) > 1e-9 {
		t.Errorf("NoseCenter = %+v, want %+v", m.NoseCenter, wantNose)
	}
}

func TestMetricsIsPure(t *testing.T) {
	f := meshFrame(0.22, facemesh.Point{X: 50, Y: 60})
	a, _ := Metrics(f)
	b, _ := Metrics(f)
	if a != b {
		t.Errorf("repeated Metrics differ: %+v vs %+v", a, b)
	}
}
