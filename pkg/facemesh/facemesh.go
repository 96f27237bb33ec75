// Package facemesh defines the face landmark contract shared by every
// landmark producer and consumer in the pipeline.
package facemesh

import (
	"errors"
	"time"
)

// MeshPoints is the landmark count of a full MediaPipe-style face mesh.
// Producers must emit exactly this many points per detected face.
const MeshPoints = 468

// ErrNoFace reports that a frame carried no usable face landmarks.
var ErrNoFace = errors.New("facemesh: no face in frame")

// Point is a single landmark position in source-image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame is one observation from a landmark source: the full mesh for a
// detected face plus the capture timestamp and source image size.
// Points is nil when the producer saw no face that frame; consumers
// treat any frame failing Valid as a no-face observation.
type Frame struct {
	Points    []Point
	Timestamp time.Time
	Width     int
	Height    int
}

// Valid reports whether the frame carries a complete mesh.
func (f *Frame) Valid() bool {
	return f != nil && len(f.Points) == MeshPoints
}

// Centroid returns the mean position of the landmarks at the given
// indices. Indices must be within MeshPoints; callers validate index
// sets once at configuration time, not per frame.
func (f *Frame) Centroid(indices []int) Point {
	if len(indices) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, i := range indices {
		sx += f.Points[i].X
		sy += f.Points[i].Y
	}
	n := float64(len(indices))
	return Point{X: sx / n, Y: sy / n}
}
