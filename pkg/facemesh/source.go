package facemesh

import "context"

// Mesher turns a single JPEG image into a landmark frame. A nil frame
// with a nil error means the image contained no detectable face.
type Mesher interface {
	Mesh(jpeg []byte) (*Frame, error)

	// Close releases the backend and any worker processes.
	Close() error
}

// Source is a stream of landmark observations, live or replayed.
type Source interface {
	// Next blocks until the next observation is available. Frames with
	// nil Points mark moments where no face was found. Next returns
	// io.EOF once the stream is exhausted.
	Next(ctx context.Context) (*Frame, error)

	// Close releases the stream.
	Close() error
}
