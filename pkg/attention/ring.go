package attention

// floatRing is a fixed-capacity FIFO of float64 samples. Pushing into
// a full ring evicts the oldest sample; length never exceeds capacity.
type floatRing struct {
	buf  []float64
	head int // next write slot
	n    int
}

func newFloatRing(capacity int) *floatRing {
	return &floatRing{buf: make([]float64, capacity)}
}

func (r *floatRing) Push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *floatRing) Len() int { return r.n }

func (r *floatRing) Cap() int { return len(r.buf) }

// Values copies the samples oldest first.
func (r *floatRing) Values() []float64 {
	out := make([]float64, r.n)
	start := r.head - r.n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Fill copies the samples oldest first into dst, which must be at
// least Len long.
func (r *floatRing) Fill(dst []float64) {
	start := r.head - r.n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.n; i++ {
		dst[i] = r.buf[(start+i)%len(r.buf)]
	}
}

func (r *floatRing) Reset() {
	r.head = 0
	r.n = 0
}
