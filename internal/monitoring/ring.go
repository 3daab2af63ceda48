package monitoring

// ring is a fixed-capacity circular buffer of float64 samples. Once full,
// every append overwrites the oldest sample.
type ring struct {
	buf   []float64
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) append(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) len() int {
	return r.count
}

// values returns the retained samples in insertion order, oldest first.
func (r *ring) values() []float64 {
	out := make([]float64, r.count)
	if r.count < len(r.buf) {
		copy(out, r.buf[:r.count])
		return out
	}
	n := copy(out, r.buf[r.head:])
	copy(out[n:], r.buf[:r.head])
	return out
}
