package link

// ring is a byte FIFO which drops the oldest byte when full, like the
// receive buffer of a UART nobody is draining.
type ring struct {
	buf        []byte
	head, tail int
}

func newRing(size int) ring {
	return ring{buf: make([]byte, size+1)}
}

func (r *ring) len() int {
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.buf) - r.tail + r.head
}

func (r *ring) put(b byte) (dropped bool) {
	next := (r.head + 1) % len(r.buf)
	if next == r.tail {
		r.tail = (r.tail + 1) % len(r.buf)
		dropped = true
	}
	r.buf[r.head] = b
	r.head = next
	return
}

func (r *ring) get() (byte, bool) {
	if r.head == r.tail {
		return 0, false
	}
	b := r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	return b, true
}

func (r *ring) reset() {
	r.head, r.tail = 0, 0
}
