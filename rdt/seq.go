package rdt

// seqno is a sequence number in the protocol's 32-bit sequence space.
// Comparisons wrap around modulo 2^32 using serial-number arithmetic
// (RFC 1982) so a session run long enough to wrap seqno near 2^32 still
// orders packets correctly even near the 2^32 boundary. The method set
// mirrors the lessThan/lessThanEq/inWindow shape used by TCP sequence
// and acknowledgment number comparisons (e.g. tcb.snd.UNA.LessThan(...),
// seg.SEQ.InWindow(...)).
type seqno uint32

// lessThan reports whether s comes strictly before o in sequence order.
func (s seqno) lessThan(o seqno) bool {
	return int32(s-o) < 0
}

// lessThanEq reports whether s comes at or before o in sequence order.
func (s seqno) lessThanEq(o seqno) bool {
	return s == o || s.lessThan(o)
}

// inWindow reports whether s lies in the half-open window [base, base+size).
func (s seqno) inWindow(base seqno, size uint32) bool {
	return uint32(s-base) < size
}

// add returns s advanced by n, wrapping modulo 2^32.
func (s seqno) add(n uint32) seqno {
	return s + seqno(n)
}
