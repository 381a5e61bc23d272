package rdt

import (
	"io"
	"time"
)

// fakeConn is an in-memory [Connection] for deterministic unit tests: input
// is drained from a queue of byte slices, sent packets are recorded, and
// output is appended to a buffer with a configurable capacity to exercise
// backpressure.
type fakeConn struct {
	input   [][]byte
	readEOF bool

	sent [][]byte

	output    []byte
	outputCap int

	destroyed  bool
	failSend   bool
	writeLimit int // if >0, WriteOutput accepts at most this many bytes per call
}

func (c *fakeConn) SendPacket(b []byte) (int, error) {
	if c.failSend {
		return 0, io.ErrClosedPipe
	}
	cp := append([]byte(nil), b...)
	c.sent = append(c.sent, cp)
	return len(b), nil
}

func (c *fakeConn) ReadInput(buf []byte) (int, error) {
	if len(c.input) == 0 {
		if c.readEOF {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(buf, c.input[0])
	if n < len(c.input[0]) {
		c.input[0] = c.input[0][n:]
	} else {
		c.input = c.input[1:]
	}
	return n, nil
}

func (c *fakeConn) WriteOutput(b []byte) (int, error) {
	n := len(b)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.output = append(c.output, b[:n]...)
	return n, nil
}

func (c *fakeConn) OutputSpace() int {
	if c.outputCap == 0 {
		return 1 << 30
	}
	space := c.outputCap - len(c.output)
	if space < 0 {
		return 0
	}
	return space
}

func (c *fakeConn) Destroy() error {
	c.destroyed = true
	return nil
}

// fakeClock is a [Clock] whose reading is set directly by tests.
type fakeClock struct{ t time.Duration }

func (c *fakeClock) Now() time.Duration { return c.t }
