// Package rdtnet supplies the datagram I/O substrate left external by
// package rdt: a [UDPConn] implementing rdt.Connection over a shared UDP
// socket, and a [Registry] that owns one goroutine dispatching inbound
// datagrams and timer ticks to the right per-peer [rdt.Session].
package rdtnet

import (
	"io"
	"net"
	"sync"

	"github.com/hollowline/rdt/internal"
)

// bufCap is the size of each direction's byte ring. It comfortably holds
// several in-flight windows' worth of application data.
const bufCap = 64 * 1024

// UDPConn implements rdt.Connection for one peer, multiplexed over a
// socket shared with every other UDPConn the owning [Registry] manages.
// Application code reads delivered bytes with Read and stages outbound
// bytes with Write; the rdt.Session underneath drains/fills the rings via
// ReadInput/WriteOutput/SendPacket.
type UDPConn struct {
	pc     net.PacketConn
	remote net.Addr

	mu          sync.Mutex
	in          internal.Ring // staged application input, drained by Session.OnReadable
	out         internal.Ring // delivered application output, drained by Read
	writeClosed bool
	destroyed   bool
}

func newUDPConn(pc net.PacketConn, remote net.Addr) *UDPConn {
	return &UDPConn{
		pc:     pc,
		remote: remote,
		in:     internal.Ring{Buf: make([]byte, bufCap)},
		out:    internal.Ring{Buf: make([]byte, bufCap)},
	}
}

// Write stages b to be chunked into DATA packets by the session's next
// OnReadable call. It never blocks; a full staging buffer returns an error.
func (c *UDPConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.in.Write(b)
}

// CloseWrite marks local input as ended: the next OnReadable call will
// observe EOF on ReadInput once the staging buffer drains, producing the
// session's own EOF packet.
func (c *UDPConn) CloseWrite() {
	c.mu.Lock()
	c.writeClosed = true
	c.mu.Unlock()
}

// Read returns bytes the peer has delivered in order. It never blocks: with
// nothing buffered it returns (0, nil) until the session has been destroyed
// (both directions finished), and [io.EOF] after that.
func (c *UDPConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.out.Read(b)
	if err == io.EOF && !c.destroyed {
		return 0, nil // peer not yet finished; caller should retry later.
	}
	return n, err
}

// ReadInput implements rdt.Connection.
func (c *UDPConn) ReadInput(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.in.Buffered() == 0 {
		if c.writeClosed {
			return 0, io.EOF
		}
		return 0, nil
	}
	return c.in.Read(buf)
}

// WriteOutput implements rdt.Connection.
func (c *UDPConn) WriteOutput(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(b)
}

// OutputSpace implements rdt.Connection.
func (c *UDPConn) OutputSpace() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Free()
}

// SendPacket implements rdt.Connection by writing one UDP datagram to the
// peer address this UDPConn was created for.
func (c *UDPConn) SendPacket(b []byte) (int, error) {
	return c.pc.WriteTo(b, c.remote)
}

// Destroy implements rdt.Connection. The shared socket itself is owned and
// closed by the [Registry], not by an individual UDPConn.
func (c *UDPConn) Destroy() error {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	return nil
}
