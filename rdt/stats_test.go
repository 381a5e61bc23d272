package rdt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingStats struct {
	bytesSent, bytesReceived int
	retransmits              int
	corrupt, duplicate       int
	outOfWindow              int
}

func (c *countingStats) BytesSent(n int)      { c.bytesSent += n }
func (c *countingStats) BytesReceived(n int)  { c.bytesReceived += n }
func (c *countingStats) PacketRetransmitted() { c.retransmits++ }
func (c *countingStats) PacketCorrupt()       { c.corrupt++ }
func (c *countingStats) PacketDuplicate()     { c.duplicate++ }
func (c *countingStats) PacketOutOfWindow()   { c.outOfWindow++ }

func TestSessionReportsStats(t *testing.T) {
	conn := &fakeConn{input: [][]byte{[]byte("hi")}, readEOF: true}
	clock := &fakeClock{}
	stats := &countingStats{}
	s := NewSession(conn, testConfig(4), clock, nil, WithStats(stats))

	s.OnReadable()
	require.Equal(t, 2, stats.bytesSent)

	// A corrupt inbound datagram.
	s.OnPacket([]byte{0, 0, 0, 0, 0, 0}, 6)
	require.Equal(t, 1, stats.corrupt)

	// A duplicate DATA packet.
	data := mkData(1, 0, "yo")
	buf := make([]byte, data.Len())
	n, _ := data.Encode(buf)
	s.OnPacket(buf, n)
	s.OnPacket(buf, n)
	require.Equal(t, 1, stats.duplicate)
	require.Equal(t, 2, stats.bytesReceived)

	// An out-of-window DATA packet.
	far := mkData(100, 0, "z")
	buf2 := make([]byte, far.Len())
	n2, _ := far.Encode(buf2)
	s.OnPacket(buf2, n2)
	require.Equal(t, 1, stats.outOfWindow)

	clock.t = testConfig(4).Timeout + time.Millisecond
	s.OnTick()
	require.GreaterOrEqual(t, stats.retransmits, 1)
}
