package rdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mkData(seq uint32, ack uint32, payload string) Packet {
	return Packet{Kind: KindData, Seqno: seq, Ackno: ack, Payload: []byte(payload)}
}

func TestReceiverInOrderDelivery(t *testing.T) {
	r := newReceiver(4, nil)
	conn := &fakeConn{}
	p := mkData(1, 0, "hi")
	emit := r.onPacket(&p)
	require.True(t, emit)
	r.tryDeliver(conn)
	require.Equal(t, "hi", string(conn.output))
	require.Equal(t, seqno(2), r.nextExpected)
	require.Equal(t, seqno(2), r.sendAckno)
}

func TestReceiverReordering(t *testing.T) {
	r := newReceiver(4, nil)
	conn := &fakeConn{}

	p3 := mkData(3, 0, "p3")
	r.onPacket(&p3)
	r.tryDeliver(conn)
	require.Empty(t, conn.output)
	require.Equal(t, seqno(1), r.sendAckno) // no contiguous prefix yet

	p1 := mkData(1, 0, "p1")
	r.onPacket(&p1)
	r.tryDeliver(conn)
	require.Equal(t, "p1", string(conn.output))
	require.Equal(t, seqno(2), r.sendAckno) // p3 still not contiguous

	p2 := mkData(2, 0, "p2")
	r.onPacket(&p2)
	r.tryDeliver(conn)
	require.Equal(t, "p1p2p3", string(conn.output))
	require.Equal(t, seqno(4), r.nextExpected)
	require.Equal(t, seqno(4), r.sendAckno)
}

func TestReceiverDuplicateNotRebuffered(t *testing.T) {
	r := newReceiver(4, nil)
	conn := &fakeConn{}
	p := mkData(1, 0, "hi")
	r.onPacket(&p)
	r.tryDeliver(conn)

	dup := mkData(1, 0, "hi")
	emit := r.onPacket(&dup)
	require.True(t, emit) // still ACKed, per duplicate recovery rule
	require.Equal(t, "hi", string(conn.output))
	require.Empty(t, r.buffer)
}

func TestReceiverDropsOutsideWindow(t *testing.T) {
	r := newReceiver(2, nil)
	p := mkData(10, 0, "late")
	emit := r.onPacket(&p)
	require.False(t, emit)
	require.Empty(t, r.buffer)
}

func TestReceiverDefersOnBackpressure(t *testing.T) {
	r := newReceiver(4, nil)
	conn := &fakeConn{outputCap: 1}
	p := mkData(1, 0, "hi")
	r.onPacket(&p)
	r.tryDeliver(conn)
	require.Empty(t, conn.output)
	require.Contains(t, r.buffer, seqno(1))

	conn.outputCap = 10
	r.tryDeliver(conn)
	require.Equal(t, "hi", string(conn.output))
}

func TestReceiverEOFSetsRecvEOFOnDelivery(t *testing.T) {
	r := newReceiver(4, nil)
	conn := &fakeConn{}
	eof := Packet{Kind: KindEOF, Seqno: 1}
	r.onPacket(&eof)
	require.False(t, r.recvEOF)
	r.tryDeliver(conn)
	require.True(t, r.recvEOF)
	require.True(t, r.allOutputWritten())
}
