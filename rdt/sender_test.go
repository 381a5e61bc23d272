package rdt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSenderOnReadableChunksAndTransmits(t *testing.T) {
	s := newSender(4, nil)
	conn := &fakeConn{input: [][]byte{[]byte("hi")}, readEOF: true}
	var log logger

	s.onReadable(conn, 0, 1, log)
	require.Len(t, conn.sent, 2) // DATA("hi") then EOF
	require.Equal(t, seqno(3), s.nextSeqno)
	require.True(t, s.readEOF)
	require.Len(t, s.buffer, 2)

	first, err := DecodeAndValidate(conn.sent[0], len(conn.sent[0]))
	require.NoError(t, err)
	require.Equal(t, KindData, first.Kind)
	require.Equal(t, uint32(1), first.Seqno)
	require.Equal(t, []byte("hi"), first.Payload)

	second, err := DecodeAndValidate(conn.sent[1], len(conn.sent[1]))
	require.NoError(t, err)
	require.Equal(t, KindEOF, second.Kind)
	require.Equal(t, uint32(2), second.Seqno)
}

func TestSenderStopsAtWindowLimit(t *testing.T) {
	s := newSender(1, nil)
	conn := &fakeConn{input: [][]byte{[]byte("a"), []byte("b")}}
	var log logger
	s.onReadable(conn, 0, 1, log)
	require.Len(t, conn.sent, 1)
	require.False(t, s.hasRoom())
}

func TestSenderOnAckEvictsAndAdvancesBase(t *testing.T) {
	s := newSender(4, nil)
	conn := &fakeConn{input: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	var log logger
	s.onReadable(conn, 0, 1, log)
	require.Len(t, s.buffer, 3)

	advanced := s.onAck(2)
	require.True(t, advanced)
	require.Equal(t, seqno(2), s.windowBase)
	require.Len(t, s.buffer, 2)
}

func TestSenderOnAckIdempotentForOldAck(t *testing.T) {
	s := newSender(4, nil)
	conn := &fakeConn{input: [][]byte{[]byte("a"), []byte("b")}}
	var log logger
	s.onReadable(conn, 0, 1, log)
	s.onAck(2)
	advanced := s.onAck(1)
	require.False(t, advanced)
	require.Equal(t, seqno(2), s.windowBase)
}

func TestSenderAllSentAckedRequiresEmptyBufferAndEOF(t *testing.T) {
	s := newSender(4, nil)
	require.False(t, s.allSentAcked()) // readEOF not yet observed
	conn := &fakeConn{readEOF: true}
	var log logger
	s.onReadable(conn, 0, 1, log)
	require.True(t, s.readEOF)
	require.False(t, s.allSentAcked()) // EOF packet still unacked
	s.onAck(2)
	require.True(t, s.allSentAcked())
}

func TestSenderRetransmitRefreshesAckno(t *testing.T) {
	s := newSender(4, nil)
	conn := &fakeConn{input: [][]byte{[]byte("x")}}
	var log logger
	s.onReadable(conn, 0, 1, log)

	entry := s.buffer[seqno(1)]
	pkt := entry.pkt
	pkt.Ackno = 9
	s.transmit(conn, &pkt, 5*time.Second, log)

	require.Len(t, conn.sent, 2)
	got, err := DecodeAndValidate(conn.sent[1], len(conn.sent[1]))
	require.NoError(t, err)
	require.Equal(t, uint32(9), got.Ackno)
	require.Equal(t, 5*time.Second, s.buffer[seqno(1)].lastTx)
}
