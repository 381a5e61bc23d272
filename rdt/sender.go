package rdt

import "time"

// outPacket is one entry of the send buffer: an owned, unacked packet plus
// the elapsed-time timestamp of its last transmission (a duration since
// session start, not a wall-clock value).
type outPacket struct {
	pkt     Packet
	lastTx  time.Duration
	firstTx time.Duration
}

// sender is the sliding-window sending half of a [Session]. By
// construction, every seqno in [windowBase, nextSeqno) has exactly one
// entry in buffer, and nextSeqno never advances past windowBase+window.
type sender struct {
	windowBase   seqno                // send_window_base, smallest unacked seqno
	nextSeqno    seqno                // next_send_seqno
	window       int                  // window_size
	buffer       map[seqno]*outPacket // send_buffer, keyed by seqno
	readEOF      bool                 // local input reached EOF
	eofSent      bool                 // an EOF packet has been generated
	eofSentSeqno seqno
	stats        Stats
}

func newSender(window int, stats Stats) *sender {
	return &sender{
		windowBase: 1,
		nextSeqno:  1,
		window:     window,
		buffer:     make(map[seqno]*outPacket),
		stats:      stats,
	}
}

// inFlight returns the number of unacked outstanding packets. Because ACKs
// are purely cumulative, this always equals nextSeqno-windowBase: every
// seqno in the window has exactly one buffer entry.
func (s *sender) inFlight() int { return len(s.buffer) }

func (s *sender) hasRoom() bool { return s.inFlight() < s.window }

// onReadable: while the window has room and local input hasn't hit EOF,
// pull up to 500 bytes at a time from conn and frame them
// as DATA packets, or a single EOF packet once input ends. ackno is the
// current cumulative ack (send_ackno) to stamp on outgoing DATA/EOF
// packets.
func (s *sender) onReadable(conn Connection, now time.Duration, ackno uint32, log logger) {
	if s.readEOF {
		return
	}
	buf := make([]byte, maxPayloadLen)
	for s.hasRoom() && !s.readEOF {
		n, err := conn.ReadInput(buf)
		switch {
		case err != nil:
			// local EOF: generate and transmit the EOF packet.
			s.readEOF = true
			pkt := Packet{Kind: KindEOF, Ackno: ackno, Seqno: uint32(s.nextSeqno)}
			s.transmit(conn, &pkt, now, log)
			s.eofSent = true
			s.eofSentSeqno = s.nextSeqno
			s.nextSeqno++
			return
		case n == 0:
			return // no data available right now; stop without state change.
		default:
			payload := append([]byte(nil), buf[:n]...)
			pkt := Packet{Kind: KindData, Ackno: ackno, Seqno: uint32(s.nextSeqno), Payload: payload}
			s.transmit(conn, &pkt, now, log)
			if s.stats != nil {
				s.stats.BytesSent(n)
			}
			s.nextSeqno++
		}
	}
}

// transmit encodes pkt, sends it, and records/refreshes its send-buffer
// entry. Used both for first transmission and retransmission: both
// recompute the checksum from scratch since ackno may have changed.
func (s *sender) transmit(conn Connection, pkt *Packet, now time.Duration, log logger) {
	buf := make([]byte, pkt.Len())
	n, err := pkt.Encode(buf)
	if err != nil {
		// ErrPayloadTooLarge would be a caller bug; never
		// reachable here since payload is capped to maxPayloadLen above.
		log.errlog("rdt: encode failed", "err", err)
		return
	}
	sn, err := conn.SendPacket(buf[:n])
	if err != nil || sn <= 0 {
		log.warn("rdt: send_packet failed, will retry on timer", "err", err, "seqno", pkt.Seqno)
	}
	entry := s.buffer[seqno(pkt.Seqno)]
	if entry == nil {
		entry = &outPacket{firstTx: now}
		s.buffer[seqno(pkt.Seqno)] = entry
	}
	entry.pkt = *pkt
	entry.lastTx = now
}

// onAck evicts every buffered entry with seqno < ackno and advances
// windowBase. Returns true if any eviction occurred, signaling the caller
// to retry onReadable since the window may have opened.
func (s *sender) onAck(ackno uint32) (advanced bool) {
	target := seqno(ackno)
	if target.lessThanEq(s.windowBase) {
		// on_ack(k) followed by on_ack(j<=k) is equivalent to on_ack(k).
		return false
	}
	for sn := range s.buffer {
		if sn.lessThan(target) {
			delete(s.buffer, sn)
			advanced = true
		}
	}
	s.windowBase = target
	return advanced
}

// allSentAcked implements the all_sent_acked termination predicate:
// the send buffer is empty and local input has reached EOF, meaning our
// own EOF packet was generated and has since been acknowledged.
func (s *sender) allSentAcked() bool {
	return len(s.buffer) == 0 && s.readEOF
}
