package rdt

// inPacket is one entry of the receive buffer: a DATA/EOF packet that
// arrived but could not yet be delivered, either because it arrived out of
// order or because output was backpressured.
type inPacket struct {
	seqno   seqno
	payload []byte // nil/empty for EOF
	isEOF   bool
}

// receiver is the reordering, deduplicating receiving half of a [Session].
// buffer never holds a seqno < nextExpected and seqnos within it are
// unique.
type receiver struct {
	nextExpected seqno               // recv_next_expected
	window       int                 // window_size, shared with sender
	buffer       map[seqno]*inPacket // recv_buffer, keyed by seqno
	sendAckno    seqno               // send_ackno, recomputed on every insert
	recvEOF      bool                // peer's EOF has been delivered
	stats        Stats
}

func newReceiver(window int, stats Stats) *receiver {
	return &receiver{
		nextExpected: 1,
		window:       window,
		buffer:       make(map[seqno]*inPacket),
		sendAckno:    1,
		stats:        stats,
	}
}

// onPacket classifies an inbound DATA/EOF packet (ACKs are routed to
// sender.onAck by the caller before reaching here). Returns true if a
// cumulative ACK should be sent in response.
func (r *receiver) onPacket(pkt *Packet) (emitAck bool) {
	sn := seqno(pkt.Seqno)
	switch {
	case sn.lessThan(r.nextExpected):
		// Duplicate: already delivered. Re-send ACK, do not re-buffer.
		if r.stats != nil {
			r.stats.PacketDuplicate()
		}
		return true
	case !sn.inWindow(r.nextExpected, uint32(r.window)):
		// Outside the receive window: drop silently, no ACK.
		if r.stats != nil {
			r.stats.PacketOutOfWindow()
		}
		return false
	}
	if _, exists := r.buffer[sn]; !exists {
		entry := &inPacket{seqno: sn, isEOF: pkt.Kind == KindEOF}
		if pkt.Kind == KindData {
			entry.payload = pkt.Payload
		}
		r.buffer[sn] = entry
	} else if r.stats != nil {
		// Duplicate of a packet still waiting in the buffer.
		r.stats.PacketDuplicate()
	}
	r.recomputeSendAckno()
	return true
}

// recomputeSendAckno walks the buffer in ascending seqno
// order starting at nextExpected, advancing a running counter while the
// next buffered seqno is contiguous. send_ackno becomes that counter.
func (r *receiver) recomputeSendAckno() {
	counter := r.nextExpected
	for {
		if _, ok := r.buffer[counter]; !ok {
			break
		}
		counter++
	}
	r.sendAckno = counter
}

// tryDeliver repeatedly takes the smallest buffered seqno;
// if it equals nextExpected and its payload fits in the output space,
// write it and advance. Stops on mismatch, full output, or empty buffer.
// Partial writes are never attempted.
func (r *receiver) tryDeliver(conn Connection) {
	for {
		entry, ok := r.buffer[r.nextExpected]
		if !ok {
			return
		}
		if len(entry.payload) > 0 {
			space := conn.OutputSpace()
			if space < len(entry.payload) {
				return // defer the whole packet; retried next tick.
			}
			if _, err := conn.WriteOutput(entry.payload); err != nil {
				return // substrate not ready; retried next tick.
			}
			if r.stats != nil {
				r.stats.BytesReceived(len(entry.payload))
			}
		}
		delete(r.buffer, r.nextExpected)
		r.nextExpected++
		if entry.isEOF {
			r.recvEOF = true
		}
	}
}

// allOutputWritten reports whether the receive buffer is empty and the
// peer's EOF has been delivered.
func (r *receiver) allOutputWritten() bool {
	return len(r.buffer) == 0 && r.recvEOF
}
