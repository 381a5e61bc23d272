package rdt

import "log/slog"

// Session owns all protocol state for one peer-pair. It is driven
// exclusively by its exported On* methods, invoked serially by an external,
// single-threaded dispatcher — none of them blocks, and none may be
// re-entered from within another's callback.
type Session struct {
	conn  Connection
	cfg   Config
	clock Clock
	log   logger

	send  *sender
	recv  *receiver
	stats Stats

	destroyed bool
}

// SessionOption configures optional Session behavior not required for
// correctness, such as metrics hooks.
type SessionOption func(*Session)

// WithStats attaches an observability sink; see [Stats].
func WithStats(stats Stats) SessionOption {
	return func(s *Session) {
		s.stats = stats
		s.send.stats = stats
		s.recv.stats = stats
	}
}

// NewSession constructs a Session bound to conn, ready to run as soon as
// the dispatcher starts delivering OnReadable/OnPacket/OnTick calls.
// log may be nil, producing a silent session. clock abstracts elapsed-time
// readings so tests can drive the timer deterministically;
// pass [NewSystemClock] in production.
func NewSession(conn Connection, cfg Config, clock Clock, log *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		conn:  conn,
		cfg:   cfg,
		clock: clock,
		log:   logger{log: log},
		send:  newSender(cfg.Window, nil),
		recv:  newReceiver(cfg.Window, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnReadable pulls as much local input as the send window allows and
// transmits it.
func (s *Session) OnReadable() {
	if s.destroyed {
		return
	}
	s.send.onReadable(s.conn, s.clock.Now(), uint32(s.recv.sendAckno), s.log)
	s.checkTermination()
}

// OnPacket validates and classifies b[:n], then routes it to the sender
// (ACK) or receiver (DATA/EOF), emitting a cumulative ACK when required.
// Malformed and out-of-window packets are dropped silently; duplicates are
// not re-buffered but are still acknowledged. None of these surfaces an
// error to the caller.
func (s *Session) OnPacket(b []byte, n int) {
	if s.destroyed {
		return
	}
	pkt, err := DecodeAndValidate(b, n)
	if err != nil {
		s.log.debug("rdt: dropping corrupt packet", "err", err, "n", n)
		if s.stats != nil {
			s.stats.PacketCorrupt()
		}
		return
	}
	switch pkt.Kind {
	case KindACK:
		if s.send.onAck(pkt.Ackno) {
			s.send.onReadable(s.conn, s.clock.Now(), uint32(s.recv.sendAckno), s.log)
		}
	default:
		if emit := s.recv.onPacket(&pkt); emit {
			s.recv.tryDeliver(s.conn)
			s.sendAck()
		}
	}
	s.checkTermination()
}

// OnTick retries delivery, resends every expired unacked packet, then
// checks whether the session is ready for teardown.
func (s *Session) OnTick() {
	if s.destroyed {
		return
	}
	s.recv.tryDeliver(s.conn)

	now := s.clock.Now()
	ackno := uint32(s.recv.sendAckno)
	for sn, entry := range s.send.buffer {
		if now-entry.lastTx <= s.cfg.Timeout {
			continue
		}
		pkt := entry.pkt
		pkt.Ackno = ackno
		s.log.debug("rdt: retransmitting", "seqno", uint32(sn))
		s.send.transmit(s.conn, &pkt, now, s.log)
		if s.stats != nil {
			s.stats.PacketRetransmitted()
		}
	}
	s.checkTermination()
}

// sendAck emits a bare cumulative ACK carrying the receiver's current
// send_ackno.
func (s *Session) sendAck() {
	pkt := Packet{Kind: KindACK, Ackno: uint32(s.recv.sendAckno)}
	buf := make([]byte, pkt.Len())
	n, err := pkt.Encode(buf)
	if err != nil {
		s.log.errlog("rdt: encode ack failed", "err", err)
		return
	}
	if _, err := s.conn.SendPacket(buf[:n]); err != nil {
		s.log.warn("rdt: send ack failed", "err", err)
	}
}

// checkTermination frees both buffers, tears down the substrate, and
// marks the session dead once both termination predicates hold, so no
// further packet is ever emitted from it.
func (s *Session) checkTermination() {
	if s.destroyed {
		return
	}
	if !s.send.allSentAcked() || !s.recv.allOutputWritten() {
		return
	}
	s.destroyed = true
	s.send.buffer = nil
	s.recv.buffer = nil
	if err := s.conn.Destroy(); err != nil {
		s.log.warn("rdt: destroy failed", "err", err)
	}
}

// Destroyed reports whether the termination FSM has fired, letting a
// session registry reap this Session from its live set.
func (s *Session) Destroyed() bool { return s.destroyed }
