package rdtnet

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/hollowline/rdt/internal/lrucache"
	"github.com/hollowline/rdt/rdt"
)

// maxDatagram is large enough for the largest DATA packet on the wire.
const maxDatagram = 512

// entry is one live peer-pair: its UDPConn substrate, its protocol Session,
// and the correlation ID it was assigned on creation.
type entry struct {
	id   uuid.UUID
	conn *UDPConn
	sess *rdt.Session
}

// Registry is the session glue/registry: a single dispatcher goroutine
// creates and destroys sessions and fans out timer ticks, fed by one helper
// goroutine that only reads the shared UDP socket, satisfying the
// single-threaded dispatcher model the core assumes (no rdt.Session method
// is ever called concurrently).
type Registry struct {
	pc  net.PacketConn
	cfg rdt.Config
	log *slog.Logger

	stats rdt.Stats

	sessions map[string]*entry // keyed by remote address string

	// unknown records, per remote address, when a server-side session was
	// last accepted for it, bounding memory regardless of how many distinct
	// peers are heard from. It does not suppress any log line or session.
	unknown lrucache.Cache[string, time.Time]

	packets chan packetEvent
	opens   chan openRequest

	onAccept func(id uuid.UUID, conn *UDPConn)
	onClose  func(id uuid.UUID)
}

type packetEvent struct {
	addr net.Addr
	data []byte
}

type openRequest struct {
	addr  net.Addr
	reply chan *entry
}

// NewRegistry wraps pc, dispatching every inbound datagram and timer tick
// from a single goroutine started by [Registry.Run]. stats may be nil.
func NewRegistry(pc net.PacketConn, cfg rdt.Config, log *slog.Logger, stats rdt.Stats) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		pc:       pc,
		cfg:      cfg,
		log:      log,
		stats:    stats,
		sessions: make(map[string]*entry),
		unknown:  lrucache.New[string, time.Time](256),
		packets:  make(chan packetEvent, 64),
		opens:    make(chan openRequest),
	}
}

// OnAccept registers a callback invoked on the dispatcher goroutine every
// time a peer address without a live session sends a datagram (valid or
// not) and a new server-side session is created for it.
func (r *Registry) OnAccept(fn func(id uuid.UUID, conn *UDPConn)) {
	r.onAccept = fn
}

// OnClose registers a callback invoked on the dispatcher goroutine every
// time a session's termination FSM fires and it is removed from the
// registry.
func (r *Registry) OnClose(fn func(id uuid.UUID)) {
	r.onClose = fn
}

// Open creates (or returns the existing) client-side session for remote,
// blocking until the dispatcher goroutine has registered it. Run must
// already be active.
func (r *Registry) Open(ctx context.Context, remote net.Addr) (*UDPConn, error) {
	req := openRequest{addr: remote, reply: make(chan *entry, 1)}
	select {
	case r.opens <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case e := <-req.reply:
		return e.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run is the dispatcher loop: it starts a helper goroutine that reads the
// socket, then itself handles received datagrams, timer ticks and open
// requests, serializing every mutation of the session set and every call
// into a Session. It returns when ctx is
// canceled or the socket read loop ends.
func (r *Registry) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go r.readLoop(ctx, errc)

	ticker := time.NewTicker(r.cfg.Timer)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case pkt := <-r.packets:
			r.dispatch(pkt)
		case req := <-r.opens:
			r.handleOpen(req)
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Registry) readLoop(ctx context.Context, errc chan<- error) {
	buf := make([]byte, maxDatagram)
	for {
		if err := r.pc.SetReadDeadline(time.Now().Add(r.cfg.Timer)); err != nil {
			errc <- err
			return
		}
		n, addr, err := r.pc.ReadFrom(buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // no datagram within this tick period; loop.
			}
			errc <- err
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case r.packets <- packetEvent{addr: addr, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) dispatch(pkt packetEvent) {
	key := pkt.addr.String()
	e, ok := r.sessions[key]
	if !ok {
		e = r.accept(pkt.addr)
	}
	e.sess.OnPacket(pkt.data, len(pkt.data))
	if e.sess.Destroyed() {
		delete(r.sessions, key)
		if r.onClose != nil {
			r.onClose(e.id)
		}
	}
}

// accept creates a server-side session for an address without a live
// session on its first datagram, valid or not. If a session was already
// accepted for the same address within the last [time.Minute], a debug line
// notes the repeat; every accepted session is also logged by open.
func (r *Registry) accept(addr net.Addr) *entry {
	key := addr.String()
	if last, ok := r.unknown.Get(key); ok && time.Since(last) < time.Minute {
		r.log.Debug("rdtnet: repeated packet from unaccepted peer", "addr", key)
	}
	r.unknown.Push(key, time.Now())

	e := r.open(addr)
	if r.onAccept != nil {
		r.onAccept(e.id, e.conn)
	}
	return e
}

func (r *Registry) handleOpen(req openRequest) {
	e, ok := r.sessions[req.addr.String()]
	if !ok {
		e = r.open(req.addr)
	}
	req.reply <- e
}

func (r *Registry) open(addr net.Addr) *entry {
	conn := newUDPConn(r.pc, addr)
	var opts []rdt.SessionOption
	if r.stats != nil {
		opts = append(opts, rdt.WithStats(r.stats))
	}
	sess := rdt.NewSession(conn, r.cfg, rdt.NewSystemClock(), r.log, opts...)
	e := &entry{id: uuid.New(), conn: conn, sess: sess}
	r.sessions[addr.String()] = e
	r.log.Info("rdtnet: session created", "addr", addr.String(), "session_id", e.id)
	return e
}

func (r *Registry) tick() {
	for key, e := range r.sessions {
		e.sess.OnReadable()
		e.sess.OnTick()
		if e.sess.Destroyed() {
			delete(r.sessions, key)
			r.log.Info("rdtnet: session destroyed", "addr", key, "session_id", e.id)
			if r.onClose != nil {
				r.onClose(e.id)
			}
		}
	}
}

// Sessions returns the number of currently live sessions. Intended for
// metrics gauges and diagnostics; safe to call only from the dispatcher
// goroutine (e.g. from an [Registry.OnAccept] callback).
func (r *Registry) Sessions() int { return len(r.sessions) }
