package pingpong

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"pingpong/internal/config"
	"pingpong/internal/event"
)

type Role string

const (
	Initiator Role = "initiator"
	Responder Role = "responder"
)

type State string

const (
	Sleep State = "SLEEP"
	Ready State = "READY"
)

// RecvBufSize bounds a single receive. In lenient mode any read of 1 to
// RecvBufSize bytes counts as the peer's sync message.
const RecvBufSize = 16

var (
	PingMessage = []byte("PING\x00")
	PongMessage = []byte("PONG\x00")
)

func (r Role) message() []byte {
	if r == Initiator {
		return PingMessage
	}
	return PongMessage
}

func (r Role) peer() Role {
	if r == Initiator {
		return Responder
	}
	return Initiator
}

// Observer receives every exchange event of a role.
type Observer interface {
	Observe(ev event.Exchange)
}

type ObserverFunc func(ev event.Exchange)

func (f ObserverFunc) Observe(ev event.Exchange) { f(ev) }

type nopObserver struct{}

func (nopObserver) Observe(event.Exchange) {}

// Stats counts what one role did on its connection.
type Stats struct {
	Role     Role `json:"role"`
	Sent     int  `json:"sent"`
	Received int  `json:"received"`
	Rounds   int  `json:"rounds"`
}

// RunInitiator runs the initiator loop on conn: work, send PING, wait for
// the reply, for s.Rounds rounds. It does not close conn.
func RunInitiator(ctx context.Context, conn net.Conn, s config.Session, obs Observer) (Stats, error) {
	p := newPeer(Initiator, conn, s, obs)
	err := p.runInitiator(ctx)
	return p.stats, err
}

// RunResponder runs the responder loop on conn: wait for PING, work, send
// PONG, for s.Rounds rounds. It does not close conn.
func RunResponder(ctx context.Context, conn net.Conn, s config.Session, obs Observer) (Stats, error) {
	p := newPeer(Responder, conn, s, obs)
	err := p.runResponder(ctx)
	return p.stats, err
}

type peer struct {
	role    Role
	conn    net.Conn
	session config.Session
	obs     Observer
	pid     int

	// payload is what this role sends in a round, expect what it accepts in
	// strict mode. Both default to the fixed PING/PONG messages.
	payload func(round int) []byte
	expect  func(round int) []byte

	ctx   context.Context
	state State
	round int
	stats Stats
	buf   [RecvBufSize]byte
}

func newPeer(role Role, conn net.Conn, s config.Session, obs Observer) *peer {
	if obs == nil {
		obs = nopObserver{}
	}
	own, other := role.message(), role.peer().message()
	return &peer{
		role:    role,
		conn:    conn,
		session: s,
		obs:     obs,
		pid:     os.Getpid(),
		payload: func(int) []byte { return own },
		expect:  func(int) []byte { return other },
		stats:   Stats{Role: role},
	}
}

func (p *peer) runInitiator(ctx context.Context) error {
	stop := p.watch(ctx)
	defer stop()

	p.round = 1
	p.enter(Ready)

	for ; p.round <= p.session.Rounds; p.round++ {
		slog.Info("Round started", "role", p.role, "round", p.round)

		if err := p.work(); err != nil {
			return err
		}
		if err := p.send(); err != nil {
			return err
		}
		p.enter(Sleep)
		if err := p.receive(); err != nil {
			return err
		}
		p.enter(Ready)
		p.completeRound()
	}
	return nil
}

func (p *peer) runResponder(ctx context.Context) error {
	stop := p.watch(ctx)
	defer stop()

	p.round = 1
	p.enter(Sleep)

	for ; p.round <= p.session.Rounds; p.round++ {
		if err := p.receive(); err != nil {
			return err
		}
		p.enter(Ready)
		slog.Info("Round started", "role", p.role, "round", p.round)

		if err := p.work(); err != nil {
			return err
		}
		if err := p.send(); err != nil {
			return err
		}
		p.enter(Sleep)
		p.completeRound()
	}
	return nil
}

// watch expires the connection deadline when ctx is cancelled so a blocked
// read or write returns.
func (p *peer) watch(ctx context.Context) func() bool {
	p.ctx = ctx
	return context.AfterFunc(ctx, func() {
		_ = p.conn.SetDeadline(time.Now())
	})
}

func (p *peer) work() error {
	if p.session.WorkDelay <= 0 {
		return nil
	}
	t := time.NewTimer(p.session.WorkDelay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("%s round %d interrupted: %w", p.role, p.round, p.ctx.Err())
	}
}

func (p *peer) send() error {
	msg := p.payload(p.round)
	slog.Info("Sending sync message", "role", p.role, "round", p.round)

	if _, err := p.conn.Write(msg); err != nil {
		return p.fail(OpSend, err)
	}

	p.stats.Sent++
	p.emit(event.KindSent, msg)
	return nil
}

func (p *peer) receive() error {
	var (
		n   int
		err error
	)

	if p.session.Strict {
		want := p.expect(p.round)
		if len(want) > RecvBufSize {
			return p.fail(OpReceive, fmt.Errorf("expected message of %d bytes exceeds the receive buffer", len(want)))
		}
		n, err = io.ReadFull(p.conn, p.buf[:len(want)])
		if err == nil && !bytes.Equal(p.buf[:n], want) {
			err = fmt.Errorf("%w: got %q, want %q", ErrUnexpectedPayload, p.buf[:n], want)
		}
	} else {
		n, err = p.conn.Read(p.buf[:])
		if err == nil && n == 0 {
			err = io.ErrUnexpectedEOF
		}
	}
	if err != nil {
		return p.fail(OpReceive, err)
	}

	p.stats.Received++
	p.emit(event.KindReceived, bytes.Clone(p.buf[:n]))
	return nil
}

func (p *peer) fail(op Op, err error) error {
	if p.ctx != nil && p.ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", p.ctx.Err(), err)
	}
	return newOpError(op, p.conn.RemoteAddr().String(), fmt.Errorf("%s round %d: %w", p.role, p.round, err))
}

func (p *peer) enter(s State) {
	p.state = s
	slog.Info("State transition", "role", p.role, "round", p.round, "state", s)
	p.obs.Observe(event.Exchange{
		Timestamp: time.Now().UnixNano(),
		PID:       p.pid,
		Role:      string(p.role),
		Round:     p.round,
		Kind:      event.KindState,
		State:     string(s),
	})
}

func (p *peer) completeRound() {
	p.stats.Rounds++
	p.obs.Observe(event.Exchange{
		Timestamp: time.Now().UnixNano(),
		PID:       p.pid,
		Role:      string(p.role),
		Round:     p.round,
		Kind:      event.KindRound,
		State:     string(p.state),
	})
}

func (p *peer) emit(kind event.Kind, payload []byte) {
	p.obs.Observe(event.Exchange{
		Timestamp: time.Now().UnixNano(),
		PID:       p.pid,
		Role:      string(p.role),
		Round:     p.round,
		Kind:      kind,
		Bytes:     len(payload),
		Payload:   payload,
	})
}
