package pingpong

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pingpong/internal/config"
)

// Peer is a running responder execution unit.
type Peer interface {
	Wait() error
}

// Spawner starts a responder that connects to addr.
type Spawner interface {
	Spawn(ctx context.Context, addr string) (Peer, error)
}

// Report summarizes a completed or failed run. Responder is only filled in
// when the responder ran in this process.
type Report struct {
	Addr      string
	Initiator Stats
	Responder *Stats
}

// Run listens on s.Host:s.Port, spawns the responder, accepts its single
// connection and plays the initiator on it. It returns once both sides are
// done; the error joins the initiator's and the responder's failures.
func Run(ctx context.Context, s config.Session, spawner Spawner, obs Observer) (Report, error) {
	ep, err := StartListener(s.Host, s.Port)
	if err != nil {
		return Report{}, err
	}
	defer ep.Close()

	report := Report{Addr: ep.Addr().String(), Initiator: Stats{Role: Initiator}}
	slog.Info("Ping-pong started", "addr", report.Addr, "rounds", s.Rounds)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peer, err := spawner.Spawn(ctx, report.Addr)
	if err != nil {
		return report, newOpError(OpSpawn, "", err)
	}

	// A responder that dies before connecting must not leave the accept
	// blocked forever.
	peerErr := make(chan error, 1)
	go func() {
		err := peer.Wait()
		if err != nil {
			cancel()
		}
		peerErr <- err
	}()

	conn, err := ep.AcceptOnce(ctx)
	if err != nil {
		cancel()
		return report, errors.Join(err, responderError(<-peerErr))
	}
	slog.Info("Connection accepted", "remote", conn.RemoteAddr().String())

	report.Initiator, err = RunInitiator(ctx, conn, s, obs)
	conn.Close()

	respErr := responderError(<-peerErr)
	if st, ok := peer.(interface{ Stats() Stats }); ok {
		rs := st.Stats()
		report.Responder = &rs
	}

	if err := errors.Join(err, respErr); err != nil {
		return report, err
	}

	slog.Info("Ping-pong finished", "rounds", report.Initiator.Rounds)
	return report, nil
}

// Respond connects to addr and plays the responder on that connection,
// closing it when done.
func Respond(ctx context.Context, addr string, s config.Session, obs Observer) (Stats, error) {
	conn, err := ConnectTo(ctx, addr, s)
	if err != nil {
		return Stats{Role: Responder}, err
	}
	defer conn.Close()

	slog.Info("Connected to initiator", "addr", addr)
	return RunResponder(ctx, conn, s, obs)
}

func responderError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("responder: %w", err)
}
