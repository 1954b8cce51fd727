package pingpong

import (
	"context"

	"pingpong/internal/config"
	"pingpong/internal/procmgr"
)

// GoroutineSpawner runs the responder on a goroutine of this process.
type GoroutineSpawner struct {
	Session  config.Session
	Observer Observer
}

type goroutinePeer struct {
	done  chan struct{}
	stats Stats
	err   error
}

func (p *goroutinePeer) Wait() error {
	<-p.done
	return p.err
}

// Stats is only meaningful after Wait returned.
func (p *goroutinePeer) Stats() Stats {
	<-p.done
	return p.stats
}

func (s GoroutineSpawner) Spawn(ctx context.Context, addr string) (Peer, error) {
	p := &goroutinePeer{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.stats, p.err = Respond(ctx, addr, s.Session, s.Observer)
	}()
	return p, nil
}

// ProcessSpawner runs the responder as a child process of Registry's
// executable. Args builds the child's command line for a listener address.
type ProcessSpawner struct {
	Registry *procmgr.Registry
	Args     func(addr string) []string
}

func (s ProcessSpawner) Spawn(ctx context.Context, addr string) (Peer, error) {
	child, err := s.Registry.Spawn(ctx, s.Args(addr)...)
	if err != nil {
		return nil, err
	}
	return child, nil
}
