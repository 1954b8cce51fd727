package pingpong

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"pingpong/internal/config"
	"pingpong/internal/output"
)

// ConnectTo dials addr. A refused connection is retried with exponential
// backoff up to s.ConnectAttempts times; any other failure is returned at
// once.
func ConnectTo(ctx context.Context, addr string, s config.Session) (net.Conn, error) {
	dialer := &net.Dialer{}
	backoff := s.ConnectBackoff
	attempts := max(s.ConnectAttempts, 1)

	var lastErr error
	tries := 0
	for tries < attempts {
		tries++
		output.IncrementConnectAttempts()

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			slog.Debug("Connected", "addr", addr, "attempt", tries)
			return conn, nil
		}
		lastErr = err

		if !errors.Is(err, unix.ECONNREFUSED) || tries == attempts {
			break
		}

		slog.Debug("Connection refused, retrying", "addr", addr, "attempt", tries, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, newOpError(OpConnect, addr, fmt.Errorf("%w: %w", ctx.Err(), lastErr))
		}

		backoff *= 2
		if s.MaxConnectBackoff > 0 && backoff > s.MaxConnectBackoff {
			backoff = s.MaxConnectBackoff
		}
	}

	return nil, newOpError(OpConnect, addr, fmt.Errorf("after %d attempts: %w", tries, lastErr))
}
