package pingpong

import (
	"context"
	"errors"
	"io"
	"syscall"
	"testing"
	"time"
)

func TestSecondBindFails(t *testing.T) {
	first, err := StartListener("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("first StartListener: %v", err)
	}
	defer first.Close()

	second, err := StartListener("127.0.0.1", first.Port())
	if err == nil {
		second.Close()
		t.Fatalf("second listener on port %d should fail", first.Port())
	}
	if !errors.Is(err, ErrBind) {
		t.Fatalf("error = %v, want ErrBind", err)
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		t.Fatalf("error = %v, want EADDRINUSE cause", err)
	}
}

func TestRebindAfterClose(t *testing.T) {
	first, err := StartListener("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("StartListener: %v", err)
	}
	port := first.Port()
	first.Close()

	again, err := StartListener("127.0.0.1", port)
	if err != nil {
		t.Fatalf("rebinding port %d after close: %v", port, err)
	}
	again.Close()
}

func TestStartListenerBadHost(t *testing.T) {
	if _, err := StartListener("not a host name", 0); !errors.Is(err, ErrBind) {
		t.Fatalf("error = %v, want ErrBind", err)
	}
}

func TestAcceptOnceCancelled(t *testing.T) {
	ep, err := StartListener("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("StartListener: %v", err)
	}
	defer ep.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = ep.AcceptOnce(ctx)
	if !errors.Is(err, ErrAccept) {
		t.Fatalf("error = %v, want ErrAccept", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled cause", err)
	}
}

func TestConnectBeforeAccept(t *testing.T) {
	ep, err := StartListener("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("StartListener: %v", err)
	}
	defer ep.Close()

	dialed, err := ConnectTo(context.Background(), ep.Addr().String(), testSession(1))
	if err != nil {
		t.Fatalf("connect before accept: %v", err)
	}
	defer dialed.Close()

	time.Sleep(50 * time.Millisecond)

	accepted, err := ep.AcceptOnce(context.Background())
	if err != nil {
		t.Fatalf("AcceptOnce: %v", err)
	}
	defer accepted.Close()

	if _, err := dialed.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(accepted, buf); err != nil || buf[0] != 'x' {
		t.Fatalf("read %q, %v", buf, err)
	}
}
