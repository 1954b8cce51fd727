package pingpong

import (
	"errors"
	"fmt"

	"pingpong/internal/output"
)

// Op names the socket or process operation that failed.
type Op string

const (
	OpBind    Op = "bind"
	OpListen  Op = "listen"
	OpAccept  Op = "accept"
	OpConnect Op = "connect"
	OpSend    Op = "send"
	OpReceive Op = "receive"
	OpSpawn   Op = "spawn"
)

var (
	ErrBind    = errors.New("bind failed")
	ErrListen  = errors.New("listen failed")
	ErrAccept  = errors.New("accept failed")
	ErrConnect = errors.New("connect failed")
	ErrSend    = errors.New("send failed")
	ErrReceive = errors.New("receive failed")
	ErrSpawn   = errors.New("process spawn failed")

	// ErrUnexpectedPayload is the cause of a strict-mode receive failure.
	ErrUnexpectedPayload = errors.New("unexpected payload")
)

var sentinels = map[Op]error{
	OpBind:    ErrBind,
	OpListen:  ErrListen,
	OpAccept:  ErrAccept,
	OpConnect: ErrConnect,
	OpSend:    ErrSend,
	OpReceive: ErrReceive,
	OpSpawn:   ErrSpawn,
}

// OpError reports a failed operation. errors.Is matches it against the
// sentinel of its Op as well as anything in the wrapped cause.
type OpError struct {
	Op   Op
	Addr string
	Err  error
}

func (e *OpError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	return target != nil && sentinels[e.Op] == target
}

// OpOf returns the operation of the first OpError in err's chain, or "" when
// there is none.
func OpOf(err error) Op {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Op
	}
	return ""
}

func newOpError(op Op, addr string, err error) error {
	output.IncrementFailures(string(op))
	return &OpError{Op: op, Addr: addr, Err: err}
}
