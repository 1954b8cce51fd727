package pingpong

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Backlog is the listen queue length of an Endpoint.
const Backlog = 1

// Endpoint is a listening IPv4 TCP socket that hands out a single connection.
type Endpoint struct {
	ln net.Listener
}

// StartListener binds host:port with SO_REUSEADDR and listens with a backlog
// of one. Port 0 picks a free port. Bind and listen are separate syscalls so
// a busy address surfaces as ErrBind and a listen failure as ErrListen.
func StartListener(host string, port int) (*Endpoint, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, newOpError(OpBind, addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, newOpError(OpListen, addr, os.NewSyscallError("socket", err))
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, newOpError(OpListen, addr, os.NewSyscallError("setsockopt", err))
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, newOpError(OpBind, addr, os.NewSyscallError("bind", err))
	}

	if err := unix.Listen(fd, Backlog); err != nil {
		unix.Close(fd)
		return nil, newOpError(OpListen, addr, os.NewSyscallError("listen", err))
	}

	// FileListener dups the descriptor, so the original is closed either way.
	f := os.NewFile(uintptr(fd), "pingpong-listener")
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, newOpError(OpListen, addr, err)
	}

	return &Endpoint{ln: ln}, nil
}

func (e *Endpoint) Addr() net.Addr {
	return e.ln.Addr()
}

// Port returns the bound port, useful when the endpoint was started on 0.
func (e *Endpoint) Port() int {
	if a, ok := e.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// AcceptOnce blocks until one inbound connection arrives. Cancelling ctx
// closes the endpoint and fails the accept. A second connection attempt is
// never accepted.
func (e *Endpoint) AcceptOnce(ctx context.Context) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() { e.ln.Close() })
	conn, err := e.ln.Accept()
	stop()

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, newOpError(OpAccept, e.Addr().String(), err)
	}
	return conn, nil
}

func (e *Endpoint) Close() error {
	return e.ln.Close()
}
