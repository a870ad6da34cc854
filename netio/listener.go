package netio

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/corofd/iouco/lazy"
	"github.com/corofd/iouco/worker"
)

// Listener is a minimal TCP4 listener. Bind/listen setup has no useful
// asynchronous form — only Accept benefits from io_uring — so Listen does
// that part with plain blocking syscalls and hands the resulting fd to w for
// every subsequent Accept.
type Listener struct {
	w  *worker.Worker
	fd int
}

// Listen creates, binds, and listens on addr (host:port, IPv4 only).
func Listen(w *worker.Worker, addr string) (*Listener, error) {
	sa, err := resolveTCP4(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Listener{w: w, fd: fd}, nil
}

// Accept waits for one incoming connection.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	res, _, err := lazy.Accept(l.w, l.fd, nil, nil, 0).Await(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{w: l.w, fd: int(res)}, nil
}

// Fd exposes the listening file descriptor directly.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the "ip:port" the listener actually bound to, via
// getsockname(2) — useful when Listen was given port 0 and the kernel chose
// one.
func (l *Listener) Addr() (string, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return "", err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", fmt.Errorf("netio: unexpected sockaddr type %T", sa)
	}
	ip := in4.Addr
	return fmt.Sprintf("%d.%d.%d.%d:%d", ip[0], ip[1], ip[2], ip[3], in4.Port), nil
}

// Close closes the listening socket. This is a plain close(2): the listener
// itself was never an io_uring operation, only the Accepts drawn from it
// were.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}
