package netio

import (
	"context"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/corofd/iouco/lazy"
	"github.com/corofd/iouco/worker"
)

// Conn is one connected TCP4 socket, either accepted from a Listener or
// opened with Dial.
type Conn struct {
	w  *worker.Worker
	fd int
}

// Dial opens a TCP4 connection to addr asynchronously via lazy.Connect. The
// socket itself is still created with a plain socket(2): io_uring's
// IORING_OP_SOCKET exists (lazy.Socket) but offers nothing over the
// synchronous call for a single one-off fd, so Dial only hands the connect
// itself to the ring.
func Dial(ctx context.Context, w *worker.Worker, addr string) (*Conn, error) {
	sa, err := resolveTCP4(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}

	raw := rawSockaddrInet4(sa)
	_, _, err = lazy.Connect(w, fd, unsafe.Pointer(&raw), uint32(unsafe.Sizeof(raw))).Await(ctx)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Conn{w: w, fd: fd}, nil
}

// Read reads into buf, returning the number of bytes read. A zero-length
// read with no error means the peer closed its write side, matching
// io_uring's recv semantics (no separate io.EOF).
func (c *Conn) Read(ctx context.Context, buf []byte) (int, error) {
	res, _, err := lazy.Recv(c.w, c.fd, buf, 0).Await(ctx)
	if err != nil {
		return 0, err
	}
	return int(res), nil
}

// Write writes all of buf, looping over short sends the way net.Conn.Write
// is documented to.
func (c *Conn) Write(ctx context.Context, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		res, _, err := lazy.Send(c.w, c.fd, buf[written:], 0).Await(ctx)
		if err != nil {
			return written, err
		}
		written += int(res)
	}
	return written, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

// Fd exposes the underlying file descriptor for callers that need to hand
// it to a lower-level lazy op directly (e.g. Sendmsg/Recvmsg for UDP-style
// traffic, which netio does not wrap).
func (c *Conn) Fd() int { return c.fd }
