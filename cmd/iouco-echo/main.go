// Command iouco-echo runs a minimal TCP echo server over io_uring, a
// end-to-end exercise of ioctx+lazy+netio together: one listener Accept loop
// spawning one echo goroutine per connection. Not meant as a production
// server: no flag parsing, no backpressure, no limit on concurrent
// connections.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/corofd/iouco/ioctx"
	"github.com/corofd/iouco/netio"
)

func main() {
	addr := ":9000"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	c, err := ioctx.New(256, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iouco-echo: %v\n", err)
		os.Exit(1)
	}

	ln, err := netio.Listen(c.W, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iouco-echo: %v\n", err)
		os.Exit(1)
	}
	defer ln.Close()

	if bound, err := ln.Addr(); err == nil {
		fmt.Fprintf(os.Stderr, "iouco-echo: listening on %s\n", bound)
	}

	c.Spawn(func(ctx context.Context) error {
		return acceptLoop(ctx, c, ln)
	})

	c.Run()
}

func acceptLoop(ctx context.Context, c *ioctx.Context, ln *netio.Listener) error {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "iouco-echo: accept: %v\n", err)
			continue
		}
		c.Spawn(func(ctx context.Context) error {
			return echo(ctx, conn)
		})
	}
}

func echo(ctx context.Context, conn *netio.Conn) error {
	defer conn.Close()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(ctx, buf)
		if err != nil || n == 0 {
			return err
		}
		if _, err := conn.Write(ctx, buf[:n]); err != nil {
			return err
		}
	}
}
