// Command iouco-cat reads one file through io_uring and writes it to stdout,
// a minimal end-to-end exercise of ioctx+lazy's file-I/O surface. It is not
// meant as a real cat replacement: no flag parsing, no multi-file support,
// no stdin fallback.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/corofd/iouco/ioctx"
	"github.com/corofd/iouco/lazy"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file>\n", os.Args[0])
		os.Exit(2)
	}

	c, err := ioctx.New(64, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iouco-cat: %v\n", err)
		os.Exit(1)
	}

	exitCode := 0
	c.Spawn(func(ctx context.Context) error {
		defer c.RequestStop()
		if err := catFile(ctx, c, os.Args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "iouco-cat: %v\n", err)
			exitCode = 1
		}
		return nil
	})

	c.Run()
	os.Exit(exitCode)
}

func catFile(ctx context.Context, c *ioctx.Context, path string) error {
	pathPtr, err := syscall.BytePtrFromString(path)
	if err != nil {
		return err
	}

	fdRes, err := lazy.Open(c.W, pathPtr, os.O_RDONLY, 0).Result()
	if err != nil {
		return err
	}
	fd := int(fdRes)
	defer lazy.Close(c.W, fd).Result()

	buf := make([]byte, 64*1024)
	var offset uint64
	for {
		n, _, err := lazy.Read(c.W, fd, buf, offset).Await(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := os.Stdout.Write(buf[:n]); err != nil {
			return err
		}
		offset += uint64(n)
	}
}
