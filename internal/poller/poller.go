// Package poller provides non-blocking read/write readiness notification
// for a raw socket fd, wrapping it in an io.ReadWriteCloser so callers
// never touch the file descriptor directly. Two backends: a Linux epoll
// waiter (poller_linux.go) and a portable retry-with-backoff fallback
// (poller_other.go) for any other GOOS, since golang.org/x/sys doesn't
// offer a portable readiness multiplexer and epoll is Linux-only.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package poller

import (
	"io"

	"golang.org/x/sys/unix"
)

// waiter blocks the calling goroutine until fd is readable or writable.
type waiter interface {
	waitReadable(fd int) error
	waitWritable(fd int) error
	close() error
}

// Conn adapts a non-blocking raw fd into an io.ReadWriteCloser: Read and
// Write retry against the underlying syscall, parking on the platform
// waiter whenever the kernel reports EAGAIN, so callers see ordinary
// blocking semantics while the fd itself stays non-blocking end to end.
type Conn struct {
	fd int
	w  waiter
}

// New sets fd non-blocking and wraps it with a readiness waiter.
func New(fd int) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	w, err := newWaiter(fd)
	if err != nil {
		return nil, err
	}
	return &Conn{fd: fd, w: w}, nil
}

func (c *Conn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := c.w.waitReadable(c.fd); werr != nil {
				return 0, werr
			}
			continue
		}
		if n == 0 && err == nil {
			return 0, io.EOF
		}
		return n, err
	}
}

// Write makes one non-blocking write attempt per pass and, on EAGAIN,
// arms write-readiness by parking in the platform waiter before retrying.
// The parking suspends only the calling goroutine; callers with an event
// loop to keep responsive (the Channel) run Write on a dedicated writer
// goroutine, never on the loop itself.
func (c *Conn) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(c.fd, p[total:])
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := c.w.waitWritable(c.fd); werr != nil {
				return total, werr
			}
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *Conn) Close() error {
	c.w.close()
	return unix.Close(c.fd)
}
