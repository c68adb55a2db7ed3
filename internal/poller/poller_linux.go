//go:build linux

// Package poller provides read/write readiness notification for a raw socket fd.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package poller

import "golang.org/x/sys/unix"

// epollWaiter is the Linux readiness backend: one epoll instance per fd,
// registered for both EPOLLIN and EPOLLOUT, blocking in EpollWait until the
// requested direction fires.
type epollWaiter struct {
	epfd int
}

func newWaiter(fd int) (waiter, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(epfd)
		return nil, err
	}
	return &epollWaiter{epfd: epfd}, nil
}

func (w *epollWaiter) wait(want uint32) error {
	events := make([]unix.EpollEvent, 1)
	for {
		n, err := unix.EpollWait(w.epfd, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 && events[0].Events&(want|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			return nil
		}
	}
}

func (w *epollWaiter) waitReadable(int) error { return w.wait(unix.EPOLLIN) }
func (w *epollWaiter) waitWritable(int) error { return w.wait(unix.EPOLLOUT) }
func (w *epollWaiter) close() error           { return unix.Close(w.epfd) }
