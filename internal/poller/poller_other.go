//go:build !linux

// Package poller provides read/write readiness notification for a raw socket fd.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package poller

import "time"

// backoffWaiter is the portable fallback for platforms without epoll:
// golang.org/x/sys/unix exposes the raw read/write syscalls everywhere but
// only a Linux-specific readiness multiplexer, so non-Linux builds sleep
// for a fixed millisecond between retries instead of blocking in a kernel
// readiness call. Documented tradeoff, not a silent one: this path is
// slower under contention than epollWaiter.
type backoffWaiter struct{}

func newWaiter(int) (waiter, error) { return backoffWaiter{}, nil }

func (backoffWaiter) waitReadable(int) error { return sleep() }
func (backoffWaiter) waitWritable(int) error { return sleep() }
func (backoffWaiter) close() error           { return nil }

func sleep() error {
	time.Sleep(time.Millisecond)
	return nil
}
