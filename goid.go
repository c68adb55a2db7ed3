// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGoroutineID returns the calling goroutine's runtime id by parsing the
// "goroutine N [...]:" header runtime.Stack always prints first. This is
// the minimal stdlib-only way to answer "am I the goroutine already running
// Channel.Serve" without threading a context value through every callback
// signature (ResponseFunc, SignalFunc, LoggerFunc); see Channel's doc
// comment. Used only to pick the reentrancy fast path in dispatchSync;
// never exposed, never used for anything load-bearing beyond that.
func curGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
