// Package rilio is a client for a length-prefixed, request/response
// telephony control protocol spoken over a single long-lived stream socket.
// A Channel multiplexes many concurrent logical Requests over one
// connection: it assigns monotonically increasing request ids, frames
// outbound writes, and correlates inbound frames back to callers either by
// id (solicited responses) or by event code (unsolicited events).
//
// The engine itself is single-threaded by construction: all Channel state
// is owned by one goroutine, reached only through its exported methods,
// which enqueue a closure on an internal control channel and block for its
// result. Concurrent callers never touch Channel's fields directly.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio
