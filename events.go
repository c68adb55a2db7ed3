// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

// SignalKind is one of the four broadcast signals a Channel fires.
type SignalKind int

const (
	SignalConnected SignalKind = iota
	SignalUnsolEvent
	SignalErrorSignal
	SignalEOF
)

func (k SignalKind) String() string {
	switch k {
	case SignalConnected:
		return "CONNECTED"
	case SignalUnsolEvent:
		return "UNSOL_EVENT"
	case SignalErrorSignal:
		return "ERROR"
	case SignalEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// UnsolEvent is the argument passed to an UNSOL_EVENT subscriber: the
// event's code and its data slice (valid only for the duration of the call).
type UnsolEvent struct {
	Code uint32
	Data []byte
}

// SignalFunc is a subscriber callback. args is nil for CONNECTED/EOF,
// an *UnsolEvent for UNSOL_EVENT, and a *SignalError for ERROR.
type SignalFunc func(args any)

type signalKey struct {
	kind   SignalKind
	detail uint32
}

type subscriber struct {
	id uint32
	fn SignalFunc
}

// events is the (kind, optional detail) -> subscriber-list registry.
// Dispatch always iterates a snapshot slice so a subscriber detaching
// itself mid-dispatch is safe; attaching a new one is only observed on the
// next dispatch (copy-on-write swap, no extra bookkeeping needed).
type events struct {
	table  map[signalKey][]subscriber
	nextID uint32
}

func newEvents() *events {
	return &events{table: make(map[signalKey][]subscriber)}
}

// subscribe registers fn for kind/detail (detail is ignored for
// CONNECTED/ERROR/EOF; for UNSOL_EVENT, detail==0 means "every code").
// Returns a stable, non-zero handle for Unsubscribe.
func (e *events) subscribe(kind SignalKind, detail uint32, fn SignalFunc) uint32 {
	e.nextID++
	if e.nextID == 0 {
		e.nextID = 1
	}
	id := e.nextID
	if kind != SignalUnsolEvent {
		detail = 0
	}
	key := signalKey{kind, detail}
	old := e.table[key]
	next := make([]subscriber, len(old), len(old)+1)
	copy(next, old)
	e.table[key] = append(next, subscriber{id: id, fn: fn})
	return id
}

// unsubscribe removes the subscriber with the given handle, if any.
func (e *events) unsubscribe(id uint32) bool {
	if id == 0 {
		return false
	}
	for key, subs := range e.table {
		for i, s := range subs {
			if s.id == id {
				next := make([]subscriber, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				next = append(next, subs[i+1:]...)
				e.table[key] = next
				return true
			}
		}
	}
	return false
}

// fire dispatches args to every subscriber of (kind, detail), then (for
// UNSOL_EVENT only) to every subscriber of (kind, 0), the "all events" key.
func (e *events) fire(kind SignalKind, detail uint32, args any) {
	for _, s := range e.table[signalKey{kind, detail}] {
		s.fn(args)
	}
	if kind == SignalUnsolEvent && detail != 0 {
		for _, s := range e.table[signalKey{kind, 0}] {
			s.fn(args)
		}
	}
}
