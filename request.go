// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import (
	"container/list"
	"sync/atomic"

	"github.com/ikravets/rilio/internal/id"
	"github.com/ikravets/rilio/internal/parcel"
)

// Status is a Request's position in its lifecycle.
type Status int32

const (
	StatusNew Status = iota
	StatusQueued
	StatusSending
	StatusSent
	StatusCancelled
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusQueued:
		return "QUEUED"
	case StatusSending:
		return "SENDING"
	case StatusSent:
		return "SENT"
	case StatusCancelled:
		return "CANCELLED"
	case StatusDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ResponseStatus is the status value passed to a Request's response
// callback: either the peer's own status word (>= 0) or one of the two
// synthetic values the engine produces itself.
type ResponseStatus int32

const (
	StatusOK      ResponseStatus = 0
	StatusCancel  ResponseStatus = -1
	StatusTimeout ResponseStatus = -2
)

// Timeout sentinels: a Request timeout of TimeoutNone means infinite,
// TimeoutDefault means inherit the Channel's default.
const (
	TimeoutNone    = 0
	TimeoutDefault = -1
)

// ResponseFunc is invoked exactly once per Request that reaches a terminal
// outcome: a solicited reply, a synthetic TIMEOUT, or a synthetic
// CANCELLED. data is only valid for the duration of the call.
type ResponseFunc func(status ResponseStatus, data []byte)

// Request is a single outbound call: an opcode, an accumulated payload, and
// the bookkeeping the Channel needs to route its eventual response. A
// Request is built (via the Append* methods) before it is handed to
// Channel.Submit or Queue.Submit; the payload is frozen from submission
// until the wire header is written just before transmission.
type Request struct {
	name   string
	code   uint32
	id     atomic.Uint32
	status atomic.Int32

	timeout   int64
	response  ResponseFunc
	onRelease func()
	released  bool

	w *parcel.Writer

	// Engine-owned linkage; touched only on the Channel's control
	// goroutine, never read or written by callers directly.
	fifoElem   *list.Element
	queueElem  *list.Element
	ownerQueue *Queue
	deadline   int64 // absolute mono nanoseconds, 0 = none
	heapIndex  int
	inFlight   bool
}

// NewRequest constructs a Request for the given opcode with no pre-reserved
// payload capacity.
func NewRequest(code uint32) *Request { return NewRequestCapacity(code, 0) }

// NewRequestCapacity constructs a Request for the given opcode, pre-reserving
// capacity bytes of payload room in addition to the 12-byte wire header.
func NewRequestCapacity(code uint32, capacity int) *Request {
	buf := make([]byte, headerLen, headerLen+capacity)
	r := &Request{
		code:    code,
		timeout: TimeoutDefault,
		w:       parcel.NewWriter(buf),
	}
	r.status.Store(int32(StatusNew))
	return r
}

// SetResponse installs the callback fired on this Request's terminal
// outcome. Must be called before submission.
func (r *Request) SetResponse(fn ResponseFunc) {
	if r != nil {
		r.response = fn
	}
}

// SetOnRelease installs a hook fired exactly once when the engine is
// permanently done with this Request: after its terminal callback (if any)
// has returned, or as soon as it is sent when it has no response callback.
func (r *Request) SetOnRelease(fn func()) {
	if r != nil {
		r.onRelease = fn
	}
}

// SetTimeout overrides the Channel's default timeout for this Request, in
// milliseconds. Must be called before submission.
func (r *Request) SetTimeout(ms int64) {
	if r != nil {
		r.timeout = ms
	}
}

// Status returns the Request's current lifecycle status. Safe to call from
// any goroutine.
func (r *Request) Status() Status {
	if r == nil {
		return StatusNew
	}
	return Status(r.status.Load())
}

// ID returns the Request's assigned id, or 0 if it has not yet been
// submitted. Safe to call from any goroutine.
func (r *Request) ID() uint32 {
	if r == nil {
		return 0
	}
	return r.id.Load()
}

// Code returns the Request's opcode.
func (r *Request) Code() uint32 {
	if r == nil {
		return 0
	}
	return r.code
}

// Name returns a short diagnostic identifier for log lines, generating one
// on first use if none was set.
func (r *Request) Name() string {
	if r == nil {
		return ""
	}
	if r.name == "" {
		r.name = id.New()
	}
	return r.name
}

// SetName overrides the generated diagnostic name.
func (r *Request) SetName(name string) {
	if r != nil {
		r.name = name
	}
}

// AppendByte appends one raw byte to the payload.
func (r *Request) AppendByte(b byte) {
	if r != nil {
		r.w.AppendByte(b)
	}
}

// AppendBytes appends raw bytes to the payload verbatim.
func (r *Request) AppendBytes(p []byte) {
	if r != nil {
		r.w.AppendBytes(p)
	}
}

// AppendInt32 appends a native-endian 32-bit word to the payload.
func (r *Request) AppendInt32(v int32) {
	if r != nil {
		r.w.AppendInt32(v)
	}
}

// AppendUint32 appends a native-endian 32-bit word to the payload.
func (r *Request) AppendUint32(v uint32) {
	if r != nil {
		r.w.AppendUint32(v)
	}
}

// AppendUTF8 appends s using the protocol's length-prefixed UTF-16 string
// encoding.
func (r *Request) AppendUTF8(s string) {
	if r != nil {
		r.w.AppendUTF8(s)
	}
}

// AppendUTF8Null appends s, encoding a nil pointer as the protocol's null
// string.
func (r *Request) AppendUTF8Null(s *string) {
	if r != nil {
		r.w.AppendUTF8Null(s)
	}
}

// AppendFormat formats args per format and appends the result as a UTF-8
// string.
func (r *Request) AppendFormat(format string, args ...any) {
	if r != nil {
		r.w.AppendFormat(format, args...)
	}
}

// Data returns the payload appended so far, excluding the reserved header
// room.
func (r *Request) Data() []byte {
	if r == nil {
		return nil
	}
	return r.payload()
}

// Size returns the payload length, excluding the reserved header room.
func (r *Request) Size() int { return len(r.Data()) }

// payload returns the bytes appended so far, excluding the reserved header.
func (r *Request) payload() []byte { return r.w.Bytes()[headerLen:] }

// buffer returns the full wire buffer (header ⨁ payload); the header bytes
// are meaningless until finalize is called.
func (r *Request) buffer() []byte { return r.w.Bytes() }

// finalize writes the 12-byte header now that id is known, just before the
// first transmission attempt.
func (r *Request) finalize() {
	encodeHeader(r.w.Bytes(), r.code, r.id.Load())
}

func (r *Request) setStatus(s Status) { r.status.Store(int32(s)) }

// fire invokes the response callback, if any. Called at most once per
// terminal outcome.
func (r *Request) fire(status ResponseStatus, data []byte) {
	if r.response != nil {
		r.response(status, data)
	}
}

// release fires the OnRelease hook exactly once, after the engine has
// permanently let go of this Request.
func (r *Request) release() {
	if r.released {
		return
	}
	r.released = true
	if r.onRelease != nil {
		r.onRelease()
	}
}
