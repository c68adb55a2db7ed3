// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import (
	"container/list"
	"context"
	"io"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ikravets/rilio/internal/debug"
	"github.com/ikravets/rilio/internal/id"
	"github.com/ikravets/rilio/internal/mono"
	"github.com/ikravets/rilio/internal/nlog"
	"github.com/ikravets/rilio/internal/poller"
)

// Channel is the multiplexing I/O engine: it owns the socket, the send
// FIFO, the in-flight map, the deadline tracker, the logger list and the
// event-subscriber registry, and drives every state transition a Request
// goes through.
//
// Three goroutines per Channel: a reader (readLoop) that accumulates and
// decodes inbound frames, a writer (writeLoop) that performs the possibly
// back-pressured socket writes one chunk at a time, and the control
// goroutine running Serve, which owns all state and merely exchanges
// decoded frames and write outcomes with the other two over channels. The
// control goroutine never touches the socket itself, so it is never
// blocked by a stalled peer.
//
// All Channel state is mutated from the control goroutine, the one
// running Serve. Every exported method that mutates state (Submit, Cancel,
// CancelAll, AddLogger/RemoveLogger, Subscribe/Unsubscribe, Shutdown)
// builds a closure, hands it to that goroutine over an internal control
// channel, and blocks for the result, so it is safe to call from any
// goroutine.
// The one exception is reentrancy: a response, event, logger, or release
// callback Serve itself invokes already runs on the control goroutine, so
// if that callback calls straight back into e.g. Cancel, routing through
// the control channel again would deadlock against the very goroutine
// waiting to read it. Channel detects this case (by comparing the calling
// goroutine's id against the one captured when Serve started) and
// short-circuits to a direct call instead.
type Channel struct {
	conn      io.ReadWriteCloser
	closeConn bool
	name      string

	subTag     [subscriptionTagLen]byte
	subTagSent bool

	fifo       list.List // of *Request
	sendReq    *Request
	sendPos    int
	sendingTag bool
	writeBusy  bool
	inflight   map[uint32]*Request
	lastReqID  uint32

	loggers      []loggerEntry
	lastLoggerID uint32

	ev *events
	dl *deadlines

	defaultTimeout int64 // ms; TimeoutNone (0) = infinite
	connected      bool
	rilVersion     uint32

	metrics *Metrics

	inboundCh chan inboundMsg
	writeReq  chan []byte
	writeRes  chan writeResult
	ctrlCh    chan func()
	loopGID   atomic.Uint64 // 0 until Serve starts
	loopDone  chan struct{} // closed when Serve returns
	closed    atomic.Bool
}

type writeResult struct {
	n   int
	err error
}

// dispatchSync runs fn on the control goroutine and waits for it to
// finish: directly, if the caller already is that goroutine (reentrancy,
// or a call made before Serve has started; construction-time setup is
// assumed single-goroutine), otherwise by handing fn to Serve's select
// loop and blocking on a completion signal.
func (c *Channel) dispatchSync(fn func()) {
	if c == nil {
		return
	}
	if c.closed.Load() {
		fn()
		return
	}
	gid := c.loopGID.Load()
	if gid == 0 || gid == curGoroutineID() {
		fn()
		return
	}
	done := make(chan struct{})
	select {
	case c.ctrlCh <- func() {
		fn()
		close(done)
	}:
		<-done
	case <-c.loopDone:
		// Serve exited between our loopGID read and the send; the engine is
		// single-goroutine again, same as the pre-Serve case.
		fn()
	}
}

type loggerEntry struct {
	id uint32
	fn LoggerFunc
}

// LogDirection tags which of the three logger lines (REQ, RESP, UNSOL) a
// call corresponds to.
type LogDirection int

const (
	LogReq LogDirection = iota
	LogResp
	LogUnsol
)

// LoggerFunc receives one line's worth of logging data: for LogReq, code is
// the opcode and data is the payload (header stripped); for LogResp, code
// is actually the response status (see Channel.AddLogger doc); for
// LogUnsol, id is always 0 and code is the event code.
type LoggerFunc func(dir LogDirection, id uint32, code uint32, data []byte)

type inboundMsg struct {
	frame inboundFrame
	err   error
	eof   bool
}

// NewFromConn wraps an already-established duplex byte stream (a
// net.Conn, a poller.Conn, or, in tests, a net.Pipe() half) as a
// Channel. subTag, if non-empty, must be exactly subscriptionTagLen bytes
// and is written once before any request frame; an empty subTag means the
// peer expects no prologue.
func NewFromConn(conn io.ReadWriteCloser, subTag string, closeConn bool) (*Channel, error) {
	c := &Channel{
		conn:      conn,
		closeConn: closeConn,
		name:      id.New(),
		inflight:  make(map[uint32]*Request),
		ev:        newEvents(),
		dl:        newDeadlines(),
		metrics:   NewMetrics(),
		inboundCh: make(chan inboundMsg, 1),
		writeReq:  make(chan []byte, 1),
		writeRes:  make(chan writeResult, 1),
		ctrlCh:    make(chan func()),
		loopDone:  make(chan struct{}),
	}
	if subTag != "" {
		if len(subTag) != subscriptionTagLen {
			return nil, errors.Errorf("rilio: subscription tag must be %d bytes, got %d", subscriptionTagLen, len(subTag))
		}
		copy(c.subTag[:], subTag)
		// Stage the prologue for the writer goroutine; subTagSent flips
		// only when its completion comes back through finishWrite.
		c.sendingTag = true
		c.writeBusy = true
		c.writeReq <- c.subTag[:]
	} else {
		c.subTagSent = true
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// FromFD wraps an already-connected socket fd (made non-blocking and
// driven through internal/poller) as a Channel. ownFD controls whether
// Shutdown closes the fd.
func FromFD(fd int, subTag string, ownFD bool) (*Channel, error) {
	pc, err := poller.New(fd)
	if err != nil {
		return nil, errors.Wrap(err, "rilio: wrapping fd")
	}
	return NewFromConn(pc, subTag, ownFD)
}

// FromSocketPath connects an AF_UNIX SOCK_STREAM socket to path and wraps
// it as a Channel. Returns a nil Channel and an error if the connect
// fails, e.g. when path names a directory rather than a stream socket.
func FromSocketPath(path, subTag string) (*Channel, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "rilio: dialing %s", path)
	}
	return NewFromConn(conn, subTag, true)
}

// Name returns the Channel's diagnostic name (generated if none was set).
func (c *Channel) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// SetName overrides the generated diagnostic name.
func (c *Channel) SetName(name string) {
	c.dispatchSync(func() { c.name = name })
}

// SetDefaultTimeout sets the timeout (ms) inherited by Requests submitted
// with TimeoutDefault. TimeoutNone (0) means infinite.
func (c *Channel) SetDefaultTimeout(ms int64) {
	c.dispatchSync(func() { c.defaultTimeout = ms })
}

// Connected reports whether the peer's CONNECTED event has been received.
func (c *Channel) Connected() bool { return c != nil && c.connected }

// RilVersion returns the peer-reported protocol version from the CONNECTED
// event, or 0 before it arrives.
func (c *Channel) RilVersion() uint32 {
	if c == nil {
		return 0
	}
	return c.rilVersion
}

// Metrics returns the Channel's prometheus.Collector for callers who expose
// a /metrics endpoint.
func (c *Channel) Metrics() *Metrics {
	if c == nil {
		return nil
	}
	return c.metrics
}

// AddLogger registers fn to be called for every transmitted request
// (LogReq, id, code, payload), received response (LogResp, id, status,
// response payload) and unsolicited event (LogUnsol, 0, code, event data).
// The data for LogResp and LogUnsol does not include the body's leading
// words: a response's type, id and status words and an event's type and
// reserved words are stripped. Returns a stable, non-zero id for
// RemoveLogger.
func (c *Channel) AddLogger(fn LoggerFunc) uint32 {
	var lid uint32
	c.dispatchSync(func() {
		c.lastLoggerID++
		if c.lastLoggerID == 0 {
			c.lastLoggerID = 1
		}
		lid = c.lastLoggerID
		c.loggers = append(c.loggers, loggerEntry{id: lid, fn: fn})
	})
	return lid
}

// RemoveLogger unregisters the logger with the given id. Unknown ids are
// logged as a warning, not treated as an error.
func (c *Channel) RemoveLogger(lid uint32) {
	c.dispatchSync(func() {
		for i, l := range c.loggers {
			if l.id == lid {
				c.loggers = append(c.loggers[:i], c.loggers[i+1:]...)
				return
			}
		}
		nlog.Warningf("rilio: %s: remove_logger: unknown id %d", c.name, lid)
	})
}

func (c *Channel) logReq(id, code uint32, data []byte) {
	for _, l := range c.loggers {
		l.fn(LogReq, id, code, data)
	}
}
func (c *Channel) logResp(id uint32, status int32, data []byte) {
	for _, l := range c.loggers {
		l.fn(LogResp, id, uint32(status), data)
	}
}
func (c *Channel) logUnsol(code uint32, data []byte) {
	for _, l := range c.loggers {
		l.fn(LogUnsol, 0, code, data)
	}
}

// Subscribe registers fn for the given signal. detail is ignored except
// for SignalUnsolEvent, where 0 means "every unsolicited event" and any
// other value matches only that event code.
func (c *Channel) Subscribe(kind SignalKind, detail uint32, fn SignalFunc) uint32 {
	var handle uint32
	c.dispatchSync(func() { handle = c.ev.subscribe(kind, detail, fn) })
	return handle
}

// Unsubscribe removes a subscriber registered with Subscribe.
func (c *Channel) Unsubscribe(handle uint32) bool {
	var ok bool
	c.dispatchSync(func() { ok = c.ev.unsubscribe(handle) })
	return ok
}

// Submit hands req to the Channel for transmission. If req is nil, an
// empty Request is synthesized. Returns the assigned id, or 0 if req was
// not in StatusNew (rejection).
func (c *Channel) Submit(req *Request) (uint32, error) {
	if c == nil {
		return 0, nil
	}
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if req == nil {
		req = NewRequestCapacity(0, 0)
	}
	var rid uint32
	c.dispatchSync(func() {
		if req.Status() != StatusNew {
			return
		}
		rid = c.submitLocked(req)
	})
	return rid, nil
}

// submitLocked assigns the next id, appends req to the send FIFO, and
// kicks the flush. Control-goroutine only.
func (c *Channel) submitLocked(req *Request) uint32 {
	c.lastReqID++
	if c.lastReqID == 0 {
		c.lastReqID = 1
	}
	rid := c.lastReqID
	req.id.Store(rid)
	req.setStatus(StatusQueued)
	if req.response != nil {
		_, dup := c.inflight[rid]
		debug.Assertf(!dup, "request id %d already in flight", rid)
		c.inflight[rid] = req
		req.inFlight = true
		c.metrics.inFlightGauge.Inc()
	}
	req.fifoElem = c.fifo.PushBack(req)
	c.metrics.requestsSubmitted.Inc()
	c.tryFlush()
	return rid
}

// tryFlush starts transmitting the next FIFO entry if the writer goroutine
// is idle. The subscription tag must be fully sent and the Channel marked
// connected before any frame goes out. The actual socket write happens on
// the writer goroutine, so control returns to the caller immediately:
// submission and cancellation never suspend, timeouts keep firing, and
// inbound frames keep dispatching even while the socket is back-pressured.
func (c *Channel) tryFlush() {
	if !c.subTagSent || !c.connected || c.conn == nil || c.writeBusy {
		return
	}
	if c.sendReq == nil {
		front := c.fifo.Front()
		if front == nil {
			return
		}
		req := front.Value.(*Request)
		c.fifo.Remove(front)
		req.fifoElem = nil
		req.finalize()
		c.sendReq = req
		c.sendPos = 0
		if req.Status() == StatusQueued {
			req.setStatus(StatusSending)
		}
	}
	c.queueWrite()
}

// queueWrite hands the unsent tail of the current request to the writer
// goroutine. Never blocks: writeBusy guarantees the writer is idle and the
// handoff channel has room.
func (c *Channel) queueWrite() {
	c.writeBusy = true
	c.writeReq <- c.sendReq.buffer()[c.sendPos:]
}

// writeLoop is the dedicated writer goroutine: it performs the actual,
// possibly back-pressured socket writes off the control goroutine (for
// poller conns, each write attempt that returns EAGAIN parks on the epoll
// write-readiness subscription inside conn.Write) and reports each chunk's
// outcome back to Serve through writeRes. At most one chunk is ever in
// flight, so neither channel operation here can block.
func (c *Channel) writeLoop() {
	conn := c.conn
	for chunk := range c.writeReq {
		n, err := conn.Write(chunk)
		c.writeRes <- writeResult{n: n, err: err}
		if err != nil {
			return
		}
	}
}

// finishWrite runs on the control goroutine when the writer goroutine
// reports a completed (or failed) chunk: it advances the send state, runs
// post-send bookkeeping, and starts the next FIFO entry.
func (c *Channel) finishWrite(res writeResult) {
	c.writeBusy = false
	if c.conn == nil {
		// Shut down while the write was in flight; nothing left to notify.
		if c.sendReq != nil {
			c.sendReq.release()
			c.sendReq = nil
		}
		return
	}
	if res.err != nil {
		c.sendReq = nil
		c.handleError(PhaseWrite, res.err)
		return
	}
	if c.sendingTag {
		c.sendingTag = false
		c.subTagSent = true
		c.tryFlush()
		return
	}
	req := c.sendReq
	if req == nil {
		return
	}
	c.sendPos += res.n
	if c.sendPos < len(req.buffer()) {
		c.queueWrite()
		return
	}
	c.completeSend(req)
	c.tryFlush()
}

// completeSend runs the post-send bookkeeping: SENDING -> SENT (unless the
// Request was cancelled mid-send, in which case it stays CANCELLED and no
// further notification fires), then either drops the Request from its
// Queue (no response callback: it can never be matched to a reply) or arms
// its deadline now that it is SENT. A response that raced the send
// bookkeeping has already removed the Request from the in-flight map and
// delivered it; in that case there is nothing left to arm.
func (c *Channel) completeSend(req *Request) {
	debug.Assert(req.fifoElem == nil)
	c.sendReq = nil
	c.sendPos = 0
	wasCancelled := req.Status() == StatusCancelled
	if req.Status() == StatusSending {
		req.setStatus(StatusSent)
	}
	c.logReq(req.ID(), req.Code(), req.payload())
	c.metrics.bytesWritten.Add(float64(len(req.buffer())))
	if wasCancelled {
		req.release()
		return
	}
	if req.response == nil {
		req.removeFromQueue()
		req.release()
		return
	}
	if !req.inFlight {
		return
	}
	timeout := req.timeout
	if timeout == TimeoutDefault {
		timeout = c.defaultTimeout
	}
	if timeout != TimeoutNone {
		req.deadline = mono.NanoTime() + timeout*1_000_000
		c.dl.add(req)
		c.dl.rearm(mono.NanoTime())
	}
}

// handleError surfaces a transport or framing error as a SignalError and
// shuts the connection down; both are terminal for the connection.
func (c *Channel) handleError(phase ErrPhase, err error) {
	c.metrics.errors.Inc()
	nlog.Errorf("rilio: %s: %s error: %v", c.name, phase, err)
	c.ev.fire(SignalErrorSignal, 0, newSignalError(phase, err))
	_ = c.Shutdown(false)
}

// handleEOF surfaces the peer closing the stream.
func (c *Channel) handleEOF() {
	if c.conn == nil {
		return
	}
	nlog.Infof("rilio: %s: EOF", c.name)
	c.ev.fire(SignalEOF, 0, nil)
	_ = c.Shutdown(false)
}

// Shutdown tears down I/O. It does not itself cancel pending requests;
// callers typically pair it with CancelAll(true) to flush pending
// callbacks with CANCELLED.
func (c *Channel) Shutdown(flush bool) error {
	if c == nil {
		return nil
	}
	var err error
	c.dispatchSync(func() { err = c.shutdownLocked(flush) })
	return err
}

// Close is the final teardown: every pending Request is cancelled with
// notification (so release hooks fire), then I/O is torn down without
// flushing. Idempotent.
func (c *Channel) Close() error {
	if c == nil {
		return nil
	}
	c.CancelAll(true)
	return c.Shutdown(false)
}

func (c *Channel) shutdownLocked(flush bool) error {
	if c.conn == nil {
		return nil
	}
	c.connected = false
	c.rilVersion = 0
	c.dl.stop()
	conn := c.conn
	c.conn = nil
	c.closed.Store(true)
	close(c.writeReq)
	if !c.closeConn {
		return nil
	}
	if flush {
		if f, ok := conn.(interface{ Sync() error }); ok {
			_ = f.Sync()
		}
	}
	return conn.Close()
}

// Serve drains inbound frames, deadline fires, and control closures until
// ctx is cancelled or the connection ends (EOF/error), dispatching each to
// the framing state machine or the timeout tracker. Call it exactly once,
// from its own goroutine; see the Channel doc comment for the
// single-goroutine concurrency model this assumes.
func (c *Channel) Serve(ctx context.Context) error {
	c.loopGID.Store(curGoroutineID())
	defer func() {
		c.loopGID.Store(0)
		close(c.loopDone)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-c.ctrlCh:
			fn()
		case msg, ok := <-c.inboundCh:
			if !ok {
				return nil
			}
			if msg.eof {
				c.handleEOF()
				return nil
			}
			if msg.err != nil {
				if c.conn == nil {
					// The reader noticed our own shutdown closing the
					// socket out from under it; not a peer-side failure.
					return nil
				}
				c.handleError(classifyReadError(msg.err), msg.err)
				return msg.err
			}
			c.dispatch(msg.frame)
		case res := <-c.writeRes:
			c.finishWrite(res)
		case <-c.dl.fireC:
			c.fireTimeouts()
		}
	}
}

func classifyReadError(err error) ErrPhase {
	if err == ErrFrameTooLarge || err == ErrShortHeader {
		return PhaseInvalidData
	}
	return PhaseRead
}
