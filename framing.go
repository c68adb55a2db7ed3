// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/ikravets/rilio/internal/debug"
	"github.com/ikravets/rilio/internal/mono"
)

// connectedEventCode is the distinguished "connected" event code: the peer
// announces its protocol version with it and thereby unlocks outbound
// writes.
const connectedEventCode = 1034

// readLoop is the dedicated reader goroutine: it owns the length-prefix /
// body accumulation state privately (no Channel field needs to be shared,
// since nothing else ever touches it) and feeds one decoded frame, error,
// or EOF at a time to Serve via inboundCh. A dedicated goroutine can block
// for exactly the bytes it needs next, so the reading-length /
// reading-body split collapses into two io.ReadFull calls instead of a
// resumable state machine.
func (c *Channel) readLoop() {
	defer close(c.inboundCh)
	conn := c.conn // Shutdown nils the field; the blocked Read sees Close instead
	var lenBuf [lenPrefixLen]byte
	for {
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			c.inboundCh <- eofOrErr(err)
			return
		}
		n := decodeLength(lenBuf[:])
		if n > maxBodyLen {
			c.inboundCh <- inboundMsg{err: ErrFrameTooLarge}
			return
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(conn, body); err != nil {
			c.inboundCh <- eofOrErr(err)
			return
		}
		frame, err := decodeBody(body)
		if err != nil {
			c.inboundCh <- inboundMsg{err: err}
			return
		}
		c.inboundCh <- inboundMsg{frame: frame}
	}
}

func eofOrErr(err error) inboundMsg {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return inboundMsg{eof: true}
	}
	return inboundMsg{err: err}
}

// dispatch routes one decoded frame to the in-flight map or the event
// subscribers.
func (c *Channel) dispatch(f inboundFrame) {
	if !f.Solicited {
		c.dispatchUnsol(f)
		return
	}
	c.dispatchResp(f)
}

func (c *Channel) dispatchUnsol(f inboundFrame) {
	c.logUnsol(f.Code, f.Data)
	c.metrics.unsolicited.WithLabelValues(strconv.FormatUint(uint64(f.Code), 10)).Inc()
	if f.Code == connectedEventCode {
		c.handleConnected(f.Data)
	}
	c.ev.fire(SignalUnsolEvent, f.Code, &UnsolEvent{Code: f.Code, Data: f.Data})
}

// handleConnected parses the CONNECTED event payload (u32 count=1, u32
// version) and unlocks outbound writes.
func (c *Channel) handleConnected(data []byte) {
	if len(data) < 8 {
		return
	}
	count := binary.NativeEndian.Uint32(data[0:4])
	if count != 1 {
		return
	}
	version := binary.NativeEndian.Uint32(data[4:8])
	c.rilVersion = version
	c.connected = true
	c.ev.fire(SignalConnected, 0, nil)
	c.tryFlush()
}

func (c *Channel) dispatchResp(f inboundFrame) {
	c.logResp(f.ID, f.Status, f.Data)
	req, ok := c.inflight[f.ID]
	if !ok {
		// Unknown response id: a late reply to an already-cancelled
		// request. Silently ignored.
		return
	}
	c.removeInFlight(req)
	req.setStatus(StatusDone)
	c.metrics.responses.WithLabelValues(statusClass(f.Status)).Inc()
	req.fire(ResponseStatus(f.Status), f.Data)
	req.release()
}

// removeInFlight drops req from the in-flight map, the deadline heap, and
// its Queue, re-arming the deadline timer. Shared by normal dispatch,
// cancellation, and timeout firing.
func (c *Channel) removeInFlight(req *Request) {
	if !req.inFlight {
		return
	}
	delete(c.inflight, req.ID())
	req.inFlight = false
	c.metrics.inFlightGauge.Dec()
	if req.deadline != 0 {
		c.dl.remove(req)
		req.deadline = 0
		c.dl.rearm(mono.NanoTime())
	}
	req.removeFromQueue()
}

// fireTimeouts runs at the deadline timer's wakeup: snapshot every expired
// entry, then re-check each one's presence before notifying, since a
// victim's own callback may have already cancelled a later victim in the
// same snapshot.
func (c *Channel) fireTimeouts() {
	now := mono.NanoTime()
	victims := c.dl.expired(now)
	for _, req := range victims {
		if !req.inFlight || req.deadline == 0 || req.deadline >= now {
			continue
		}
		c.removeInFlight(req)
		req.setStatus(StatusDone)
		c.metrics.timeouts.Inc()
		req.fire(StatusTimeout, nil)
		req.release()
	}
	c.dl.forceRearm(mono.NanoTime())
	debug.Assert(c.dl.pending == c.dl.min())
}

func statusClass(status int32) string {
	switch {
	case status == 0:
		return "ok"
	case status > 0:
		return "peer_error"
	default:
		return "other"
	}
}
