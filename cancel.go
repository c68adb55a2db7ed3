// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

// Cancel cancels the Request with the given id wherever it currently lives:
// mid-send, queued in the FIFO, or awaiting a response. If notify is
// true and the Request has a response callback, that callback fires
// synchronously with StatusCancel before Cancel returns. Returns whether a
// matching Request was found.
func (c *Channel) Cancel(id uint32, notify bool) bool {
	var found bool
	c.dispatchSync(func() { found = c.cancelLocked(id, notify) })
	return found
}

func (c *Channel) cancelLocked(id uint32, notify bool) bool {
	if c.sendReq != nil && c.sendReq.ID() == id {
		req := c.sendReq
		req.setStatus(StatusCancelled)
		req.removeFromQueue()
		c.removeInFlight(req)
		c.metrics.cancellations.Inc()
		if notify {
			req.fire(StatusCancel, nil)
		}
		// req stays the in-progress send; completeSend observes
		// StatusCancelled once the write finishes and skips re-notifying.
		return true
	}

	for e := c.fifo.Front(); e != nil; e = e.Next() {
		req := e.Value.(*Request)
		if req.ID() != id {
			continue
		}
		c.fifo.Remove(e)
		req.fifoElem = nil
		req.removeFromQueue()
		c.removeInFlight(req)
		req.setStatus(StatusCancelled)
		c.metrics.cancellations.Inc()
		if notify {
			req.fire(StatusCancel, nil)
		}
		req.release()
		return true
	}

	if req, ok := c.inflight[id]; ok {
		c.removeInFlight(req)
		req.setStatus(StatusCancelled)
		c.metrics.cancellations.Inc()
		if notify {
			req.fire(StatusCancel, nil)
		}
		req.release()
		return true
	}

	return false
}

// CancelAll cancels every Request currently known to the Channel: the
// in-progress send (if any), then the FIFO head-first (insertion order),
// then the in-flight map (unspecified order). Any pending deadline timer
// is stopped afterward.
func (c *Channel) CancelAll(notify bool) {
	c.dispatchSync(func() { c.cancelAllLocked(notify) })
}

func (c *Channel) cancelAllLocked(notify bool) {
	if c.sendReq != nil {
		c.cancelLocked(c.sendReq.ID(), notify)
	}

	for e := c.fifo.Front(); e != nil; {
		next := e.Next()
		req := e.Value.(*Request)
		c.fifo.Remove(e)
		req.fifoElem = nil
		req.removeFromQueue()
		c.removeInFlight(req)
		req.setStatus(StatusCancelled)
		c.metrics.cancellations.Inc()
		if notify {
			req.fire(StatusCancel, nil)
		}
		req.release()
		e = next
	}

	for _, req := range snapshotInFlight(c.inflight) {
		c.removeInFlight(req)
		req.setStatus(StatusCancelled)
		c.metrics.cancellations.Inc()
		if notify {
			req.fire(StatusCancel, nil)
		}
		req.release()
	}

	c.dl.stop()
}

func snapshotInFlight(m map[uint32]*Request) []*Request {
	out := make([]*Request, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}
