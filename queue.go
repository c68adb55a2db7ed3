// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import "container/list"

// Queue is a secondary grouping of active Requests sharing a Channel:
// callers use it to cancel a whole batch of related requests at once. A
// Request belongs to at most one Queue at a time; membership is dropped as
// soon as the Request reaches a terminal status or is sent with no
// response callback (it can never be matched to a reply again).
type Queue struct {
	members list.List
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue { return &Queue{} }

// Submit hands req to ch for transmission, recording req's membership in q
// so a later q.CancelAll(...) reaches it. Membership is recorded before
// the request hits the FIFO, all in one step on ch's control goroutine, so
// not even an immediate response or cancellation can observe the request
// without its queue link.
func (q *Queue) Submit(ch *Channel, req *Request) (uint32, error) {
	if q == nil || ch == nil {
		return ch.Submit(req)
	}
	if ch.closed.Load() {
		return 0, ErrClosed
	}
	if req == nil {
		req = NewRequestCapacity(0, 0)
	}
	var id uint32
	ch.dispatchSync(func() {
		if req.Status() != StatusNew {
			return
		}
		q.add(req)
		id = ch.submitLocked(req)
	})
	return id, nil
}

// Cancel cancels the given id through ch, but only if it is currently a
// member of q; a request belonging to a different Queue (or none) is left
// alone. Membership and cancellation are checked and performed atomically
// on ch's control goroutine so a concurrent Submit/CancelAll can't race
// the check.
func (q *Queue) Cancel(ch *Channel, id uint32, notify bool) bool {
	if q == nil {
		return false
	}
	var found bool
	ch.dispatchSync(func() {
		for e := q.members.Front(); e != nil; e = e.Next() {
			if e.Value.(*Request).ID() == id {
				found = ch.cancelLocked(id, notify)
				return
			}
		}
	})
	return found
}

// CancelAll drains q's membership list, cancelling each Request through
// ch. Membership is snapshotted first since cancellation notifications may
// themselves mutate q.
func (q *Queue) CancelAll(ch *Channel, notify bool) {
	if q == nil {
		return
	}
	ch.dispatchSync(func() {
		for _, req := range q.snapshot() {
			ch.cancelLocked(req.ID(), notify)
		}
	})
}

// Release severs every member's back-reference to q without cancelling
// anything: the Requests remain known to the Channel and their callbacks
// still fire, but no bulk cancellation will ever reach them through this
// Queue again. ch is the Queue's owning Channel, needed only to serialize
// this mutation onto its control goroutine.
func (q *Queue) Release(ch *Channel) {
	if q == nil {
		return
	}
	ch.dispatchSync(func() {
		for e := q.members.Front(); e != nil; {
			next := e.Next()
			req := e.Value.(*Request)
			req.ownerQueue = nil
			req.queueElem = nil
			e = next
		}
		q.members.Init()
	})
}

func (q *Queue) add(req *Request) {
	if req.ownerQueue == q {
		return
	}
	req.removeFromQueue()
	req.queueElem = q.members.PushBack(req)
	req.ownerQueue = q
}

// removeFromQueue drops r from its Queue, if any. Safe to call redundantly.
func (r *Request) removeFromQueue() {
	if r.ownerQueue == nil {
		return
	}
	r.ownerQueue.members.Remove(r.queueElem)
	r.ownerQueue = nil
	r.queueElem = nil
}

// snapshot returns every Request currently in q, in submission order. The
// caller (CancelAll) must snapshot before it starts notifying, since
// notification callbacks may mutate q.
func (q *Queue) snapshot() []*Request {
	out := make([]*Request, 0, q.members.Len())
	for e := q.members.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Request))
	}
	return out
}
