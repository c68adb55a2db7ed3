// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ikravets/rilio"
	"github.com/ikravets/rilio/internal/looptest"
	"github.com/ikravets/rilio/internal/parcel"
)

const (
	testSubTag  = "SUB0"
	opBaseband  = 51
	testVersion = 10
)

// brokenWriteConn simulates a peer whose socket has been shut down for
// read-write: once broken, every write fails the way a dead socket does,
// while reads just never yield more data.
type brokenWriteConn struct {
	net.Conn
	broken atomic.Bool
}

func (c *brokenWriteConn) Write(p []byte) (int, error) {
	if c.broken.Load() {
		return 0, errors.New("write: broken pipe")
	}
	return c.Conn.Write(p)
}

// env wires a Channel to an in-process loopback server: the server half
// runs a drain goroutine that acknowledges the subscription tag and buffers
// every outbound request frame for the test body to inspect.
type env struct {
	ch     *rilio.Channel
	srv    *looptest.Server
	conn   *brokenWriteConn
	reqs   chan looptest.Request
	cancel context.CancelFunc
	served chan struct{}
}

func startEnv() *env {
	pipe, srv := looptest.NewPair()
	conn := &brokenWriteConn{Conn: pipe}
	e := &env{srv: srv, conn: conn, reqs: make(chan looptest.Request, 16)}
	go func() {
		if _, err := srv.ReadSubTag(); err != nil {
			return
		}
		for {
			r, err := srv.ReadRequest()
			if err != nil {
				return
			}
			e.reqs <- r
		}
	}()
	ch, err := rilio.NewFromConn(conn, testSubTag, true)
	Expect(err).NotTo(HaveOccurred())
	e.ch = ch

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.served = make(chan struct{})
	go func() {
		defer close(e.served)
		_ = ch.Serve(ctx)
	}()
	return e
}

// connect performs the CONNECTED handshake and waits for the Channel to
// observe it.
func (e *env) connect() {
	Expect(e.srv.SendConnected(testVersion)).To(Succeed())
	Eventually(e.ch.Connected).Should(BeTrue())
}

// breakWrites makes every subsequent write on the client conn fail, the
// observable effect of the peer shutting its socket down for read-write.
func (e *env) breakWrites() { e.conn.broken.Store(true) }

func (e *env) stop() {
	e.cancel()
	Eventually(e.served).Should(BeClosed())
	_ = e.ch.Close()
}

func wideString(s string) []byte {
	w := parcel.NewWriter(nil)
	w.AppendUTF8(s)
	return w.Bytes()
}

var _ = Describe("Channel", func() {
	var e *env

	BeforeEach(func() { e = startEnv() })
	AfterEach(func() { e.stop() })

	Describe("connected handshake", func() {
		It("should mark the channel connected and fire CONNECTED exactly once", func() {
			connectedFired := make(chan struct{}, 4)
			unsolFired := make(chan uint32, 4)
			e.ch.Subscribe(rilio.SignalConnected, 0, func(any) {
				connectedFired <- struct{}{}
			})
			e.ch.Subscribe(rilio.SignalUnsolEvent, 1034, func(args any) {
				unsolFired <- args.(*rilio.UnsolEvent).Code
			})

			Expect(e.ch.Connected()).To(BeFalse())
			e.connect()

			Expect(e.ch.RilVersion()).To(Equal(uint32(testVersion)))
			Eventually(connectedFired).Should(Receive())
			Consistently(connectedFired).ShouldNot(Receive())
			Eventually(unsolFired).Should(Receive(Equal(uint32(1034))))
		})

		It("should hold queued requests until connected, then flush in order", func() {
			e.ch.SetDefaultTimeout(rilio.TimeoutNone)
			id1, err := e.ch.Submit(rilio.NewRequest(opBaseband))
			Expect(err).NotTo(HaveOccurred())
			id2, err := e.ch.Submit(rilio.NewRequest(opBaseband + 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(id2).To(BeNumerically(">", id1))
			Consistently(e.reqs).ShouldNot(Receive())

			e.connect()
			var r1, r2 looptest.Request
			Eventually(e.reqs).Should(Receive(&r1))
			Eventually(e.reqs).Should(Receive(&r2))
			Expect(r1.ID).To(Equal(id1))
			Expect(r2.ID).To(Equal(id2))
		})
	})

	Describe("request/response", func() {
		BeforeEach(func() { e.connect() })

		It("should deliver the peer's status and payload to the response callback", func() {
			type result struct {
				status rilio.ResponseStatus
				data   []byte
			}
			results := make(chan result, 1)
			released := make(chan struct{}, 1)

			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(status rilio.ResponseStatus, data []byte) {
				results <- result{status, append([]byte(nil), data...)}
			})
			req.SetOnRelease(func() { released <- struct{}{} })
			id, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeZero())

			var wire looptest.Request
			Eventually(e.reqs).Should(Receive(&wire))
			Expect(wire.Code).To(Equal(uint32(opBaseband)))
			Expect(wire.ID).To(Equal(id))
			Expect(wire.Payload).To(BeEmpty())

			Expect(e.srv.SendResponse(id, 0, wideString("UNIT_TEST"))).To(Succeed())

			var res result
			Eventually(results).Should(Receive(&res))
			Expect(res.status).To(Equal(rilio.StatusOK))
			got, err := parcel.NewReader(res.data).GetUTF8()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(*got).To(Equal("UNIT_TEST"))
			Eventually(released).Should(Receive())
			Expect(req.Status()).To(Equal(rilio.StatusDone))
		})

		It("should silently ignore a response with an unknown id", func() {
			Expect(e.srv.SendResponse(9999, 0, nil)).To(Succeed())

			results := make(chan rilio.ResponseStatus, 1)
			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(status rilio.ResponseStatus, _ []byte) { results <- status })
			id, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())
			Eventually(e.reqs).Should(Receive())
			Expect(e.srv.SendResponse(id, 0, nil)).To(Succeed())
			Eventually(results).Should(Receive(Equal(rilio.StatusOK)))
		})

		It("should reject resubmission of a non-NEW request with id 0", func() {
			req := rilio.NewRequest(opBaseband)
			id, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeZero())
			again, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeZero())
		})
	})

	Describe("queue cancellation", func() {
		BeforeEach(func() { e.connect() })

		It("should cancel only the queue's own members", func() {
			statusesA := make(chan rilio.ResponseStatus, 1)
			statusesB := make(chan rilio.ResponseStatus, 4)

			qa, qb := rilio.NewQueue(), rilio.NewQueue()
			reqA := rilio.NewRequest(opBaseband)
			reqA.SetResponse(func(status rilio.ResponseStatus, _ []byte) { statusesA <- status })
			idA, err := qa.Submit(e.ch, reqA)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 4; i++ {
				req := rilio.NewRequest(opBaseband)
				req.SetResponse(func(status rilio.ResponseStatus, _ []byte) { statusesB <- status })
				_, err := qb.Submit(e.ch, req)
				Expect(err).NotTo(HaveOccurred())
			}
			for i := 0; i < 5; i++ {
				Eventually(e.reqs).Should(Receive())
			}

			qb.CancelAll(e.ch, true)
			for i := 0; i < 4; i++ {
				Eventually(statusesB).Should(Receive(Equal(rilio.StatusCancel)))
			}
			Consistently(statusesB).ShouldNot(Receive())
			Consistently(statusesA).ShouldNot(Receive())

			Expect(e.srv.SendResponse(idA, 0, nil)).To(Succeed())
			Eventually(statusesA).Should(Receive(Equal(rilio.StatusOK)))
		})

		It("should refuse to cancel an id belonging to another queue", func() {
			qa, qb := rilio.NewQueue(), rilio.NewQueue()
			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(rilio.ResponseStatus, []byte) {})
			id, err := qa.Submit(e.ch, req)
			Expect(err).NotTo(HaveOccurred())
			Eventually(e.reqs).Should(Receive())

			Expect(qb.Cancel(e.ch, id, true)).To(BeFalse())
			Expect(qa.Cancel(e.ch, id, true)).To(BeTrue())
		})

		It("should sever membership on release without cancelling", func() {
			statuses := make(chan rilio.ResponseStatus, 1)
			q := rilio.NewQueue()
			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(status rilio.ResponseStatus, _ []byte) { statuses <- status })
			id, err := q.Submit(e.ch, req)
			Expect(err).NotTo(HaveOccurred())
			Eventually(e.reqs).Should(Receive())

			q.Release(e.ch)
			Consistently(statuses).ShouldNot(Receive())

			Expect(e.srv.SendResponse(id, 0, nil)).To(Succeed())
			Eventually(statuses).Should(Receive(Equal(rilio.StatusOK)))
		})
	})

	Describe("timeouts", func() {
		It("should time out a defaulted request but not an infinite one", func() {
			e.ch.SetDefaultTimeout(10)
			e.connect()

			statuses1 := make(chan rilio.ResponseStatus, 2)
			statuses2 := make(chan rilio.ResponseStatus, 2)

			r1 := rilio.NewRequest(opBaseband)
			r1.SetResponse(func(status rilio.ResponseStatus, _ []byte) { statuses1 <- status })
			_, err := e.ch.Submit(r1)
			Expect(err).NotTo(HaveOccurred())

			r2 := rilio.NewRequest(opBaseband)
			r2.SetTimeout(rilio.TimeoutNone)
			r2.SetResponse(func(status rilio.ResponseStatus, _ []byte) { statuses2 <- status })
			id2, err := e.ch.Submit(r2)
			Expect(err).NotTo(HaveOccurred())

			Eventually(e.reqs).Should(Receive())
			Eventually(e.reqs).Should(Receive())

			Eventually(statuses1, "2s").Should(Receive(Equal(rilio.StatusTimeout)))
			Consistently(statuses1).ShouldNot(Receive())
			Consistently(statuses2, "50ms").ShouldNot(Receive())

			Expect(e.ch.Cancel(id2, true)).To(BeTrue())
			Eventually(statuses2).Should(Receive(Equal(rilio.StatusCancel)))
		})
	})

	Describe("cancellation", func() {
		BeforeEach(func() { e.connect() })

		It("should fire the callback with CANCELLED before Cancel returns", func() {
			fired := false
			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(status rilio.ResponseStatus, _ []byte) {
				Expect(status).To(Equal(rilio.StatusCancel))
				fired = true
			})
			id, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())
			Eventually(e.reqs).Should(Receive())

			Expect(e.ch.Cancel(id, true)).To(BeTrue())
			Expect(fired).To(BeTrue())
			Expect(req.Status()).To(Equal(rilio.StatusCancelled))
		})

		It("should return false for an unknown id", func() {
			Expect(e.ch.Cancel(4242, true)).To(BeFalse())
		})

		It("should never invoke callbacks again after CancelAll", func() {
			statuses := make(chan rilio.ResponseStatus, 8)
			var ids []uint32
			for i := 0; i < 3; i++ {
				req := rilio.NewRequest(opBaseband)
				req.SetResponse(func(status rilio.ResponseStatus, _ []byte) { statuses <- status })
				id, err := e.ch.Submit(req)
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, id)
				Eventually(e.reqs).Should(Receive())
			}

			e.ch.CancelAll(true)
			for i := 0; i < 3; i++ {
				Eventually(statuses).Should(Receive(Equal(rilio.StatusCancel)))
			}

			for _, id := range ids {
				Expect(e.srv.SendResponse(id, 0, nil)).To(Succeed())
			}
			Consistently(statuses).ShouldNot(Receive())
		})
	})

	Describe("framing violations", func() {
		BeforeEach(func() { e.connect() })

		It("should emit ERROR with an invalid-data kind on a short body and shut down", func() {
			errs := make(chan *rilio.SignalError, 1)
			e.ch.Subscribe(rilio.SignalErrorSignal, 0, func(args any) {
				errs <- args.(*rilio.SignalError)
			})

			Expect(e.srv.SendRaw([]byte{0xff, 0xff})).To(Succeed())

			var sigErr *rilio.SignalError
			Eventually(errs).Should(Receive(&sigErr))
			Expect(sigErr.Phase).To(Equal(rilio.PhaseInvalidData))
			Eventually(e.ch.Connected).Should(BeFalse())
		})
	})

	Describe("peer shutdown", func() {
		It("should emit ERROR with a write kind when a submit hits a dead socket", func() {
			e.connect()
			errs := make(chan *rilio.SignalError, 1)
			e.ch.Subscribe(rilio.SignalErrorSignal, 0, func(args any) {
				errs <- args.(*rilio.SignalError)
			})

			e.breakWrites()
			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(rilio.ResponseStatus, []byte) {})
			_, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())

			var sigErr *rilio.SignalError
			Eventually(errs).Should(Receive(&sigErr))
			Expect(sigErr.Phase).To(Equal(rilio.PhaseWrite))
			Eventually(e.ch.Connected).Should(BeFalse())
		})

		It("should emit EOF and shut down when the peer closes the stream", func() {
			e.connect()
			eofFired := make(chan struct{}, 1)
			e.ch.Subscribe(rilio.SignalEOF, 0, func(any) { eofFired <- struct{}{} })

			Expect(e.srv.Close()).To(Succeed())
			Eventually(eofFired).Should(Receive())
			Eventually(e.ch.Connected).Should(BeFalse())
		})
	})

	Describe("event subscribers", func() {
		BeforeEach(func() { e.connect() })

		It("should route unsolicited events by code, with code 0 as catch-all", func() {
			only7 := make(chan uint32, 4)
			all := make(chan uint32, 4)
			e.ch.Subscribe(rilio.SignalUnsolEvent, 7, func(args any) {
				only7 <- args.(*rilio.UnsolEvent).Code
			})
			e.ch.Subscribe(rilio.SignalUnsolEvent, 0, func(args any) {
				all <- args.(*rilio.UnsolEvent).Code
			})

			Expect(e.srv.SendUnsol(7, []byte{1, 2, 3})).To(Succeed())
			Expect(e.srv.SendUnsol(8, nil)).To(Succeed())

			Eventually(only7).Should(Receive(Equal(uint32(7))))
			Eventually(all).Should(Receive(Equal(uint32(7))))
			Eventually(all).Should(Receive(Equal(uint32(8))))
			Consistently(only7).ShouldNot(Receive())
		})

		It("should tolerate a subscriber detaching itself mid-dispatch", func() {
			fired := make(chan struct{}, 4)
			var handle uint32
			handle = e.ch.Subscribe(rilio.SignalUnsolEvent, 7, func(any) {
				e.ch.Unsubscribe(handle)
				fired <- struct{}{}
			})

			Expect(e.srv.SendUnsol(7, nil)).To(Succeed())
			Eventually(fired).Should(Receive())
			Expect(e.srv.SendUnsol(7, nil)).To(Succeed())
			Consistently(fired).ShouldNot(Receive())
		})
	})

	Describe("loggers", func() {
		BeforeEach(func() { e.connect() })

		It("should log REQ, RESP and UNSOL lines and honor RemoveLogger", func() {
			type line struct {
				dir  rilio.LogDirection
				id   uint32
				code uint32
			}
			lines := make(chan line, 8)
			lid := e.ch.AddLogger(func(dir rilio.LogDirection, id, code uint32, _ []byte) {
				lines <- line{dir, id, code}
			})
			Expect(lid).NotTo(BeZero())

			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(rilio.ResponseStatus, []byte) {})
			id, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())
			Eventually(e.reqs).Should(Receive())
			Expect(e.srv.SendResponse(id, 0, nil)).To(Succeed())
			Expect(e.srv.SendUnsol(7, nil)).To(Succeed())

			Eventually(lines).Should(Receive(Equal(line{rilio.LogReq, id, opBaseband})))
			Eventually(lines).Should(Receive(Equal(line{rilio.LogResp, id, 0})))
			Eventually(lines).Should(Receive(Equal(line{rilio.LogUnsol, 0, 7})))

			e.ch.RemoveLogger(lid)
			Expect(e.srv.SendUnsol(7, nil)).To(Succeed())
			Consistently(lines).ShouldNot(Receive())
		})
	})

	Describe("reentrant callbacks", func() {
		BeforeEach(func() { e.connect() })

		It("should allow a response callback to submit and cancel requests", func() {
			inner := make(chan rilio.ResponseStatus, 1)
			req := rilio.NewRequest(opBaseband)
			req.SetResponse(func(rilio.ResponseStatus, []byte) {
				follow := rilio.NewRequest(opBaseband + 1)
				follow.SetResponse(func(status rilio.ResponseStatus, _ []byte) { inner <- status })
				id, err := e.ch.Submit(follow)
				Expect(err).NotTo(HaveOccurred())
				Expect(e.ch.Cancel(id, true)).To(BeTrue())
			})
			id, err := e.ch.Submit(req)
			Expect(err).NotTo(HaveOccurred())
			Eventually(e.reqs).Should(Receive())

			Expect(e.srv.SendResponse(id, 0, nil)).To(Succeed())
			Eventually(inner).Should(Receive(Equal(rilio.StatusCancel)))
		})
	})
})

var _ = Describe("FromSocketPath", func() {
	It("should return a nil channel for a path that is not a socket", func() {
		ch, err := rilio.FromSocketPath("/tmp", testSubTag)
		Expect(err).To(HaveOccurred())
		Expect(ch).To(BeNil())
	})
})

var _ = Describe("NewFromConn", func() {
	It("should reject a subscription tag that is not exactly 4 bytes", func() {
		conn, srv := looptest.NewPair()
		defer srv.Close()
		ch, err := rilio.NewFromConn(conn, "TOOLONG", true)
		Expect(err).To(HaveOccurred())
		Expect(ch).To(BeNil())
	})
})
