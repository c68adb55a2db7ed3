// rilio-loopback is a minimal test server: it listens on a unix-domain
// socket, speaks the channel wire format, and answers every request with a
// fixed wide-char string payload. Useful for exercising rilio-cli (or any
// Channel-based client) without real hardware on the other end.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ikravets/rilio/internal/looptest"
	"github.com/ikravets/rilio/internal/parcel"
)

func main() {
	var (
		sock    = flag.String("socket", "/tmp/rilio-loopback.sock", "unix socket path to listen on")
		version = flag.Uint("version", 10, "protocol version reported in the CONNECTED event")
		reply   = flag.String("reply", "LOOPBACK", "string payload returned for every request")
	)
	flag.Parse()

	_ = os.Remove(*sock)
	ln, err := net.Listen("unix", *sock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rilio-loopback: %v\n", err)
		os.Exit(1)
	}
	defer ln.Close()
	fmt.Printf("rilio-loopback: listening on %s\n", *sock)

	// One errgroup supervises the accept loop and every per-connection
	// server; an accept failure tears the whole process down, while a
	// single client's error only ends that client.
	var group errgroup.Group
	group.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			group.Go(func() error {
				serve(conn, uint32(*version), *reply)
				return nil
			})
		}
	})
	if err := group.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "rilio-loopback: %v\n", err)
		os.Exit(1)
	}
}

func serve(conn net.Conn, version uint32, reply string) {
	defer conn.Close()
	srv := looptest.NewServer(conn)

	tag, err := srv.ReadSubTag()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rilio-loopback: reading subscription tag: %v\n", err)
		return
	}
	fmt.Printf("rilio-loopback: client subscribed as %q\n", tag)

	if err := srv.SendConnected(version); err != nil {
		fmt.Fprintf(os.Stderr, "rilio-loopback: sending connected: %v\n", err)
		return
	}

	w := parcel.NewWriter(nil)
	w.AppendUTF8(reply)
	payload := w.Bytes()

	for {
		req, err := srv.ReadRequest()
		if err != nil {
			fmt.Printf("rilio-loopback: client gone: %v\n", err)
			return
		}
		fmt.Printf("rilio-loopback: request id=%d code=%d len=%d\n", req.ID, req.Code, len(req.Payload))
		if err := srv.SendResponse(req.ID, 0, payload); err != nil {
			fmt.Fprintf(os.Stderr, "rilio-loopback: sending response: %v\n", err)
			return
		}
	}
}
