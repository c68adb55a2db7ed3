// rilio-cli is a small command-line driver: it connects a Channel to a
// unix-domain socket, waits for the CONNECTED event, sends one request and
// prints the response. Pair it with rilio-loopback for an end-to-end check
// without real hardware.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ikravets/rilio"
	"github.com/ikravets/rilio/internal/hexdump"
	"github.com/ikravets/rilio/internal/parcel"
)

func main() {
	var (
		sock    = flag.String("socket", "/tmp/rilio-loopback.sock", "unix socket path to connect to")
		tag     = flag.String("tag", "SUB0", "4-byte subscription tag")
		code    = flag.Uint("code", 51, "request opcode to send")
		arg     = flag.String("arg", "", "optional string argument appended to the request")
		timeout = flag.Int64("timeout", 5000, "response timeout, ms (0 = infinite)")
		verbose = flag.Bool("v", false, "hex-dump all traffic")
	)
	flag.Parse()

	ch, err := rilio.FromSocketPath(*sock, *tag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rilio-cli: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()
	ch.SetDefaultTimeout(*timeout)
	if *verbose {
		ch.AddLogger(rilio.DefaultLogger(hexdump.LevelAll, os.Stderr))
	}

	done := make(chan int, 1)
	ch.Subscribe(rilio.SignalConnected, 0, func(any) {
		fmt.Printf("connected, peer version %d\n", ch.RilVersion())

		req := rilio.NewRequest(uint32(*code))
		if *arg != "" {
			req.AppendUTF8(*arg)
		}
		req.SetResponse(func(status rilio.ResponseStatus, data []byte) {
			defer func() { done <- statusExitCode(status) }()
			if status != rilio.StatusOK {
				fmt.Printf("request failed: status %d\n", status)
				return
			}
			s, err := parcel.NewReader(data).GetUTF8()
			switch {
			case err != nil:
				fmt.Printf("response (%d bytes, not a string)\n", len(data))
			case s == nil:
				fmt.Println("response: (null)")
			default:
				fmt.Printf("response: %s\n", *s)
			}
		})
		if _, err := ch.Submit(req); err != nil {
			fmt.Fprintf(os.Stderr, "rilio-cli: %v\n", err)
			done <- 1
		}
	})
	ch.Subscribe(rilio.SignalErrorSignal, 0, func(args any) {
		fmt.Fprintf(os.Stderr, "rilio-cli: %v\n", args.(*rilio.SignalError))
		done <- 1
	})
	ch.Subscribe(rilio.SignalEOF, 0, func(any) {
		fmt.Fprintln(os.Stderr, "rilio-cli: connection closed by peer")
		done <- 1
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = ch.Serve(ctx)
	}()
	code2 := <-done
	cancel()
	os.Exit(code2)
}

func statusExitCode(status rilio.ResponseStatus) int {
	if status == rilio.StatusOK {
		return 0
	}
	return 1
}
