// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import (
	"fmt"
	"io"
	"os"

	"github.com/ikravets/rilio/internal/hexdump"
)

// DefaultLogger builds a LoggerFunc that hex-dumps every REQ/RESP/UNSOL
// line to w (os.Stderr if nil) at the given verbosity. LevelNone registers
// a logger that prints nothing (useful as a placeholder handle);
// LevelErrors is reserved for callers who pair it with their own ERROR/EOF
// subscriber and skip REQ/RESP/UNSOL lines entirely; DefaultLogger itself
// only ever receives those three, so LevelErrors behaves identically to
// LevelNone here.
func DefaultLogger(level hexdump.Level, w io.Writer) LoggerFunc {
	if w == nil {
		w = os.Stderr
	}
	return func(dir LogDirection, id, code uint32, data []byte) {
		if level == hexdump.LevelNone || level == hexdump.LevelErrors {
			return
		}
		var prefix string
		switch dir {
		case LogReq:
			prefix = fmt.Sprintf("REQ  [%d] code=%d", id, code)
		case LogResp:
			prefix = fmt.Sprintf("RESP [%d] status=%d", id, int32(code))
		case LogUnsol:
			prefix = fmt.Sprintf("UNSOL code=%d", code)
		}
		fmt.Fprintln(w, prefix)
		for _, line := range hexdump.Dump("  ", '|', data) {
			fmt.Fprintln(w, line)
		}
	}
}
