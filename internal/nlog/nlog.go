// Package nlog is the library's own leveled operational logger, separate
// from the public per-Channel logger list (see Channel.AddLogger). It exists
// for the small amount of diagnostic chatter the engine itself needs to
// produce (unknown logger id removed, transport errors, EOF) and is
// never on the hot path.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects all nlog output; passing nil restores os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

func log(sev severity, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	ts := time.Now().Format("15:04:05.000000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(out, "%s %c %s\n", ts, "IWE"[sev], msg)
}

func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }
