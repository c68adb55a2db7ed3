//go:build !mono

// Package mono provides a monotonic clock for deadline arithmetic.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic nanosecond timestamp, stable for the
// lifetime of the process. Not comparable across processes.
func NanoTime() int64 { return int64(time.Since(start)) }
