//go:build mono

// Package mono provides a monotonic clock for deadline arithmetic.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package mono

import (
	_ "unsafe" // for go:linkname
)

// NanoTime returns runtime.nanotime directly, skipping the allocation-free
// but slightly heavier time.Now()/time.Since() path. Opt in with -tags mono
// on platforms where the linkname is known to resolve.
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64
