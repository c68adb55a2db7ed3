// Package id generates short diagnostic identifiers used only in log lines
// (a default Channel name, a Request's debug name), never part of any
// wire-visible value.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package id

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

const abc = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	once sync.Once
	sid  *shortid.Shortid
	tie  atomic.Uint32
)

func generator() *shortid.Shortid {
	once.Do(func() {
		sid = shortid.MustNew(1, abc, uint64(time.Now().UnixNano()))
	})
	return sid
}

// New returns a short, human-readable id suitable for a Channel or Request
// name. Never empty, never returns an error: on the vanishingly unlikely
// generator failure it falls back to a fixed xxhash value offset by the
// tie-breaker counter, rendered in base 36.
func New() string {
	s, err := generator().Generate()
	if err != nil {
		h := xxhash.Checksum64(nil)
		return strconv.FormatUint(h+uint64(tie.Add(1)), 36)
	}
	return s
}
