// Package hexdump formats byte slices the way the Channel's default logger
// presents transmitted/received frames: one 16-byte row at a time, an offset
// prefix, and a printable-ASCII gutter.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package hexdump

import (
	"fmt"
	"strings"
)

// Level gates how much a registered logger actually prints.
type Level int

const (
	LevelNone   Level = iota // logger registered but silent
	LevelErrors              // only ERROR/EOF signals
	LevelAll                 // every REQ/RESP/UNSOL line
)

const hexDigits = "0123456789abcdef"

// Line renders one 16-byte row: hex columns (grouped 8/8) then the ASCII
// gutter.
func Line(data []byte) string {
	n := len(data)
	if n > 16 {
		n = 16
	}
	var b strings.Builder
	b.Grow(80)
	for i := 0; i < 16; i++ {
		if i > 0 {
			b.WriteByte(' ')
			if i == 8 {
				b.WriteByte(' ')
			}
		}
		if i < n {
			c := data[i]
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		} else {
			b.WriteString("  ")
		}
	}
	b.WriteString("    ")
	for i := 0; i < n; i++ {
		if i == 8 {
			b.WriteByte(' ')
		}
		c := data[i]
		if isPrint(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func isPrint(c byte) bool { return c >= 0x20 && c < 0x7f }

// Dump renders the full byte slice as one line per 16 bytes, each prefixed
// with "<prefix><dir> <offset>: "; dir is printed only on the first line
// and blanked on continuations.
func Dump(prefix string, dir byte, data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := make([]string, 0, (len(data)+15)/16)
	off := 0
	d := dir
	for off < len(data) {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		lines = append(lines, fmt.Sprintf("%s%c %04x: %s", prefix, d, off, Line(data[off:end])))
		off = end
		d = ' '
	}
	return lines
}
