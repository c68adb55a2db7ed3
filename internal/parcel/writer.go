// Package parcel implements the request payload builder and response parser
// for the primitive types carried inside frame bodies: bytes, native-endian
// 32-bit integers, and the length-prefixed UTF-16 string encoding.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package parcel

import (
	"fmt"
	"unicode/utf16"
)

// Writer appends primitives to a caller-owned byte buffer using the frame
// body's wire encoding. It has no buffer of its own; it grows whatever
// slice is handed to it, mirroring how a Request's own payload buffer is
// built up call by call.
type Writer struct {
	buf []byte
}

// NewWriter wraps buf (may be nil) for appending.
func NewWriter(buf []byte) *Writer { return &Writer{buf: buf} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// AppendByte appends a single byte.
func (w *Writer) AppendByte(b byte) { w.buf = append(w.buf, b) }

// AppendBytes appends a raw byte slice verbatim (no length prefix).
func (w *Writer) AppendBytes(p []byte) { w.buf = append(w.buf, p...) }

// AppendInt32 appends v as a native-endian 32-bit word.
func (w *Writer) AppendInt32(v int32) { w.AppendUint32(uint32(v)) }

// AppendUint32 appends v as a native-endian 32-bit word.
func (w *Writer) AppendUint32(v uint32) {
	w.buf = appendNative32(w.buf, v)
}

// AppendUTF8 appends s using the length-prefixed, NUL-terminated,
// 4-byte-padded UTF-16 wire encoding.
//
// AppendUTF8 encodes a non-null string; use AppendUTF8Null for pointer
// semantics (nil means null, "" means empty-non-null).
func (w *Writer) AppendUTF8(s string) { w.appendUTF8(&s) }

// AppendUTF8Null appends s, treating a nil pointer as the protocol's null
// string (length=-1) and a non-nil, possibly empty, string as present.
func (w *Writer) AppendUTF8Null(s *string) { w.appendUTF8(s) }

func (w *Writer) appendUTF8(s *string) {
	if s == nil {
		w.AppendInt32(-1)
		return
	}
	if *s == "" {
		// Empty non-null string: length=0, one zero code unit (the NUL
		// terminator), one 0xFFFF padding word.
		w.buf = appendNative32(w.buf, 0)
		w.buf = appendNative16(w.buf, 0)
		w.buf = appendNative16(w.buf, 0xffff)
		return
	}
	units := utf16.Encode([]rune(*s))
	n := len(units)
	w.AppendInt32(int32(n))
	for _, u := range units {
		w.buf = appendNative16(w.buf, u)
	}
	w.buf = appendNative16(w.buf, 0) // NUL terminator
	// pad (n+1) code units' worth of bytes up to a 4-byte boundary
	written := (n + 1) * 2
	padded := align4(written)
	for i := 0; i < padded-written; i++ {
		w.buf = append(w.buf, 0)
	}
}

// AppendFormat formats args per format and appends the result as a UTF-8
// string (see AppendUTF8).
func (w *Writer) AppendFormat(format string, args ...any) {
	w.AppendUTF8(fmt.Sprintf(format, args...))
}
