// Package parcel implements the request payload builder and response parser.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package parcel

import (
	"unicode/utf16"

	"github.com/pkg/errors"
)

// ErrShortData is returned when a Reader is asked for more bytes than remain.
var ErrShortData = errors.New("parcel: short data")

// Reader walks a response payload, reading the same primitives Writer
// appends, in order.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data (the response payload, i.e. a frame body with its
// header already stripped) for sequential reading.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// AtEnd reports whether every byte has been consumed.
func (r *Reader) AtEnd() bool { return r.pos >= len(r.data) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// GetByte reads one byte.
func (r *Reader) GetByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortData
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// GetUint32 reads a native-endian 32-bit word.
func (r *Reader) GetUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrShortData
	}
	v := nativeEndianUint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// GetInt32 reads a native-endian 32-bit signed word.
func (r *Reader) GetInt32() (int32, error) {
	v, err := r.GetUint32()
	return int32(v), err
}

// GetBytes reads n raw bytes verbatim.
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrShortData
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// GetUTF8 reads a length-prefixed UTF-16 string, returning (nil, nil) for
// the null-string encoding (length == -1) and a non-nil pointer to a
// (possibly empty) string otherwise.
func (r *Reader) GetUTF8() (*string, error) {
	if r.pos+4 > len(r.data) {
		return nil, ErrShortData
	}
	length := int32(nativeEndianUint32(r.data[r.pos : r.pos+4]))
	if length == -1 {
		r.pos += 4
		return nil, nil
	}
	if length < 0 {
		return nil, errors.Errorf("parcel: invalid string length %d", length)
	}
	paddedLen := align4(int(length+1) * 2)
	if r.pos+4+paddedLen > len(r.data) {
		return nil, ErrShortData
	}
	unitsBytes := r.data[r.pos+4 : r.pos+4+int(length)*2]
	units := make([]uint16, length)
	for i := range units {
		units[i] = nativeEndianUint16(unitsBytes[i*2 : i*2+2])
	}
	r.pos += 4 + paddedLen
	s := string(utf16.Decode(units))
	return &s, nil
}

// SkipString advances past a string without decoding it, for callers that
// only need a subset of a response's fields.
func (r *Reader) SkipString() error {
	if r.pos+4 > len(r.data) {
		return ErrShortData
	}
	length := int32(nativeEndianUint32(r.data[r.pos : r.pos+4]))
	if length == -1 {
		r.pos += 4
		return nil
	}
	if length < 0 {
		return errors.Errorf("parcel: invalid string length %d", length)
	}
	paddedLen := align4(int(length+1) * 2)
	if r.pos+4+paddedLen > len(r.data) {
		return ErrShortData
	}
	r.pos += 4 + paddedLen
	return nil
}

// SkipInt32 advances past one native-endian 32-bit word without decoding it.
func (r *Reader) SkipInt32() error {
	if r.pos+4 > len(r.data) {
		return ErrShortData
	}
	r.pos += 4
	return nil
}

func nativeEndianUint32(b []byte) uint32 {
	var a [4]byte
	copy(a[:], b)
	return uint32FromNative(a)
}

func nativeEndianUint16(b []byte) uint16 {
	var a [2]byte
	copy(a[:], b)
	return uint16FromNative(a)
}
