// Package parcel implements the request payload builder and response parser.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package parcel

import "encoding/binary"

// Intra-body words (opcode, id, status, string lengths/code units) are
// native-endian, no byte-swap: the peer is always local. Only the 4-byte
// outer frame length prefix (handled in the root package's frame.go) is
// big-endian.

func appendNative32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendNative16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func uint32FromNative(b [4]byte) uint32 { return binary.NativeEndian.Uint32(b[:]) }

func uint16FromNative(b [2]byte) uint16 { return binary.NativeEndian.Uint16(b[:]) }

func align4(n int) int { return (n + 3) &^ 3 }
