// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import "encoding/binary"

const (
	// lenPrefixLen is the size of the big-endian length prefix that precedes
	// every frame body, inbound and outbound.
	lenPrefixLen = 4
	// headerLen is the size of the outbound per-request header reserved at
	// the front of a Request's buffer: length prefix, opcode, id.
	headerLen = 12
	// maxBodyLen is the largest inbound body the Channel accepts.
	maxBodyLen = 32768
	// subscriptionTagLen is the fixed size of the one-shot connection prologue.
	subscriptionTagLen = 4
	// respHeaderLen is the size of a solicited response's id+status header,
	// i.e. body[4:12] once the type word is stripped.
	respHeaderLen = 8
	// unsolHeaderLen is the size of an unsolicited event's reserved word,
	// i.e. body[4:8] once the type word is stripped.
	unsolHeaderLen = 4
)

// encodeHeader writes the 12-byte outbound header into buf[0:headerLen]:
// the big-endian length of everything after the length field itself
// (opcode + id + payload), followed by opcode and id as native-endian
// 32-bit words. buf must already hold the full frame (header ⨁ payload).
func encodeHeader(buf []byte, code, id uint32) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)-lenPrefixLen))
	binary.NativeEndian.PutUint32(buf[4:8], code)
	binary.NativeEndian.PutUint32(buf[8:12], id)
}

// decodeLength reads the big-endian 32-bit length prefix.
func decodeLength(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// inboundFrame is the decoded shape of one frame body, with the length
// prefix already stripped.
type inboundFrame struct {
	Solicited bool
	ID        uint32
	Status    int32
	Code      uint32
	Data      []byte // payload (solicited) or data slice (unsolicited)
}

// decodeBody parses a frame body: the first 4 bytes, read native-endian,
// are the type word. Zero means a solicited response (id, status, then
// payload); non-zero means an unsolicited event whose code is the type
// word itself (a reserved word, then the data slice).
func decodeBody(body []byte) (inboundFrame, error) {
	if len(body) < lenPrefixLen {
		return inboundFrame{}, ErrShortHeader
	}
	typ := binary.NativeEndian.Uint32(body[0:4])
	if typ == 0 {
		if len(body) < lenPrefixLen+respHeaderLen {
			return inboundFrame{}, ErrShortHeader
		}
		id := binary.NativeEndian.Uint32(body[4:8])
		status := int32(binary.NativeEndian.Uint32(body[8:12]))
		return inboundFrame{
			Solicited: true,
			ID:        id,
			Status:    status,
			Data:      body[12:],
		}, nil
	}
	if len(body) < lenPrefixLen+unsolHeaderLen {
		return inboundFrame{}, ErrShortHeader
	}
	return inboundFrame{
		Solicited: false,
		Code:      typ,
		Data:      body[8:],
	}, nil
}
