// Package looptest is an in-process loopback server speaking the channel
// wire format. It is used only by _test.go files and by
// cmd/rilio-loopback; production callers never import it.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package looptest

import (
	"encoding/binary"
	"io"
	"net"
)

// NewPair returns a connected pair: conn is the client-facing half to hand
// to rilio.NewFromConn, srv is the server-facing half this package's
// helpers read and write against.
func NewPair() (conn net.Conn, srv *Server) {
	client, server := net.Pipe()
	return client, &Server{conn: server}
}

// NewServer wraps an already-accepted connection (e.g. from a unix-domain
// listener) so cmd/rilio-loopback can speak the same wire format over a
// real socket.
func NewServer(conn net.Conn) *Server { return &Server{conn: conn} }

// Server is the server side of an in-process loopback pair.
type Server struct {
	conn net.Conn
}

// ReadSubTag reads the 4-byte subscription tag prologue a Channel writes
// before any request frame.
func (s *Server) ReadSubTag() (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(s.conn, b[:]); err != nil {
		return "", err
	}
	return string(b[:]), nil
}

// Request is one decoded outbound frame as the server sees it.
type Request struct {
	Code    uint32
	ID      uint32
	Payload []byte
}

// ReadRequest reads one outbound request frame: big-endian length, then
// native-endian opcode and id, then the remaining payload.
func (s *Server) ReadRequest() (Request, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(s.conn, lenBuf[:]); err != nil {
		return Request{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	rest := make([]byte, n)
	if _, err := io.ReadFull(s.conn, rest); err != nil {
		return Request{}, err
	}
	code := binary.NativeEndian.Uint32(rest[0:4])
	id := binary.NativeEndian.Uint32(rest[4:8])
	return Request{Code: code, ID: id, Payload: rest[8:]}, nil
}

// SendResponse writes a solicited-response frame: type=0, id, status,
// then payload.
func (s *Server) SendResponse(id uint32, status int32, payload []byte) error {
	body := make([]byte, 12+len(payload))
	binary.NativeEndian.PutUint32(body[0:4], 0)
	binary.NativeEndian.PutUint32(body[4:8], id)
	binary.NativeEndian.PutUint32(body[8:12], uint32(status))
	copy(body[12:], payload)
	return s.writeFrame(body)
}

// SendUnsol writes an unsolicited-event frame: type=code, a reserved
// word, then data.
func (s *Server) SendUnsol(code uint32, data []byte) error {
	body := make([]byte, 8+len(data))
	binary.NativeEndian.PutUint32(body[0:4], code)
	binary.NativeEndian.PutUint32(body[4:8], 0)
	copy(body[8:], data)
	return s.writeFrame(body)
}

// SendConnected writes the distinguished CONNECTED event: code=1034,
// payload = u32 count=1, u32 version.
func (s *Server) SendConnected(version uint32) error {
	data := make([]byte, 8)
	binary.NativeEndian.PutUint32(data[0:4], 1)
	binary.NativeEndian.PutUint32(data[4:8], version)
	return s.SendUnsol(1034, data)
}

// SendRaw writes length-prefixed raw bytes as-is, for malformed-frame
// tests.
func (s *Server) SendRaw(body []byte) error { return s.writeFrame(body) }

func (s *Server) writeFrame(body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := s.conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := s.conn.Write(body)
	return err
}

// Close closes the server side of the pipe, causing the client Channel to
// observe EOF.
func (s *Server) Close() error { return s.conn.Close() }
