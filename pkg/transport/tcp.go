// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"errors"
	"io"
	"net"
)

// tcpListener adapts net.Listener to the Listener capability.
type tcpListener struct {
	ln net.Listener
}

func (l *tcpListener) Accept() (Stream, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return &tcpStream{conn: conn}, nil
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

// tcpStream wraps one TCP connection. net.Conn already supports one
// concurrent reader and one concurrent writer, so the halves are views of
// the same connection.
type tcpStream struct {
	conn net.Conn
}

func (s *tcpStream) Split() (io.Reader, io.Writer) {
	return s.conn, s.conn
}

func (s *tcpStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *tcpStream) Close() error {
	return s.conn.Close()
}
