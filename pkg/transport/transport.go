// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport provides the stream transport capability the relay is
// built on: bind, accept, dial, and splitting a stream into independent
// read and write halves. One TCP provider exists today; the relay core only
// ever sees the interfaces here, so adding transports does not touch it.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/luxfi/relay/pkg/config"
)

var (
	ErrClosed      = errors.New("transport: listener closed")
	ErrUnsupported = errors.New("transport: unsupported network")
)

// Stream is one accepted or dialed connection.
type Stream interface {
	// Split returns the read and write halves of the stream. The halves
	// are independent: reading may block while another goroutine writes.
	Split() (io.Reader, io.Writer)

	// RemoteAddr reports the peer address, for logging only. Connection
	// identity is minted separately and never derived from it.
	RemoteAddr() net.Addr

	// Close closes both directions.
	Close() error
}

// Listener accepts incoming streams.
type Listener interface {
	// Accept blocks until the next connection arrives. It returns
	// ErrClosed after Close, and is safe to call again after a transient
	// accept fault.
	Accept() (Stream, error)

	Addr() net.Addr
	Close() error
}

// Bind reserves the listening socket for the given address.
func Bind(addr config.Address) (Listener, error) {
	switch addr.Network {
	case config.NetworkTCP:
		ln, err := net.Listen("tcp", addr.HostPort())
		if err != nil {
			return nil, err
		}
		return &tcpListener{ln: ln}, nil
	default:
		return nil, ErrUnsupported
	}
}

// Dial connects to a relay server. Used by the client command; the server
// never dials.
func Dial(ctx context.Context, addr config.Address) (Stream, error) {
	switch addr.Network {
	case config.NetworkTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr.HostPort())
		if err != nil {
			return nil, err
		}
		return &tcpStream{conn: conn}, nil
	default:
		return nil, ErrUnsupported
	}
}

// IsTransientAccept reports whether an accept fault concerns only the
// single connection being accepted (peer reset or aborted mid-handshake),
// so the accept loop should log and continue.
func IsTransientAccept(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENOTCONN)
}
