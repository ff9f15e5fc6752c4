// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/luxfi/relay/pkg/broadcast"
	"github.com/luxfi/relay/pkg/config"
	"github.com/luxfi/relay/pkg/logger"
	"github.com/luxfi/relay/pkg/transport"
)

// Server binds the listener and runs one Session per accepted connection.
// All sessions share the one bus handle; nothing else is shared.
type Server struct {
	listen config.Address
	bus    broadcast.Bus

	ln     transport.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
	seq    atomic.Uint64
	closed atomic.Bool
	done   chan error
}

// NewServer creates a server for the given bind address and bus. The bus
// lifetime is the caller's responsibility; it usually outlives the server.
func NewServer(listen config.Address, bus broadcast.Bus) *Server {
	return &Server{
		listen: listen,
		bus:    bus,
		done:   make(chan error, 1),
	}
}

// Start binds the listener and launches the accept loop. A bind fault is
// returned immediately; it is fatal at startup.
func (s *Server) Start(ctx context.Context) error {
	ln, err := transport.Bind(s.listen)
	if err != nil {
		return err
	}
	s.ln = ln

	ctx, s.cancel = context.WithCancel(ctx)
	logger.Info("listening", "socket", s.listen.String())

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Addr reports the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Done delivers the fatal accept fault, if one occurs. Transient accept
// faults never show up here.
func (s *Server) Done() <-chan error {
	return s.done
}

// Stop closes the listener, cancels every live session, and waits for them
// to release their transports.
func (s *Server) Stop() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		stream, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || s.closed.Load() {
				return
			}
			if transport.IsTransientAccept(err) {
				logger.Warn("transient accept fault", "err", err)
				continue
			}
			logger.Error("accept failed", err)
			s.done <- err
			return
		}

		id := mintIdentity(s.seq.Add(1), stream.RemoteAddr())
		logger.Info("client connected", "conn", id.Label(), "uid", id.UID, "remote", id.Remote.String())

		sess, err := newSession(id, stream, s.bus)
		if err != nil {
			// Subscribe only fails when the bus is gone, i.e. shutdown.
			logger.Error("session setup failed", err, "conn", id.Label())
			_ = stream.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.Run(ctx)
		}()
	}
}
