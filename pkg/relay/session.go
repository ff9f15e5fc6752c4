// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/luxfi/relay/pkg/broadcast"
	"github.com/luxfi/relay/pkg/logger"
	"github.com/luxfi/relay/pkg/transport"
)

// State is the session lifecycle position.
type State int32

const (
	StateHandshake State = iota
	StateServing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateServing:
		return "serving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns one client connection end to end: login handshake, the
// serving loop, and teardown. It holds the shared bus publish handle and
// its own private subscription; nothing else is shared with other sessions.
//
// The serving loop waits on two event sources at once - the client's own
// inbound lines and the broadcast subscription - as two goroutines joined
// by a shared cancel signal. Whichever side fails or finishes first stops
// the other by closing the stream.
type Session struct {
	id     Identity
	stream transport.Stream
	bus    broadcast.Bus
	sub    broadcast.Subscription

	reader *bufio.Reader
	writer *bufio.Writer

	// writeMu serializes the two loops' writes to the shared write half.
	writeMu sync.Mutex

	state atomic.Int32
}

func newSession(id Identity, stream transport.Stream, bus broadcast.Bus) (*Session, error) {
	sub, err := bus.Subscribe()
	if err != nil {
		return nil, err
	}
	r, w := stream.Split()
	return &Session{
		id:     id,
		stream: stream,
		bus:    bus,
		sub:    sub,
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
	}, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the session until the client disconnects, an I/O fault occurs,
// or ctx is canceled. Faults close only this session.
func (s *Session) Run(ctx context.Context) {
	defer s.close()

	if err := s.write("LOGIN: " + s.id.Label() + "\n"); err != nil {
		logger.Error("login handshake failed", err, "conn", s.id.Label(), "uid", s.id.UID)
		return
	}
	s.state.Store(int32(StateServing))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A blocked read only returns once the stream is closed under it.
	go func() {
		<-ctx.Done()
		s.stream.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		s.relayLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		s.readLoop(ctx)
	}()
	wg.Wait()
}

// readLoop services the client's inbound lines: transform, publish, ack.
func (s *Session) readLoop(ctx context.Context) {
	for {
		line, err := s.reader.ReadString('\n')
		if line != "" {
			if werr := s.handleLine(line); werr != nil {
				if ctx.Err() == nil {
					logger.Error("ack write failed", werr, "conn", s.id.Label(), "uid", s.id.UID)
				}
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("client disconnected", "conn", s.id.Label(), "uid", s.id.UID)
			case ctx.Err() != nil:
				// Shutdown closed the stream under us.
			default:
				logger.Error("read failed", err, "conn", s.id.Label(), "uid", s.id.UID)
			}
			return
		}
	}
}

func (s *Session) handleLine(raw string) error {
	trimmed := strings.TrimSuffix(raw, "\n")
	logger.Debug("incoming line", "conn", s.id.Label(), "size", len(raw))

	outgoing := UppercaseTransform(trimmed)
	msg := broadcast.Message{
		Origin:  s.id.UID,
		From:    s.id.Label(),
		Payload: BuildBroadcastPayload(s.id.Label(), outgoing),
	}
	if err := s.bus.Publish(msg); err != nil {
		// Publish only fails when the bus is being torn down; the ack
		// below still goes out so the client sees consistent protocol.
		logger.Warn("publish failed", "conn", s.id.Label(), "err", err)
	}

	return s.write(BuildAcknowledgment())
}

// relayLoop services the private subscription: every message from another
// connection goes out to this client.
func (s *Session) relayLoop(ctx context.Context) {
	for {
		msg, err := s.sub.Recv(ctx)
		if err != nil {
			var lag *broadcast.LagError
			switch {
			case errors.As(err, &lag):
				// Not fatal. The dropped messages are gone; delivery
				// resumes from the next retained one.
				logger.Warn("subscriber lagging", "conn", s.id.Label(), "missed", lag.Missed)
				continue
			case errors.Is(err, broadcast.ErrClosed), ctx.Err() != nil:
				return
			default:
				logger.Error("broadcast receive failed", err, "conn", s.id.Label(), "uid", s.id.UID)
				return
			}
		}
		if msg.Origin == s.id.UID {
			continue
		}
		if err := s.write(msg.Payload + "\n"); err != nil {
			if ctx.Err() == nil {
				logger.Error("relay write failed", err, "conn", s.id.Label(), "uid", s.id.UID)
			}
			return
		}
	}
}

// write sends raw bytes and flushes, serialized across both loops.
func (s *Session) write(raw string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.writer.WriteString(raw); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *Session) close() {
	s.state.Store(int32(StateClosed))
	_ = s.sub.Close()
	_ = s.stream.Close()
	logger.Info("connection closed", "conn", s.id.Label(), "uid", s.id.UID)
}
