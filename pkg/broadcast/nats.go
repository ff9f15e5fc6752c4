// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
)

// natsBus fans out through a NATS subject so several relayd instances can
// share one broadcast domain. The bounded-lag policy is delegated to the
// client's pending limits: a slow subscriber drops messages at its own
// buffer and Recv surfaces the running drop count as a LagError, matching
// the in-process bus contract.
type natsBus struct {
	nc       *nats.Conn
	subject  string
	capacity int
}

// NewNATS connects to the given NATS URL and returns a Bus publishing on
// subject. The bus owns the connection.
func NewNATS(url, subject string, capacity int) (Bus, error) {
	if capacity <= 0 {
		capacity = 10
	}
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, err
	}
	return &natsBus{nc: nc, subject: subject, capacity: capacity}, nil
}

func (b *natsBus) Publish(msg Message) error {
	if b.nc.IsClosed() {
		return ErrClosed
	}
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject, data)
}

func (b *natsBus) Subscribe() (Subscription, error) {
	if b.nc.IsClosed() {
		return nil, ErrClosed
	}
	sub, err := b.nc.SubscribeSync(b.subject)
	if err != nil {
		return nil, err
	}
	if err := sub.SetPendingLimits(b.capacity, -1); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return &natsSub{sub: sub}, nil
}

func (b *natsBus) Close() error {
	b.nc.Close()
	return nil
}

type natsSub struct {
	sub  *nats.Subscription
	seen int // drop count already reported
}

func (s *natsSub) Recv(ctx context.Context) (Message, error) {
	if dropped, err := s.sub.Dropped(); err == nil && dropped > s.seen {
		missed := dropped - s.seen
		s.seen = dropped
		return Message{}, &LagError{Missed: uint64(missed)}
	}

	m, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return Message{}, err
		case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubscription):
			return Message{}, ErrClosed
		default:
			return Message{}, err
		}
	}
	return decodeMessage(m.Data)
}

func (s *natsSub) Close() error {
	return s.sub.Unsubscribe()
}
