// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broadcast implements the fan-out bus connecting relay sessions.
//
// One publish handle is shared by every connection; each connection holds
// its own Subscription. Publish never blocks: a subscriber that falls
// behind the fixed retention capacity loses the oldest messages and is told
// how many it missed, instead of stalling publishers.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Recv once the bus is torn down and all retained
// messages have been delivered, and by Publish/Subscribe on a closed bus.
var ErrClosed = errors.New("broadcast: bus closed")

// LagError reports that a subscriber fell behind and missed messages.
// Delivery resumes from the oldest message still retained.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("broadcast: subscriber lagged, %d messages dropped", e.Missed)
}

// Message is one relayed line. Immutable once published. Origin carries the
// publishing connection's unique identity so that connection can skip its
// own broadcast; From is the human-readable label already baked into
// Payload.
type Message struct {
	Origin  string `cbor:"origin"`
	From    string `cbor:"from"`
	Payload string `cbor:"payload"`
}

// Bus is the multi-subscriber fan-out primitive.
type Bus interface {
	// Publish hands the message to every current subscriber. It never
	// blocks; with zero subscribers the message is simply discarded.
	Publish(msg Message) error

	// Subscribe returns a fresh receiver that sees every message
	// published after this call, in publish order, subject to the
	// bounded-lag drop policy.
	Subscribe() (Subscription, error)

	Close() error
}

// Subscription is one subscriber's private receive handle.
type Subscription interface {
	// Recv suspends until the next message is available. It returns a
	// *LagError when messages were dropped (receiving continues on the
	// next call), and ErrClosed once the bus is gone.
	Recv(ctx context.Context) (Message, error)

	Close() error
}

// memoryBus is the in-process Bus: a ring of the last capacity messages
// plus a per-subscriber cursor. Subscribers that stop reading cost nothing
// beyond their cursor; publishers only ever touch the ring.
type memoryBus struct {
	mu       sync.Mutex
	capacity uint64
	ring     []Message
	next     uint64 // sequence number of the next publish
	count    uint64 // retained messages, <= capacity
	closed   bool
	wake     chan struct{} // closed and replaced on every publish
}

// NewMemory creates an in-process bus retaining up to capacity messages per
// lagging subscriber.
func NewMemory(capacity int) Bus {
	if capacity <= 0 {
		capacity = 10
	}
	return &memoryBus{
		capacity: uint64(capacity),
		ring:     make([]Message, capacity),
		wake:     make(chan struct{}),
	}
}

func (b *memoryBus) Publish(msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.ring[b.next%b.capacity] = msg
	b.next++
	if b.count < b.capacity {
		b.count++
	}
	close(b.wake)
	b.wake = make(chan struct{})
	return nil
}

func (b *memoryBus) Subscribe() (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return &memorySub{bus: b, cursor: b.next}, nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.wake)
	return nil
}

type memorySub struct {
	bus    *memoryBus
	cursor uint64
	closed bool
}

func (s *memorySub) Recv(ctx context.Context) (Message, error) {
	for {
		b := s.bus
		b.mu.Lock()
		if s.closed {
			b.mu.Unlock()
			return Message{}, ErrClosed
		}
		oldest := b.next - b.count
		if s.cursor < oldest {
			missed := oldest - s.cursor
			s.cursor = oldest
			b.mu.Unlock()
			return Message{}, &LagError{Missed: missed}
		}
		if s.cursor < b.next {
			msg := b.ring[s.cursor%b.capacity]
			s.cursor++
			b.mu.Unlock()
			return msg, nil
		}
		if b.closed {
			b.mu.Unlock()
			return Message{}, ErrClosed
		}
		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close drops the subscription. The bus keeps no per-subscriber state
// beyond the cursor, so this only stops future Recv calls.
func (s *memorySub) Close() error {
	s.bus.mu.Lock()
	s.closed = true
	s.bus.mu.Unlock()
	return nil
}
