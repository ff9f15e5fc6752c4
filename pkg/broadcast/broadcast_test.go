package broadcast_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/relay/pkg/broadcast"
)

func recvOne(t *testing.T, sub broadcast.Subscription) (broadcast.Message, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sub.Recv(ctx)
}

func TestMemoryBusFanOut(t *testing.T) {
	bus := broadcast.NewMemory(10)
	defer bus.Close()

	a, err := bus.Subscribe()
	require.NoError(t, err)
	b, err := bus.Subscribe()
	require.NoError(t, err)

	msg := broadcast.Message{Origin: "o1", From: "1", Payload: "MESSAGE:1 HI"}
	require.NoError(t, bus.Publish(msg))

	got, err := recvOne(t, a)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	got, err = recvOne(t, b)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestMemoryBusPublishOrder(t *testing.T) {
	bus := broadcast.NewMemory(10)
	defer bus.Close()

	sub, err := bus.Subscribe()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(broadcast.Message{Payload: fmt.Sprintf("m%d", i)}))
	}
	for i := 0; i < 5; i++ {
		got, err := recvOne(t, sub)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), got.Payload)
	}
}

func TestMemoryBusZeroSubscribers(t *testing.T) {
	bus := broadcast.NewMemory(10)
	defer bus.Close()

	// Publishing into the void succeeds and is simply discarded.
	require.NoError(t, bus.Publish(broadcast.Message{Payload: "nobody home"}))

	// A later subscriber only sees messages published after it joined.
	sub, err := bus.Subscribe()
	require.NoError(t, err)

	require.NoError(t, bus.Publish(broadcast.Message{Payload: "fresh"}))
	got, err := recvOne(t, sub)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Payload)
}

func TestMemoryBusLag(t *testing.T) {
	bus := broadcast.NewMemory(10)
	defer bus.Close()

	sub, err := bus.Subscribe()
	require.NoError(t, err)

	// Stall the subscriber past capacity: 11 published, 10 retained.
	for i := 0; i < 11; i++ {
		require.NoError(t, bus.Publish(broadcast.Message{Payload: fmt.Sprintf("m%d", i)}))
	}

	_, err = recvOne(t, sub)
	var lag *broadcast.LagError
	require.ErrorAs(t, err, &lag)
	assert.Equal(t, uint64(1), lag.Missed)

	// Delivery resumes from the oldest retained message.
	for i := 1; i <= 10; i++ {
		got, err := recvOne(t, sub)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), got.Payload)
	}
}

func TestMemoryBusPublishNeverBlocks(t *testing.T) {
	bus := broadcast.NewMemory(2)
	defer bus.Close()

	_, err := bus.Subscribe()
	require.NoError(t, err)

	// A subscriber that never reads must not stall the publisher.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = bus.Publish(broadcast.Message{Payload: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}
}

func TestMemoryBusRecvBlocksUntilPublish(t *testing.T) {
	bus := broadcast.NewMemory(10)
	defer bus.Close()

	sub, err := bus.Subscribe()
	require.NoError(t, err)

	got := make(chan broadcast.Message, 1)
	go func() {
		msg, err := sub.Recv(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	// Recv must suspend, not spin or return early.
	select {
	case <-got:
		t.Fatal("Recv returned before any publish")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, bus.Publish(broadcast.Message{Payload: "wake"}))
	select {
	case msg := <-got:
		assert.Equal(t, "wake", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake on publish")
	}
}

func TestMemoryBusClose(t *testing.T) {
	bus := broadcast.NewMemory(10)

	sub, err := bus.Subscribe()
	require.NoError(t, err)

	require.NoError(t, bus.Publish(broadcast.Message{Payload: "last"}))
	require.NoError(t, bus.Close())

	// Retained messages drain before the closed signal.
	got, err := recvOne(t, sub)
	require.NoError(t, err)
	assert.Equal(t, "last", got.Payload)

	_, err = recvOne(t, sub)
	assert.ErrorIs(t, err, broadcast.ErrClosed)

	assert.ErrorIs(t, bus.Publish(broadcast.Message{}), broadcast.ErrClosed)
	_, err = bus.Subscribe()
	assert.ErrorIs(t, err, broadcast.ErrClosed)
}

func TestMemoryBusRecvContextCancel(t *testing.T) {
	bus := broadcast.NewMemory(10)
	defer bus.Close()

	sub, err := bus.Subscribe()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Recv(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Recv did not observe context cancellation")
	}
}
