package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryFeed_DeliversToSubscribers(t *testing.T) {
	feed := NewInMemoryFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, _, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	second, _, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	event := Event{ID: "1", Type: EventTicketCreated, TicketKey: "k1"}
	require.NoError(t, feed.Publish(ctx, event))

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)
}

func TestInMemoryFeed_CoalescesBursts(t *testing.T) {
	feed := NewInMemoryFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, feed.Publish(ctx, Event{Type: EventTicketUpdated}))
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("expected burst to coalesce into one pending signal")
	default:
	}
}

func TestInMemoryFeed_ClosesOnCancel(t *testing.T) {
	feed := NewInMemoryFeed()
	ctx, cancel := context.WithCancel(context.Background())

	ch, _, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription channel was not closed")
	}

	assert.NoError(t, feed.Publish(context.Background(), Event{Type: EventTicketUpdated}))
}

func TestInMemoryFeed_SubscribeWithDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewInMemoryFeed().Subscribe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEventCodec(t *testing.T) {
	event := Event{ID: "e", Type: EventTicketUpdated, TicketKey: "k", TicketID: "PE-JUL24-001", Origin: "api-1", Timestamp: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}
	payload, err := encode(event)
	require.NoError(t, err)

	decoded, err := decode(payload)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}
