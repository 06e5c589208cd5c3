package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed fans events out over a Redis Pub/Sub channel so every API
// instance sees writes made by the others.
func NewRedisFeed(client *redis.Client, channel string) Feed {
	return &redisFeed{client: client, channel: channel}
}

func (f *redisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

func (f *redisFeed) Subscribe(ctx context.Context) (<-chan Event, <-chan error, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	ch := make(chan Event, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(ch)
		defer pubsub.Close()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					fail(errs, fmt.Errorf("receive from %s: %w", f.channel, err))
				}
				return
			}
			event, err := decode(msg.Payload)
			if err != nil {
				// Malformed payloads still mean something changed.
				event = Event{Type: EventTicketUpdated}
			}
			offer(ch, event)
		}
	}()

	return ch, errs, nil
}
