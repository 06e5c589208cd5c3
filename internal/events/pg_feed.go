package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgFeed struct {
	pool    *pgxpool.Pool
	channel string
}

// NewPostgresFeed uses LISTEN/NOTIFY, which needs no infrastructure beyond
// the ticket database.
func NewPostgresFeed(pool *pgxpool.Pool, channel string) Feed {
	return &pgFeed{pool: pool, channel: channel}
}

func (f *pgFeed) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = f.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, f.channel, payload)
	return err
}

func (f *pgFeed) Subscribe(ctx context.Context) (<-chan Event, <-chan error, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("listen %s: %w", f.channel, err)
	}

	ch := make(chan Event, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(ch)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					fail(errs, fmt.Errorf("wait for notification on %s: %w", f.channel, err))
				}
				return
			}
			event, err := decode(n.Payload)
			if err != nil {
				event = Event{Type: EventTicketUpdated}
			}
			offer(ch, event)
		}
	}()

	return ch, errs, nil
}
