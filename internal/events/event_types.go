package events

import (
	"context"
	"encoding/json"
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketUpdated EventType = "ticket_updated"
)

// Event announces a committed ticket write. Subscribers treat it as a signal
// to refetch; the payload is informational.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketKey string    `json:"ticket_key"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed fans ticket write events out to every subscriber, possibly across
// processes.
type Feed interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe is established when it returns. The event channel is closed
	// when ctx is done. At most one error is delivered, after which the
	// subscription is dead.
	Subscribe(ctx context.Context) (<-chan Event, <-chan error, error)
}

func encode(event Event) (string, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(payload string) (Event, error) {
	var event Event
	err := json.Unmarshal([]byte(payload), &event)
	return event, err
}

// offer delivers event without blocking. A full buffer already holds a
// pending signal, so dropping is safe.
func offer(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
	}
}

// fail delivers err to a single-use error channel.
func fail(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}
