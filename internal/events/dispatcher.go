package events

import (
	"context"
	"sync"
)

// inMemoryFeed is an in-process feed. Subscriber channels hold one event so
// a burst of writes coalesces into a single refetch.
type inMemoryFeed struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]chan Event
}

// NewInMemoryFeed creates a feed local to this process.
func NewInMemoryFeed() Feed {
	return &inMemoryFeed{
		subscribers: make(map[int]chan Event),
	}
}

// Publish signals every current subscriber without blocking.
func (f *inMemoryFeed) Publish(_ context.Context, event Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subscribers {
		offer(ch, event)
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (f *inMemoryFeed) Subscribe(ctx context.Context) (<-chan Event, <-chan error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ch := make(chan Event, 1)
	errs := make(chan error, 1)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
		close(ch)
	}()

	return ch, errs, nil
}
