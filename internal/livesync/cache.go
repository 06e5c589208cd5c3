// Package livesync keeps a process-local, always-current copy of the ticket
// list for UI surfaces, fed by a ticket subscription.
package livesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/service"
)

// State is the lifecycle of the cached list.
type State string

const (
	StateInitializing State = "initializing"
	StateSynced       State = "synced"
	StateErrored      State = "errored"
)

// ErrNotOpen is returned by Resubscribe before Open.
var ErrNotOpen = errors.New("live sync cache is not open")

// Source is the ticket store as seen by the cache.
type Source interface {
	StreamTickets(ctx context.Context, onData func(service.Snapshot), onError func(error)) service.CancelFunc
	CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error)
	UpdateTicket(ctx context.Context, key string, patch domain.TicketPatch) error
}

// View is what a UI surface renders.
type View struct {
	State        State
	Tickets      []domain.Ticket
	Seq          uint64
	Stale        bool
	Pending      int
	StreamErr    error
	OperationErr error
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the clock used to stamp pending writes.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache holds the last authoritative snapshot. Only the subscription changes
// the list; AddTicket and UpdateTicket never touch it directly.
type Cache struct {
	source  Source
	logger  *zap.Logger
	pending *PendingWrites
	now     func() time.Time

	mu        sync.RWMutex
	ctx       context.Context
	gen       uint64
	cancel    service.CancelFunc
	state     State
	tickets   []domain.Ticket
	lastSeq   uint64
	streamErr error
	opErr     error
	watchers  map[int]func(View)
	nextWatch int
}

// New builds a closed cache. Call Open to start syncing.
func New(source Source, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		source:   source,
		logger:   logger,
		pending:  NewPendingWrites(),
		now:      time.Now,
		state:    StateInitializing,
		tickets:  []domain.Ticket{},
		watchers: make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open subscribes to the source. Calling Open on an open cache restarts the
// subscription.
func (c *Cache) Open(ctx context.Context) {
	c.mu.Lock()
	prevCancel := c.cancel
	c.gen++
	gen := c.gen
	c.ctx = ctx
	c.state = StateInitializing
	c.lastSeq = 0
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	cancel := c.source.StreamTickets(ctx,
		func(s service.Snapshot) { c.applySnapshot(gen, s) },
		func(err error) { c.applyStreamError(gen, err) },
	)

	c.mu.Lock()
	if c.gen == gen {
		c.cancel = cancel
		cancel = nil
	}
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.notify()
}

// Resubscribe restarts a stream that ended in an error. The previous list
// stays visible until the first new snapshot arrives.
func (c *Cache) Resubscribe() error {
	c.mu.RLock()
	ctx := c.ctx
	c.mu.RUnlock()
	if ctx == nil {
		return ErrNotOpen
	}
	c.logger.Info("resubscribing ticket stream")
	c.Open(ctx)
	return nil
}

// Close ends the subscription. No snapshot is applied after Close returns.
func (c *Cache) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.gen++
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Cache) applySnapshot(gen uint64, s service.Snapshot) {
	c.mu.Lock()
	if gen != c.gen || s.Seq <= c.lastSeq {
		c.mu.Unlock()
		c.logger.Debug("discarding stale snapshot", zap.Uint64("seq", s.Seq))
		return
	}
	tickets := make([]domain.Ticket, len(s.Tickets))
	for i, t := range s.Tickets {
		tickets[i] = t.Clone()
	}
	c.tickets = tickets
	c.lastSeq = s.Seq
	c.state = StateSynced
	c.streamErr = nil
	c.mu.Unlock()

	c.pending.Reconcile(tickets)
	c.notify()
}

func (c *Cache) applyStreamError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateErrored
	c.streamErr = err
	c.mu.Unlock()

	c.logger.Warn("ticket stream errored", zap.Error(err))
	c.notify()
}

// AddTicket asks the store to create a ticket. The new ticket shows up once
// the subscription delivers it.
func (c *Cache) AddTicket(ctx context.Context, draft domain.TicketDraft) (string, error) {
	key, err := c.source.CreateTicket(ctx, draft)
	c.recordOperation(err)
	return key, err
}

// UpdateTicket asks the store to apply patch. The patch is shown through the
// pending overlay until the subscription confirms it.
func (c *Cache) UpdateTicket(ctx context.Context, key string, patch domain.TicketPatch) error {
	c.pending.Track(key, patch, c.now())
	err := c.source.UpdateTicket(ctx, key, patch)
	if err != nil {
		c.pending.Forget(key)
	}
	c.recordOperation(err)
	return err
}

func (c *Cache) recordOperation(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.opErr = err
	c.mu.Unlock()
	c.notify()
}

// DismissOperationErr clears the last operation error.
func (c *Cache) DismissOperationErr() {
	c.mu.Lock()
	c.opErr = nil
	c.mu.Unlock()
	c.notify()
}

func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Tickets returns a copy of the last snapshot.
func (c *Cache) Tickets() []domain.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Ticket, len(c.tickets))
	for i, t := range c.tickets {
		out[i] = t.Clone()
	}
	return out
}

func (c *Cache) StreamErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamErr
}

func (c *Cache) OperationErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opErr
}

// Stale reports an errored stream whose last list is still displayed.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateErrored && c.lastSeq > 0
}

// Pending exposes the optimistic write tracker.
func (c *Cache) Pending() *PendingWrites { return c.pending }

// View returns the current list with pending writes overlaid.
func (c *Cache) View() View {
	c.mu.RLock()
	v := View{
		State:        c.state,
		Seq:          c.lastSeq,
		Stale:        c.state == StateErrored && c.lastSeq > 0,
		StreamErr:    c.streamErr,
		OperationErr: c.opErr,
	}
	tickets := c.tickets
	c.mu.RUnlock()

	v.Tickets = c.pending.Overlay(tickets)
	v.Pending = c.pending.Len()
	return v
}

// Watch calls fn after every change until the returned func is called.
func (c *Cache) Watch(fn func(View)) (unwatch func()) {
	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Cache) notify() {
	c.mu.RLock()
	if len(c.watchers) == 0 {
		c.mu.RUnlock()
		return
	}
	watchers := make([]func(View), 0, len(c.watchers))
	for _, fn := range c.watchers {
		watchers = append(watchers, fn)
	}
	c.mu.RUnlock()

	view := c.View()
	for _, fn := range watchers {
		fn(view)
	}
}
