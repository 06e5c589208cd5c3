package service

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/sequence"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
	"github.com/spec-kit/repair-desk/pkg/util/retry"
)

// Clock reports the current time. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Snapshot is one full view of the ticket collection. Seq increases strictly
// within a stream, so consumers can discard anything older than what they hold.
type Snapshot struct {
	Seq     uint64
	Tickets []domain.Ticket
	At      time.Time
}

// CancelFunc ends a subscription.
type CancelFunc func()

// TicketStore is the single entry point for ticket reads and writes.
type TicketStore struct {
	repo      repository.TicketRepository
	alloc     *sequence.Allocator
	feed      events.Feed
	clock     Clock
	logger    *zap.Logger
	idCode    string
	maxPhotos int
	origin    string
	create    retry.Policy
}

// TicketStoreDependencies bundles collaborators for the ticket store.
type TicketStoreDependencies struct {
	Repo   repository.TicketRepository
	Feed   events.Feed
	Clock  Clock
	Logger *zap.Logger
	// IDCode is the leading part of human IDs, "PE" by default.
	IDCode            string
	MaxPhotos         int
	CreateMaxAttempts int
	// Origin identifies this process in published events.
	Origin string
}

// NewTicketStore constructs the store.
func NewTicketStore(deps TicketStoreDependencies) *TicketStore {
	s := &TicketStore{
		repo:      deps.Repo,
		alloc:     sequence.NewAllocator(),
		feed:      deps.Feed,
		clock:     deps.Clock,
		logger:    deps.Logger,
		idCode:    deps.IDCode,
		maxPhotos: deps.MaxPhotos,
		origin:    deps.Origin,
		create: retry.Policy{
			MaxAttempts:     deps.CreateMaxAttempts,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Retryable:       sequence.IsConflict,
		},
	}
	if s.feed == nil {
		s.feed = events.NewInMemoryFeed()
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.idCode == "" {
		s.idCode = "PE"
	}
	if s.maxPhotos <= 0 {
		s.maxPhotos = domain.DefaultMaxPhotos
	}
	if s.create.MaxAttempts <= 0 {
		s.create.MaxAttempts = 10
	}
	if s.origin == "" {
		s.origin = uuid.NewString()
	}
	return s
}

// MaxPhotos is the per-ticket photo cap.
func (s *TicketStore) MaxPhotos() int { return s.maxPhotos }

// Feed is the change feed the store publishes to.
func (s *TicketStore) Feed() events.Feed { return s.feed }

// CreateTicket persists a new ticket and returns its opaque key. The human ID
// is allocated in the same transaction as the insert.
func (s *TicketStore) CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error) {
	if err := draft.Validate(s.maxPhotos); err != nil {
		return "", err
	}

	now := s.clock.Now()
	prefix := sequence.Prefix(s.idCode, now)
	key := uuid.NewString()

	ticket, err := retry.Value(ctx, s.create, func(ctx context.Context) (*domain.Ticket, error) {
		var created *domain.Ticket
		err := s.repo.RunInTx(ctx, func(tx repository.TicketTx) error {
			id, _, err := s.alloc.Next(ctx, tx, prefix)
			if err != nil {
				return err
			}
			t := draft.NewTicket(key, id, now)
			if err := tx.InsertTicket(ctx, t); err != nil {
				return err
			}
			created = t
			return nil
		})
		return created, err
	})
	if err != nil {
		s.logger.Warn("create ticket failed", zap.String("prefix", prefix), zap.Error(err))
		if errors.Is(err, access.ErrDenied) {
			return "", apperrors.NewPermissionDenied("not allowed to create tickets", err)
		}
		return "", apperrors.NewCreateFailed(err)
	}

	s.logger.Info("ticket created", zap.String("key", ticket.Key), zap.String("ticket_id", ticket.ID))
	s.publish(ctx, events.EventTicketCreated, ticket)
	return ticket.Key, nil
}

// UpdateTicket merges patch into the ticket identified by key.
func (s *TicketStore) UpdateTicket(ctx context.Context, key string, patch domain.TicketPatch) error {
	if err := patch.Validate(s.maxPhotos); err != nil {
		return err
	}
	if patch.AppendPhoto != nil {
		patch.PhotoLimit = s.maxPhotos
	}

	ticket, err := s.repo.Update(ctx, key, patch, s.clock.Now())
	if err != nil {
		return s.mapKeyedError(key, "update", err)
	}

	s.logger.Debug("ticket updated", zap.String("key", key), zap.Time("updated_at", ticket.UpdatedAt))
	s.publish(ctx, events.EventTicketUpdated, ticket)
	return nil
}

// Ticket returns a single ticket.
func (s *TicketStore) Ticket(ctx context.Context, key string) (*domain.Ticket, error) {
	ticket, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, s.mapKeyedError(key, "read", err)
	}
	return ticket, nil
}

func (s *TicketStore) mapKeyedError(key, op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrTicketNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"key": key})
	case errors.Is(err, access.ErrDenied):
		return apperrors.NewPermissionDenied("not allowed to "+op+" this ticket", err)
	case errors.Is(err, domain.ErrPhotoLimit):
		return apperrors.NewValidationError("photo limit reached", map[string]any{"max": s.maxPhotos})
	default:
		s.logger.Error("ticket "+op+" failed", zap.String("key", key), zap.Error(err))
		return apperrors.NewBackendUnavailable("failed to "+op+" ticket", err)
	}
}

// publish announces a committed write. The write already succeeded, so a feed
// failure is logged and swallowed.
func (s *TicketStore) publish(ctx context.Context, typ events.EventType, ticket *domain.Ticket) {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		TicketKey: ticket.Key,
		TicketID:  ticket.ID,
		Origin:    s.origin,
		Timestamp: ticket.UpdatedAt,
	}
	if err := s.feed.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("publish ticket event failed", zap.String("type", string(typ)), zap.String("key", ticket.Key), zap.Error(err))
	}
}

// StreamTickets delivers the full ticket list ordered newest first, once
// immediately and again after every committed change. onError is called at
// most once, after which the stream is dead. No callback starts after the
// returned CancelFunc returns.
func (s *TicketStore) StreamTickets(ctx context.Context, onData func(Snapshot), onError func(error)) CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	st := &ticketStream{
		store:   s,
		onData:  onData,
		onError: onError,
		cancel:  cancel,
	}
	go st.run(ctx)
	return st.stop
}

type ticketStream struct {
	store   *TicketStore
	onData  func(Snapshot)
	onError func(error)
	cancel  context.CancelFunc
	seq     uint64

	mu      sync.Mutex
	stopped atomic.Bool
	// runner is the goroutine that executes every callback.
	runner atomic.Uint64
}

// stop waits for an in-flight callback unless it is called from that
// callback, which already holds the delivery lock.
func (st *ticketStream) stop() {
	st.stopped.Store(true)
	st.cancel()
	if st.runner.Load() == goroutineID() {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
}

// goroutineID parses the id from the "goroutine N [state]:" stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (st *ticketStream) run(ctx context.Context) {
	st.runner.Store(goroutineID())
	defer st.cancel()

	feed, errs, err := st.store.feed.Subscribe(ctx)
	if err != nil {
		st.fail(ctx, err)
		return
	}
	if !st.emit(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			st.fail(ctx, err)
			return
		case _, ok := <-feed:
			if !ok {
				st.fail(ctx, closedFeedErr(errs))
				return
			}
			if !st.emit(ctx) {
				return
			}
		}
	}
}

// closedFeedErr prefers the cause a failing feed reported before closing.
func closedFeedErr(errs <-chan error) error {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			return err
		}
	default:
	}
	return errors.New("change feed closed")
}

func (st *ticketStream) emit(ctx context.Context) bool {
	tickets, err := st.store.repo.List(ctx)
	if err != nil {
		st.fail(ctx, err)
		return false
	}
	st.seq++
	snapshot := Snapshot{Seq: st.seq, Tickets: tickets, At: st.store.clock.Now()}
	return st.deliver(func() { st.onData(snapshot) })
}

func (st *ticketStream) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	st.store.logger.Warn("ticket stream failed", zap.Error(err))
	if errors.Is(err, access.ErrDenied) {
		err = apperrors.NewPermissionDenied("not allowed to read tickets", err)
	} else {
		err = apperrors.NewStreamFailed(err)
	}
	st.deliver(func() { st.onError(err) })
	st.stopped.Store(true)
}

func (st *ticketStream) deliver(callback func()) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.stopped.Load() {
		return false
	}
	callback()
	return true
}
