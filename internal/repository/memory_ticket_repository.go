package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/sequence"
)

// MemoryOption configures a MemoryTicketRepository.
type MemoryOption func(*MemoryTicketRepository)

// WithCommitHook runs hook right before a transaction's writes are applied.
// A non-nil error aborts the commit.
func WithCommitHook(hook func() error) MemoryOption {
	return func(r *MemoryTicketRepository) { r.commitHook = hook }
}

// MemoryTicketRepository keeps tickets in process memory. Transactions are
// optimistic: counter writes are checked against the committed value at
// commit time.
type MemoryTicketRepository struct {
	mu         sync.RWMutex
	tickets    map[string]*domain.Ticket
	ids        map[string]string
	counters   map[string]int64
	commitHook func() error
}

// NewMemoryTicketRepository returns an empty in-memory repository.
func NewMemoryTicketRepository(opts ...MemoryOption) *MemoryTicketRepository {
	r := &MemoryTicketRepository{
		tickets:  make(map[string]*domain.Ticket),
		ids:      make(map[string]string),
		counters: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type counterWrite struct {
	expected int64
	next     int64
}

type memoryTicketTx struct {
	repo     *MemoryTicketRepository
	counters map[string]counterWrite
	inserts  []*domain.Ticket
}

func (r *MemoryTicketRepository) RunInTx(ctx context.Context, fn func(tx TicketTx) error) error {
	tx := &memoryTicketTx{repo: r, counters: make(map[string]counterWrite)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.commit(tx)
}

func (r *MemoryTicketRepository) commit(tx *memoryTicketTx) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for prefix, w := range tx.counters {
		if r.counters[prefix] != w.expected {
			return sequence.ErrCounterConflict
		}
	}
	seen := make(map[string]bool, len(tx.inserts))
	for _, t := range tx.inserts {
		if _, ok := r.tickets[t.Key]; ok || seen[t.Key] {
			return sequence.ErrCounterConflict
		}
		if _, ok := r.ids[t.ID]; ok || seen["id:"+t.ID] {
			return sequence.ErrCounterConflict
		}
		seen[t.Key] = true
		seen["id:"+t.ID] = true
	}
	if r.commitHook != nil {
		if err := r.commitHook(); err != nil {
			return err
		}
	}

	for prefix, w := range tx.counters {
		r.counters[prefix] = w.next
	}
	for _, t := range tx.inserts {
		r.tickets[t.Key] = t
		r.ids[t.ID] = t.Key
	}
	return nil
}

func (t *memoryTicketTx) LoadCounter(ctx context.Context, prefix string) (int64, error) {
	if w, ok := t.counters[prefix]; ok {
		return w.next, nil
	}
	return t.repo.Counter(ctx, prefix)
}

func (t *memoryTicketTx) StoreCounter(_ context.Context, prefix string, expected, next int64) error {
	if w, ok := t.counters[prefix]; ok {
		if w.next != expected {
			return sequence.ErrCounterConflict
		}
		t.counters[prefix] = counterWrite{expected: w.expected, next: next}
		return nil
	}
	t.counters[prefix] = counterWrite{expected: expected, next: next}
	return nil
}

func (t *memoryTicketTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	if err := access.CanCreate(ctx); err != nil {
		return err
	}
	normalize(ticket)
	stored := ticket.Clone()
	t.inserts = append(t.inserts, &stored)
	return nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, key string, patch domain.TicketPatch, now time.Time) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tickets[key]
	if !ok {
		return nil, ErrTicketNotFound
	}
	if err := access.CanUpdate(ctx, current); err != nil {
		return nil, err
	}
	if err := patch.Check(current); err != nil {
		return nil, err
	}

	next := current.Clone()
	patch.Apply(&next)
	next.UpdatedAt = nextUpdatedAt(current.UpdatedAt, now)
	normalize(&next)
	r.tickets[key] = &next
	out := next.Clone()
	return &out, nil
}

func (r *MemoryTicketRepository) GetByKey(ctx context.Context, key string) (*domain.Ticket, error) {
	if err := access.CanRead(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[key]
	if !ok {
		return nil, ErrTicketNotFound
	}
	out := t.Clone()
	return &out, nil
}

func (r *MemoryTicketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	if err := access.CanRead(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		result = append(result, t.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (r *MemoryTicketRepository) Counter(_ context.Context, prefix string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[prefix], nil
}
