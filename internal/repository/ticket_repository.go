package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/sequence"
)

// ErrTicketNotFound is returned when no ticket has the requested key.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketTx is the transactional view used while creating a ticket. Counter
// writes and the ticket insert commit together or not at all.
type TicketTx interface {
	sequence.CounterStore
	InsertTicket(ctx context.Context, ticket *domain.Ticket) error
}

// TicketRepository encapsulates ticket persistence. Implementations enforce
// the access rules from package access and return access.ErrDenied.
type TicketRepository interface {
	RunInTx(ctx context.Context, fn func(tx TicketTx) error) error
	Update(ctx context.Context, key string, patch domain.TicketPatch, now time.Time) (*domain.Ticket, error)
	GetByKey(ctx context.Context, key string) (*domain.Ticket, error)
	// List returns every ticket ordered by created_at descending.
	List(ctx context.Context) ([]domain.Ticket, error)
	Counter(ctx context.Context, prefix string) (int64, error)
}

// storeTime is the precision both backends persist.
func storeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt keeps updated_at strictly increasing even when the clock
// has not advanced since the previous write.
func nextUpdatedAt(prev, now time.Time) time.Time {
	now = storeTime(now)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

// normalize converts a stored ticket into the canonical in-memory shape.
func normalize(t *domain.Ticket) {
	t.CreatedAt = storeTime(t.CreatedAt)
	t.UpdatedAt = storeTime(t.UpdatedAt)
	if t.ScheduledDate != nil {
		if t.ScheduledDate.IsZero() {
			t.ScheduledDate = nil
		} else {
			v := storeTime(*t.ScheduledDate)
			t.ScheduledDate = &v
		}
	}
	if t.Photos == nil {
		t.Photos = []string{}
	}
}
