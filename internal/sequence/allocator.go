// Package sequence assigns human-readable ticket IDs of the form
// PE-JUL24-003. Numbers are scoped by month prefix and allocated inside the
// same transaction that writes the ticket.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pad is the minimum digit count of the sequence part. Larger numbers print in full.
const Pad = 3

// ErrCounterConflict means the counter moved between read and write.
var ErrCounterConflict = errors.New("ticket counter changed concurrently")

// ErrMalformedID is returned by Parse.
var ErrMalformedID = errors.New("malformed ticket id")

var months = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// CounterStore is the transactional view of the per-prefix counters.
type CounterStore interface {
	// LoadCounter returns the current count, 0 when the prefix has no counter yet.
	LoadCounter(ctx context.Context, prefix string) (int64, error)
	// StoreCounter writes next only if the stored count still equals expected,
	// otherwise it returns ErrCounterConflict.
	StoreCounter(ctx context.Context, prefix string, expected, next int64) error
}

// Allocator hands out the next number for a prefix.
type Allocator struct{}

// NewAllocator returns an allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next reads the counter, bumps it and returns the formatted ID. It must be
// called inside the transaction that also inserts the ticket.
func (a *Allocator) Next(ctx context.Context, tx CounterStore, prefix string) (string, int64, error) {
	current, err := tx.LoadCounter(ctx, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("load counter %s: %w", prefix, err)
	}
	next := current + 1
	if err := tx.StoreCounter(ctx, prefix, current, next); err != nil {
		return "", 0, fmt.Errorf("store counter %s: %w", prefix, err)
	}
	return Format(prefix, next), next, nil
}

// Prefix builds the month scope, e.g. Prefix("PE", July 2024) = "PE-JUL24".
func Prefix(code string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s-%s%02d", code, months[at.Month()-1], at.Year()%100)
}

// Format joins a prefix and number with three-digit zero padding.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, Pad, n)
}

// Parse splits an ID produced by Format.
func Parse(id string) (string, int64, error) {
	idx := strings.LastIndex(id, "-")
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	n, err := strconv.ParseInt(id[idx+1:], 10, 64)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	return id[:idx], n, nil
}

// IsConflict is the retry predicate for ticket creation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCounterConflict)
}
