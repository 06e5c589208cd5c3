package livesync

import (
	"sync"
	"time"

	"github.com/spec-kit/repair-desk/internal/domain"
)

type pendingWrite struct {
	patch    domain.TicketPatch
	issuedAt time.Time
}

// PendingWrites remembers local patches that the subscription has not echoed
// back yet, so a view can show them immediately. An entry is cleared by the
// first snapshot whose copy of the ticket is at least as new as the write.
type PendingWrites struct {
	mu      sync.Mutex
	entries map[string]pendingWrite
}

// NewPendingWrites returns an empty tracker.
func NewPendingWrites() *PendingWrites {
	return &PendingWrites{entries: make(map[string]pendingWrite)}
}

// Track records patch for key. Successive patches merge, later fields win.
func (p *PendingWrites) Track(key string, patch domain.TicketPatch, issuedAt time.Time) {
	issuedAt = issuedAt.UTC().Truncate(time.Microsecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.entries[key]; ok {
		patch = prev.patch.Merge(patch)
	}
	p.entries[key] = pendingWrite{patch: patch, issuedAt: issuedAt}
}

// Forget drops the entry for key, used when the write failed.
func (p *PendingWrites) Forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, key)
}

// Reconcile clears every entry the snapshot already reflects.
func (p *PendingWrites) Reconcile(tickets []domain.Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) == 0 {
		return
	}
	for _, t := range tickets {
		entry, ok := p.entries[t.Key]
		if ok && !t.UpdatedAt.Before(entry.issuedAt) {
			delete(p.entries, t.Key)
		}
	}
}

// Overlay returns a copy of tickets with pending patches applied.
func (p *PendingWrites) Overlay(tickets []domain.Ticket) []domain.Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.Ticket, len(tickets))
	for i, t := range tickets {
		out[i] = t.Clone()
		if entry, ok := p.entries[t.Key]; ok {
			entry.patch.Apply(&out[i])
		}
	}
	return out
}

// Len is the number of unconfirmed writes.
func (p *PendingWrites) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
