package livesync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/repair-desk/internal/domain"
)

func TestPendingWrites_MergesSuccessivePatches(t *testing.T) {
	p := NewPendingWrites()
	notes := "called customer"
	status := domain.TicketStatusInProgress
	p.Track("k", domain.TicketPatch{Notes: &notes}, base)
	p.Track("k", domain.TicketPatch{Status: &status}, base.Add(time.Second))

	out := p.Overlay([]domain.Ticket{ticket("k", base)})
	assert.Equal(t, notes, out[0].Notes)
	assert.Equal(t, status, out[0].Status)
	assert.Equal(t, 1, p.Len())

	// The merged entry is cleared only once the later write is reflected.
	p.Reconcile([]domain.Ticket{ticket("k", base)})
	assert.Equal(t, 1, p.Len())
	p.Reconcile([]domain.Ticket{ticket("k", base.Add(time.Second))})
	assert.Equal(t, 0, p.Len())
}

func TestPendingWrites_OverlayDoesNotMutateInput(t *testing.T) {
	p := NewPendingWrites()
	notes := "n"
	p.Track("k", domain.TicketPatch{Notes: &notes}, base)

	in := []domain.Ticket{ticket("k", base), ticket("other", base)}
	out := p.Overlay(in)
	assert.Equal(t, "", in[0].Notes)
	assert.Equal(t, "n", out[0].Notes)
	assert.Equal(t, "", out[1].Notes)
}

func TestPendingWrites_SubMicrosecondIssueTime(t *testing.T) {
	p := NewPendingWrites()
	notes := "n"
	issued := base.Add(1500 * time.Nanosecond)
	p.Track("k", domain.TicketPatch{Notes: &notes}, issued)

	p.Reconcile([]domain.Ticket{ticket("k", base.Add(time.Microsecond))})
	assert.Equal(t, 0, p.Len())
}
