package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/sequence"
)

func insert(t *testing.T, repo *MemoryTicketRepository, key, id string, at time.Time) {
	t.Helper()
	err := repo.RunInTx(context.Background(), func(tx TicketTx) error {
		return tx.InsertTicket(context.Background(), &domain.Ticket{Key: key, ID: id, CreatedAt: at, UpdatedAt: at})
	})
	require.NoError(t, err)
}

func TestMemoryRepository_CounterCompareAndSet(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	first := &memoryTicketTx{repo: repo, counters: map[string]counterWrite{}}
	second := &memoryTicketTx{repo: repo, counters: map[string]counterWrite{}}

	for _, tx := range []*memoryTicketTx{first, second} {
		n, err := tx.LoadCounter(ctx, "PE-JUL24")
		require.NoError(t, err)
		require.NoError(t, tx.StoreCounter(ctx, "PE-JUL24", n, n+1))
	}

	require.NoError(t, repo.commit(first))
	assert.ErrorIs(t, repo.commit(second), sequence.ErrCounterConflict)

	count, err := repo.Counter(ctx, "PE-JUL24")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMemoryRepository_RejectsDuplicateHumanID(t *testing.T) {
	repo := NewMemoryTicketRepository()
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	insert(t, repo, "k1", "PE-JUL24-001", at)

	err := repo.RunInTx(context.Background(), func(tx TicketTx) error {
		return tx.InsertTicket(context.Background(), &domain.Ticket{Key: "k2", ID: "PE-JUL24-001", CreatedAt: at, UpdatedAt: at})
	})
	assert.ErrorIs(t, err, sequence.ErrCounterConflict)
}

func TestMemoryRepository_ListNewestFirst(t *testing.T) {
	repo := NewMemoryTicketRepository()
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	insert(t, repo, "a", "PE-JUL24-001", base)
	insert(t, repo, "b", "PE-JUL24-002", base.Add(time.Hour))
	insert(t, repo, "c", "PE-JUL24-003", base.Add(30*time.Minute))

	tickets, err := repo.List(context.Background())
	require.NoError(t, err)
	keys := []string{}
	for _, ticket := range tickets {
		keys = append(keys, ticket.Key)
		assert.NotNil(t, ticket.Photos)
	}
	assert.Equal(t, []string{"b", "c", "a"}, keys)
}

func TestMemoryRepository_UpdateIsolatesCallers(t *testing.T) {
	repo := NewMemoryTicketRepository()
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	insert(t, repo, "k", "PE-JUL24-001", at)

	photos := []string{"https://files/1.jpg"}
	updated, err := repo.Update(context.Background(), "k", domain.TicketPatch{Photos: &photos}, at)
	require.NoError(t, err)
	updated.Photos[0] = "mutated"

	stored, err := repo.GetByKey(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://files/1.jpg"}, stored.Photos)
	assert.Equal(t, at.Add(time.Microsecond), stored.UpdatedAt)
}

func TestMemoryRepository_UpdateAccess(t *testing.T) {
	repo := NewMemoryTicketRepository()
	at := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	insert(t, repo, "k", "PE-JUL24-001", at)

	one := 1
	ctx := access.WithActor(context.Background(), access.Actor{UID: "t", Role: domain.RoleTechnician, TechnicianID: &one})
	notes := "n"
	_, err := repo.Update(ctx, "k", domain.TicketPatch{Notes: &notes}, at)
	assert.ErrorIs(t, err, access.ErrDenied)

	_, err = repo.Update(context.Background(), "nope", domain.TicketPatch{Notes: &notes}, at)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestNextUpdatedAt(t *testing.T) {
	prev := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, prev.Add(time.Microsecond), nextUpdatedAt(prev, prev))
	assert.Equal(t, prev.Add(time.Microsecond), nextUpdatedAt(prev, prev.Add(-time.Hour)))
	assert.Equal(t, prev.Add(time.Second), nextUpdatedAt(prev, prev.Add(time.Second)))
}
