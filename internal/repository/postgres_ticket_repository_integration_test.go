package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/persistence"
	"github.com/spec-kit/repair-desk/internal/sequence"
	"github.com/spec-kit/repair-desk/pkg/util/retry"
)

func setupPostgresRepository(t *testing.T, ctx context.Context) (TicketRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is required for postgres integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	execAdmin(t, ctx, dsn, "CREATE SCHEMA "+schema)
	t.Cleanup(func() { execAdmin(t, context.Background(), dsn, "DROP SCHEMA IF EXISTS "+schema+" CASCADE") })

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 10
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()))
	return NewTicketRepository(pool), pool
}

func execAdmin(t *testing.T, ctx context.Context, dsn, stmt string) {
	t.Helper()
	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, stmt)
	require.NoError(t, err)
}

// createWithRetry allocates and inserts in one transaction, retrying
// counter conflicts.
func createWithRetry(ctx context.Context, repo TicketRepository, prefix string, at time.Time) (*domain.Ticket, error) {
	alloc := sequence.NewAllocator()
	policy := retry.Policy{MaxAttempts: 20, InitialInterval: 5 * time.Millisecond, MaxInterval: 50 * time.Millisecond, Retryable: sequence.IsConflict}
	key := uuid.NewString()
	return retry.Value(ctx, policy, func(ctx context.Context) (*domain.Ticket, error) {
		var created *domain.Ticket
		err := repo.RunInTx(ctx, func(tx TicketTx) error {
			id, _, err := alloc.Next(ctx, tx, prefix)
			if err != nil {
				return err
			}
			tk := domain.TicketDraft{
				CustomerName: "Integration",
				ServiceType:  domain.ServiceTypeInstallation,
				Urgency:      domain.UrgencyMedium,
			}.NewTicket(key, id, at)
			if err := tx.InsertTicket(ctx, tk); err != nil {
				return err
			}
			created = tk
			return nil
		})
		return created, err
	})
}

func TestPostgresRepository_ConcurrentCreatesGetSequentialIDs(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupPostgresRepository(t, ctx)
	at := time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)

	const n = 5
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := createWithRetry(ctx, repo, "PE-JUL24", at)
			errs[i] = err
			if err == nil {
				ids[i] = tk.ID
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Strings(ids)
	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("PE-JUL24-%03d", i+1)
	}
	assert.Equal(t, want, ids)

	count, err := repo.Counter(ctx, "PE-JUL24")
	require.NoError(t, err)
	assert.EqualValues(t, n, count)
}

func TestPostgresRepository_FailedInsertLeavesCounter(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupPostgresRepository(t, ctx)
	at := time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)

	_, err := createWithRetry(ctx, repo, "PE-JUL24", at)
	require.NoError(t, err)

	err = repo.RunInTx(ctx, func(tx TicketTx) error {
		if _, _, err := sequence.NewAllocator().Next(ctx, tx, "PE-JUL24"); err != nil {
			return err
		}
		return fmt.Errorf("insert aborted")
	})
	require.Error(t, err)

	count, err := repo.Counter(ctx, "PE-JUL24")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPostgresRepository_ConcurrentPhotoAppendsAreSerialized(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupPostgresRepository(t, ctx)
	at := time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)
	tk, err := createWithRetry(ctx, repo, "PE-JUL24", at)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://files/p%d.jpg", i)
			_, errs[i] = repo.Update(ctx, tk.Key, domain.TicketPatch{AppendPhoto: &url, PhotoLimit: 5}, at.Add(time.Minute))
		}(i)
	}
	wg.Wait()

	var limited int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, domain.ErrPhotoLimit)
			limited++
		}
	}
	assert.Equal(t, n-5, limited)

	stored, err := repo.GetByKey(ctx, tk.Key)
	require.NoError(t, err)
	assert.Len(t, stored.Photos, 5)
	assert.True(t, stored.UpdatedAt.After(tk.UpdatedAt))
}

func TestPostgresRepository_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupPostgresRepository(t, ctx)
	at := time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)
	tk, err := createWithRetry(ctx, repo, "PE-JUL24", at)
	require.NoError(t, err)

	notes := "x"
	_, err = repo.Update(ctx, "missing", domain.TicketPatch{Notes: &notes}, at)
	assert.ErrorIs(t, err, ErrTicketNotFound)

	two := 2
	techCtx := access.WithActor(ctx, access.Actor{UID: "t2", Role: domain.RoleTechnician, TechnicianID: &two})
	_, err = repo.Update(techCtx, tk.Key, domain.TicketPatch{Notes: &notes}, at)
	assert.ErrorIs(t, err, access.ErrDenied)
}
