package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/docconv/internal/database"
	"github.com/iliyamo/docconv/internal/plan"
)

const day = "2026-10-19"

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, "sqlite3"))
	s, err := NewSQLStore(db, "sqlite3")
	require.NoError(t, err)
	return s
}

func TestNewSQLStoreRejectsUnknownDialect(t *testing.T) {
	_, err := NewSQLStore(nil, "postgres")
	assert.True(t, errors.Is(err, ErrUnsupportedDialect))
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	p, err := s.EnsureUser(ctx, 42, plan.Free)
	require.NoError(t, err)
	assert.Equal(t, plan.Free, p)

	require.NoError(t, s.SetPlan(ctx, 42, plan.Pro))
	p, err = s.EnsureUser(ctx, 42, plan.Free)
	require.NoError(t, err)
	assert.Equal(t, plan.Pro, p)

	acc, err := s.Users.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "PRO", acc.Plan)
	assert.False(t, acc.CreatedAt.IsZero())
}

func TestSetPlanCreatesUser(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.SetPlan(ctx, 7, plan.Basic))
	p, err := s.EnsureUser(ctx, 7, plan.Free)
	require.NoError(t, err)
	assert.Equal(t, plan.Basic, p)
}

func TestUsageOnCreatesZeroRow(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	used, err := s.UsageOn(ctx, 1, day)
	require.NoError(t, err)
	assert.Zero(t, used)

	var n int
	require.NoError(t, s.Usage.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_usage WHERE user_id = 1 AND day = ?`, day).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestReserveGuardsLimit(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	used, ok, err := s.Reserve(ctx, 5, day, 8, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 8, used)

	used, ok, err = s.Reserve(ctx, 5, day, 3, 10)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 8, used)

	used, ok, err = s.Reserve(ctx, 5, day, 2, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, used)

	// a different day is a different key
	used, ok, err = s.Reserve(ctx, 5, "2026-10-20", 10, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, used)
}

func TestConcurrentReserveSQLite(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 40; i++ {
		pages := i%3 + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.Reserve(ctx, 9, day, pages, 25)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				total += pages
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, total, 25)
	used, err := s.UsageOn(ctx, 9, day)
	require.NoError(t, err)
	assert.Equal(t, total, used)
}
