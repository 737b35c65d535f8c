package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynsched/internal/jobstore"
	"dynsched/internal/platform/pg"
	"dynsched/internal/scheduler"
	"dynsched/internal/shared"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))
}

// newTestStore подключается к TEST_PG_DSN и очищает таблицу.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("TEST_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, pg.DefaultPoolOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE job_config`)
	require.NoError(t, err)
	return s
}

func TestStore_Integration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Create(ctx, scheduler.JobDefinition{Name: "b", Cron: "@hourly"}))
	require.NoError(t, s.Create(ctx, scheduler.JobDefinition{Name: "a", Cron: "0 0 * * *"}))

	err := s.Create(ctx, scheduler.JobDefinition{Name: "a", Cron: "@daily"})
	assert.ErrorIs(t, err, jobstore.ErrExists)
	assert.True(t, shared.IsConflict(err))

	created, err := s.SaveCron(ctx, scheduler.JobDefinition{Name: "a", Cron: "@daily"})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = s.SaveCron(ctx, scheduler.JobDefinition{Name: "c", Cron: "@weekly"})
	require.NoError(t, err)
	assert.True(t, created)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []scheduler.JobDefinition{
		{Name: "a", Cron: "@daily"},
		{Name: "b", Cron: "@hourly"},
		{Name: "c", Cron: "@weekly"},
	}, jobstore.Definitions(records))
	assert.WithinDuration(t, time.Now(), records[0].UpdatedAt, time.Minute)

	existed, err := s.Delete(ctx, "b")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, existed)
}
