package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynsched/internal/adapter/store/sqlitestore"
	"dynsched/internal/jobstore"
	"dynsched/internal/platform/sqlite"
	"dynsched/internal/scheduler"
	"dynsched/internal/shared"
	"dynsched/pkg/retry"
)

func fastPolicy() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Jitter: retry.JitterNone}
}

func testEngine(t *testing.T) *scheduler.Engine {
	t.Helper()
	e := scheduler.New(scheduler.Config{
		Logger:   quietLogger(),
		Clock:    clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)),
		Location: time.UTC,
	})
	t.Cleanup(func() { _ = e.Stop(context.Background()) })
	return e
}

func TestBootstrap_FromSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := sqlitestore.Open(ctx, filepath.Join(t.TempDir(), "data", "jobs.db"), sqlite.DefaultDBOptions())
	require.NoError(t, err)
	defer store.Close()

	// "broken" is stored directly: the API never accepts such a record, but
	// an edited database can contain one.
	for _, def := range []scheduler.JobDefinition{
		{Name: "daily-report", Cron: "0 9 * * *"},
		{Name: "cleanup", Cron: "*/15 * * * *"},
		{Name: "broken", Cron: "99 * * * *"},
	} {
		require.NoError(t, store.Create(ctx, def))
	}

	engine := testEngine(t)
	require.NoError(t, Bootstrap(ctx, store, engine, fastPolicy(), quietLogger()))

	jobs := engine.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "cleanup", jobs[0].Name)
	assert.Equal(t, "daily-report", jobs[1].Name)
}

type flakyStore struct {
	jobstore.Store
	failures int32
	calls    int32
}

func (f *flakyStore) LoadAll(context.Context) ([]jobstore.Record, error) {
	if atomic.AddInt32(&f.calls, 1) <= f.failures {
		return nil, jobstore.DependencyError("select jobs", errors.New("connection reset"))
	}
	return []jobstore.Record{{Name: "a", Cron: "@hourly"}}, nil
}

func TestBootstrap_RetriesTransientFailures(t *testing.T) {
	store := &flakyStore{failures: 2}
	engine := testEngine(t)

	require.NoError(t, Bootstrap(context.Background(), store, engine, fastPolicy(), quietLogger()))
	assert.EqualValues(t, 3, store.calls)
	assert.Len(t, engine.Jobs(), 1)
}

func TestBootstrap_GivesUp(t *testing.T) {
	store := &flakyStore{failures: 10}

	err := Bootstrap(context.Background(), store, testEngine(t), fastPolicy(), quietLogger())
	require.Error(t, err)
	assert.True(t, shared.IsDependencyFailure(err))
	assert.EqualValues(t, 3, store.calls)
}
