package scheduler

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynsched/internal/shared"
)

func newIdleTrigger(name string) *Trigger {
	return newTrigger(
		JobDefinition{Name: name, Cron: "0 0 * * *"},
		MustParse("0 0 * * *"),
		nil,
		triggerDeps{clock: clockwork.NewFakeClock(), location: time.UTC, logger: discardLogger()},
	)
}

func TestRegistry_PutGetRemove(t *testing.T) {
	r := NewRegistry()
	tr := newIdleTrigger("a")

	require.NoError(t, r.Put("a", tr))

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, tr, got)
	assert.Equal(t, 1, r.Len())

	r.Remove("a")
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	r.Remove("a") // отсутствие имени - не ошибка
}

func TestRegistry_PutDuplicate(t *testing.T) {
	r := NewRegistry()
	first := newIdleTrigger("a")
	require.NoError(t, r.Put("a", first))

	err := r.Put("a", newIdleTrigger("a"))

	var dup *DuplicateJobError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Name)
	assert.True(t, shared.IsConflict(err))

	got, _ := r.Get("a")
	assert.Same(t, first, got, "первый триггер должен остаться в реестре")
}

func TestRegistry_PutOverCancelled(t *testing.T) {
	r := NewRegistry()
	stale := newIdleTrigger("a")
	require.NoError(t, r.Put("a", stale))
	stale.Cancel()

	fresh := newIdleTrigger("a")
	require.NoError(t, r.Put("a", fresh))

	got, _ := r.Get("a")
	assert.Same(t, fresh, got)
}

func TestRegistry_Snapshot_Sorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Put(name, newIdleTrigger(name)))
	}

	snap := r.Snapshot()

	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].Definition().Name)
	assert.Equal(t, "b", snap[1].Definition().Name)
	assert.Equal(t, "c", snap[2].Definition().Name)
}

func TestRegistry_Atomically_Replace(t *testing.T) {
	r := NewRegistry()
	old := newIdleTrigger("a")
	require.NoError(t, r.Put("a", old))
	fresh := newIdleTrigger("a")

	err := r.Atomically(func(tx *RegistryTx) error {
		current, ok := tx.Get("a")
		require.True(t, ok)
		current.Cancel()
		tx.Remove("a")
		return tx.Put("a", fresh)
	})

	require.NoError(t, err)
	got, _ := r.Get("a")
	assert.Same(t, fresh, got)
	assert.Equal(t, StateCancelled, old.State())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Atomically_PropagatesError(t *testing.T) {
	r := NewRegistry()

	err := r.Atomically(func(tx *RegistryTx) error {
		return &JobNotFoundError{Name: "missing"}
	})

	assert.True(t, shared.IsNotFound(err))
}
