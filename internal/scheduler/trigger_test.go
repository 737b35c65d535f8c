package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, time.January, 1, 0, 0, 30, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSubmitter запоминает срабатывания вместо выполнения.
type recordingSubmitter struct {
	mu     sync.Mutex
	reject bool
	got    []dispatch
	denied int
}

func (s *recordingSubmitter) TrySubmit(d dispatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		s.denied++
		return false
	}
	s.got = append(s.got, d)
	return true
}

func (s *recordingSubmitter) accepted() []dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatch(nil), s.got...)
}

func (s *recordingSubmitter) deniedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.denied
}

func newTestTrigger(t *testing.T, expr string, sub submitter) (*Trigger, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	tr := newTrigger(
		JobDefinition{Name: "job", Cron: expr},
		MustParse(expr),
		func(ctx context.Context) error { return nil },
		triggerDeps{clock: clock, location: time.UTC, pool: sub, logger: discardLogger()},
	)
	return tr, clock
}

func blockUntilWaiters(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n), "таймер не был взведен")
}

func TestTrigger_ArmSetsNextFire(t *testing.T) {
	tr, clock := newTestTrigger(t, "* * * * *", &recordingSubmitter{})
	assert.Equal(t, StateIdle, tr.State())

	require.NoError(t, tr.Arm(clock.Now()))

	assert.Equal(t, StatePending, tr.State())
	assert.True(t, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC).Equal(tr.NextFire()))
}

func TestTrigger_FireDispatchesAndRearmsOnCompletion(t *testing.T) {
	sub := &recordingSubmitter{}
	tr, clock := newTestTrigger(t, "* * * * *", sub)
	require.NoError(t, tr.Arm(clock.Now()))
	blockUntilWaiters(t, clock, 1)

	clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool { return len(sub.accepted()) == 1 }, time.Second, 5*time.Millisecond,
		"срабатывание должно попасть в пул")
	assert.Equal(t, StateFiring, tr.State())

	d := sub.accepted()[0]
	assert.Equal(t, "job", d.exec.Job)
	assert.True(t, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC).Equal(d.exec.ScheduledAt))
	assert.NotEqual(t, uuid.Nil, d.exec.ID)

	d.done()

	assert.Equal(t, StatePending, tr.State())
	assert.True(t, time.Date(2024, 1, 1, 0, 2, 0, 0, time.UTC).Equal(tr.NextFire()))
}

func TestTrigger_NoFireWhileRunning(t *testing.T) {
	sub := &recordingSubmitter{}
	tr, clock := newTestTrigger(t, "* * * * *", sub)
	require.NoError(t, tr.Arm(clock.Now()))
	blockUntilWaiters(t, clock, 1)

	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return len(sub.accepted()) == 1 }, time.Second, 5*time.Millisecond)

	// Задача "выполняется" несколько минут: новых срабатываний быть не должно.
	clock.Advance(5 * time.Minute)
	assert.Never(t, func() bool { return len(sub.accepted()) > 1 }, 100*time.Millisecond, 10*time.Millisecond,
		"пока задача выполняется, триггер не должен срабатывать")

	// После завершения следующий момент считается от текущего времени.
	sub.accepted()[0].done()
	assert.True(t, time.Date(2024, 1, 1, 0, 7, 0, 0, time.UTC).Equal(tr.NextFire()), "получено %s", tr.NextFire())
}

func TestTrigger_SaturatedPoolSkipsFire(t *testing.T) {
	sub := &recordingSubmitter{reject: true}
	tr, clock := newTestTrigger(t, "* * * * *", sub)
	require.NoError(t, tr.Arm(clock.Now()))
	blockUntilWaiters(t, clock, 1)

	clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool { return sub.deniedCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return tr.NextFire().Equal(time.Date(2024, 1, 1, 0, 2, 0, 0, time.UTC))
	}, time.Second, 5*time.Millisecond, "пропущенное срабатывание должно перевзвести триггер")
	assert.Equal(t, StatePending, tr.State())
}

func TestTrigger_CancelIsIdempotent(t *testing.T) {
	tr, clock := newTestTrigger(t, "* * * * *", &recordingSubmitter{})
	require.NoError(t, tr.Arm(clock.Now()))

	assert.True(t, tr.Cancel())
	assert.False(t, tr.Cancel())
	assert.Equal(t, StateCancelled, tr.State())
	assert.ErrorIs(t, tr.Arm(clock.Now()), errTriggerCancelled)
}

func TestTrigger_CancelStopsFutureFires(t *testing.T) {
	sub := &recordingSubmitter{}
	tr, clock := newTestTrigger(t, "* * * * *", sub)
	require.NoError(t, tr.Arm(clock.Now()))

	tr.Cancel()
	clock.Advance(10 * time.Minute)

	assert.Never(t, func() bool { return len(sub.accepted()) > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"отмененный триггер не должен срабатывать")
}

func TestTrigger_CancelWhileFiringDoesNotRearm(t *testing.T) {
	sub := &recordingSubmitter{}
	tr, clock := newTestTrigger(t, "* * * * *", sub)
	require.NoError(t, tr.Arm(clock.Now()))
	blockUntilWaiters(t, clock, 1)

	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return len(sub.accepted()) == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, tr.Cancel())
	sub.accepted()[0].done()

	assert.Equal(t, StateCancelled, tr.State())
	clock.Advance(10 * time.Minute)
	assert.Never(t, func() bool { return len(sub.accepted()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestTrigger_StaleTimerIgnored(t *testing.T) {
	sub := &recordingSubmitter{}
	tr, clock := newTestTrigger(t, "* * * * *", sub)
	require.NoError(t, tr.Arm(clock.Now()))

	tr.mu.Lock()
	staleGen := tr.generation
	tr.mu.Unlock()
	require.NoError(t, tr.Arm(clock.Now()))

	tr.fire(staleGen)

	assert.Empty(t, sub.accepted(), "колбэк устаревшего таймера не должен запускать задачу")
}

func TestTrigger_Location(t *testing.T) {
	msk := time.FixedZone("UTC+3", 3*60*60)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tr := newTrigger(
		JobDefinition{Name: "morning", Cron: "0 9 * * *"},
		MustParse("0 9 * * *"),
		nil,
		triggerDeps{clock: clock, location: msk, pool: &recordingSubmitter{}, logger: discardLogger()},
	)

	require.NoError(t, tr.Arm(clock.Now()))

	assert.True(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC).Equal(tr.NextFire()), "получено %s", tr.NextFire())
}

func TestTriggerState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "firing", StateFiring.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "TriggerState(42)", TriggerState(42).String())
}
