package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TriggerState - состояние триггера задачи.
type TriggerState int32

const (
	// StateIdle - триггер создан, но еще не взведен.
	StateIdle TriggerState = iota
	// StatePending - таймер взведен на следующий момент срабатывания.
	StatePending
	// StateFiring - срабатывание передано в пул и еще не завершилось.
	StateFiring
	// StateCancelled - триггер отменен, дальнейших срабатываний не будет.
	StateCancelled
)

func (s TriggerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFiring:
		return "firing"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("TriggerState(%d)", int32(s))
	}
}

// submitter принимает срабатывания без блокировки. Реализуется *Pool.
type submitter interface {
	TrySubmit(d dispatch) bool
}

// triggerDeps - общие зависимости триггеров одного движка.
type triggerDeps struct {
	clock    clockwork.Clock
	location *time.Location
	pool     submitter
	logger   *slog.Logger
}

// Trigger - отменяемый дескриптор живой задачи.
//
// Переходы: Idle -> Pending (Arm), Pending -> Firing (срабатывание таймера),
// Firing -> Pending (задача завершена, взведен следующий момент),
// любое -> Cancelled (Cancel). Из Cancelled выхода нет.
//
// Проверка отмены и передача срабатывания в пул выполняются под одним мьютексом,
// поэтому после возврата из Cancel новых выполнений не начинается.
type Trigger struct {
	def      JobDefinition
	schedule Schedule
	task     Task
	deps     triggerDeps

	mu         sync.Mutex
	state      TriggerState
	next       time.Time
	timer      clockwork.Timer
	generation uint64 // номер текущего таймера; устаревшие колбэки игнорируются
}

func newTrigger(def JobDefinition, schedule Schedule, task Task, deps triggerDeps) *Trigger {
	if deps.location == nil {
		deps.location = time.Local
	}
	return &Trigger{
		def:      def,
		schedule: schedule,
		task:     task,
		deps:     deps,
	}
}

// Arm вычисляет следующий момент срабатывания после from и взводит таймер.
func (t *Trigger) Arm(from time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateCancelled {
		return errTriggerCancelled
	}
	return t.armLocked(from)
}

// armLocked взводит таймер. Вызывающий держит t.mu.
func (t *Trigger) armLocked(from time.Time) error {
	next := NextFireAfter(t.schedule, from.In(t.deps.location))
	if next.IsZero() {
		t.state = StateCancelled
		return fmt.Errorf("%w after %s", errNoNextFire, from.Format(time.RFC3339))
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	gen := t.generation
	t.next = next
	t.state = StatePending

	delay := next.Sub(t.deps.clock.Now())
	if delay < 0 {
		delay = 0
	}
	t.timer = t.deps.clock.AfterFunc(delay, func() { t.fire(gen) })
	return nil
}

// fire - колбэк таймера.
func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePending || gen != t.generation {
		return
	}

	exec := Execution{
		ID:          uuid.New(),
		Job:         t.def.Name,
		Cron:        t.def.Cron,
		ScheduledAt: t.next,
		FiredAt:     t.deps.clock.Now(),
	}
	d := dispatch{
		exec: exec,
		task: t.task,
		done: func() { t.complete(gen) },
	}

	if !t.deps.pool.TrySubmit(d) {
		t.deps.logger.Warn("worker pool saturated, fire skipped",
			"name", t.def.Name,
			"scheduled_at", exec.ScheduledAt,
		)
		t.rearmLocked()
		return
	}

	t.state = StateFiring
	t.deps.logger.Debug("job fired", "name", t.def.Name, "execution_id", exec.ID, "scheduled_at", exec.ScheduledAt)
}

// complete вызывается пулом после выполнения задачи. Следующий момент
// считается от текущего времени, пропущенные за время выполнения моменты не догоняются.
func (t *Trigger) complete(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateFiring || gen != t.generation {
		return
	}
	t.rearmLocked()
}

func (t *Trigger) rearmLocked() {
	if err := t.armLocked(t.deps.clock.Now()); err != nil {
		t.deps.logger.Error("trigger stopped", "name", t.def.Name, "cron", t.def.Cron, "error", err)
	}
}

// Cancel отменяет триггер. Идемпотентна: повторный вызов возвращает false.
// Выполняющееся срабатывание не прерывается, но следующее не будет взведено.
func (t *Trigger) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateCancelled {
		return false
	}
	t.state = StateCancelled
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return true
}

// State возвращает текущее состояние.
func (t *Trigger) State() TriggerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// NextFire возвращает момент, на который взведен таймер.
func (t *Trigger) NextFire() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// Definition возвращает определение задачи.
func (t *Trigger) Definition() JobDefinition {
	return t.def
}

// Info возвращает снимок состояния триггера.
func (t *Trigger) Info() JobInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return JobInfo{
		Name:     t.def.Name,
		Cron:     t.def.Cron,
		NextFire: t.next,
		State:    t.state,
	}
}
