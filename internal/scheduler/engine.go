package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"dynsched/internal/shared"
)

// Config содержит конфигурацию движка.
type Config struct {
	Logger *slog.Logger
	// Clock - источник времени и таймеров. По умолчанию системные часы.
	Clock clockwork.Clock
	// Location - часовой пояс вычисления расписаний. По умолчанию time.Local.
	// Выражения с префиксом CRON_TZ= используют свой пояс.
	Location *time.Location
	// Workers - размер пула воркеров (по умолчанию DefaultWorkers).
	Workers int
	// QueueSize - ёмкость очереди срабатываний (по умолчанию DefaultQueueSize).
	QueueSize int
	// Tasks возвращает действие для задачи. По умолчанию задача только логирует запуск.
	Tasks TaskFactory
	Hooks JobHooks
}

// Engine управляет набором именованных задач, расписание которых
// меняется во время работы без перезапуска.
type Engine struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	clock    clockwork.Clock
	location *time.Location
	tasks    TaskFactory

	registry *Registry
	pool     *Pool

	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

// New создает движок с background контекстом.
func New(cfg Config) *Engine {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext создает движок с указанным родительским контекстом.
// Отмена родительского контекста останавливает движок.
func NewWithContext(parentCtx context.Context, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(parentCtx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	e := &Engine{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		clock:    clock,
		location: location,
		tasks:    cfg.Tasks,
		registry: NewRegistry(),
	}
	if e.tasks == nil {
		e.tasks = e.loggingTask
	}
	e.pool = NewPool(ctx, PoolConfig{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Logger:    logger,
		Hooks:     cfg.Hooks,
	})
	return e
}

// ScheduleJob планирует новую задачу.
// Ошибки: *InvalidScheduleError, *DuplicateJobError, ErrEmptyJobName.
func (e *Engine) ScheduleJob(def JobDefinition) error {
	def, schedule, err := e.prepare(def)
	if err != nil {
		e.logger.Warn("job rejected", "name", def.Name, "cron", def.Cron, "error", err)
		return err
	}

	var trigger *Trigger
	err = e.registry.Atomically(func(tx *RegistryTx) error {
		if existing, ok := tx.Get(def.Name); ok && existing.State() != StateCancelled {
			return &DuplicateJobError{Name: def.Name}
		}
		trigger, err = e.install(tx, def, schedule)
		return err
	})
	if err != nil {
		e.logger.Warn("job not scheduled", "name", def.Name, "cron", def.Cron, "error", err)
		return err
	}

	e.logger.Info("job scheduled", "name", def.Name, "cron", def.Cron, "next_fire", trigger.NextFire())
	return nil
}

// UpdateJob заменяет расписание задачи или создает ее, если задачи нет.
// Новое выражение проверяется до отмены старого триггера: при ошибке
// разбора запланированная задача остается без изменений.
func (e *Engine) UpdateJob(def JobDefinition) error {
	def, schedule, err := e.prepare(def)
	if err != nil {
		e.logger.Warn("job update rejected", "name", def.Name, "cron", def.Cron, "error", err)
		return err
	}

	var (
		trigger  *Trigger
		previous string
		replaced bool
	)
	err = e.registry.Atomically(func(tx *RegistryTx) error {
		if old, ok := tx.Get(def.Name); ok {
			previous = old.Definition().Cron
			replaced = old.Cancel()
			tx.Remove(def.Name)
		}
		trigger, err = e.install(tx, def, schedule)
		return err
	})
	if err != nil {
		e.logger.Error("job update failed", "name", def.Name, "cron", def.Cron, "error", err)
		return err
	}

	if replaced {
		e.logger.Info("job rescheduled",
			"name", def.Name,
			"previous_cron", previous,
			"cron", def.Cron,
			"next_fire", trigger.NextFire(),
		)
	} else {
		e.logger.Info("job scheduled", "name", def.Name, "cron", def.Cron, "next_fire", trigger.NextFire())
	}
	return nil
}

// CancelJob отменяет задачу и удаляет ее из реестра.
// Выполняющееся срабатывание доводится до конца, новых не будет.
// Возвращает *JobNotFoundError, если задачи нет.
func (e *Engine) CancelJob(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyJobName
	}

	err := e.registry.Atomically(func(tx *RegistryTx) error {
		trigger, ok := tx.Get(name)
		if !ok {
			return &JobNotFoundError{Name: name}
		}
		trigger.Cancel()
		tx.Remove(name)
		return nil
	})
	if err != nil {
		e.logger.Warn("job not cancelled", "name", name, "error", err)
		return err
	}

	e.logger.Info("job cancelled", "name", name)
	return nil
}

// Bootstrap планирует набор сохраненных определений при старте.
// Ошибка одного определения не мешает остальным; все ошибки
// возвращаются вместе через errors.Join.
func (e *Engine) Bootstrap(defs []JobDefinition) error {
	var (
		errs      []error
		scheduled int
	)
	for _, def := range defs {
		if err := e.ScheduleJob(def); err != nil {
			e.logger.Error("bootstrap: job skipped", "name", def.Name, "cron", def.Cron, "error", err)
			errs = append(errs, fmt.Errorf("job %q: %w", def.Name, err))
			continue
		}
		scheduled++
	}

	e.logger.Info("bootstrap completed", "scheduled", scheduled, "failed", len(errs))
	return errors.Join(errs...)
}

// Job возвращает снимок состояния задачи.
func (e *Engine) Job(name string) (JobInfo, error) {
	name = strings.TrimSpace(name)
	trigger, ok := e.registry.Get(name)
	if !ok {
		return JobInfo{}, &JobNotFoundError{Name: name}
	}
	return trigger.Info(), nil
}

// Jobs возвращает снимки всех задач, отсортированные по имени.
func (e *Engine) Jobs() []JobInfo {
	triggers := e.registry.Snapshot()
	out := make([]JobInfo, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, t.Info())
	}
	return out
}

// Start запускает пул воркеров. Срабатывания, наступившие до Start,
// ставятся в очередь и выполняются после запуска.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.logger.Info("starting scheduler", "location", e.location.String(), "jobs", e.registry.Len())
		e.pool.Start()

		go func() {
			<-e.ctx.Done()
			e.stopOnce.Do(e.stop)
			_ = e.pool.Stop(context.Background())
		}()
	})
}

// Stop отменяет все триггеры, сигнализирует выполняющимся задачам через
// контекст и ждет их завершения не дольше ctx.
// Повторные вызовы безопасны.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(e.stop)

	if err := e.pool.Stop(ctx); err != nil {
		return shared.MarkKind(err, shared.KindTimeout)
	}
	e.logger.Debug("scheduler stopped")
	return nil
}

// IsRunning возвращает true, пока движок не остановлен.
func (e *Engine) IsRunning() bool {
	select {
	case <-e.ctx.Done():
		return false
	default:
		return true
	}
}

// stop отменяет все триггеры и контекст задач.
func (e *Engine) stop() {
	e.logger.Info("stopping scheduler", "jobs", e.registry.Len())
	_ = e.registry.Atomically(func(tx *RegistryTx) error {
		for name, t := range tx.r.triggers {
			t.Cancel()
			delete(tx.r.triggers, name)
		}
		return nil
	})
	e.cancel()
}

// prepare нормализует и проверяет определение.
func (e *Engine) prepare(def JobDefinition) (JobDefinition, Schedule, error) {
	def = def.Normalize()
	if !e.IsRunning() {
		return def, Schedule{}, ErrEngineStopped
	}
	schedule, err := def.Validate()
	if err != nil {
		return def, Schedule{}, err
	}
	return def, schedule, nil
}

// install создает, взводит и регистрирует триггер. Вызывается внутри Atomically.
func (e *Engine) install(tx *RegistryTx, def JobDefinition, schedule Schedule) (*Trigger, error) {
	trigger := newTrigger(def, schedule, e.tasks(def), triggerDeps{
		clock:    e.clock,
		location: e.location,
		pool:     e.pool,
		logger:   e.logger,
	})
	if err := trigger.Arm(e.clock.Now()); err != nil {
		return nil, err
	}
	if err := tx.Put(def.Name, trigger); err != nil {
		trigger.Cancel()
		return nil, err
	}
	return trigger, nil
}

// loggingTask - действие по умолчанию.
func (e *Engine) loggingTask(def JobDefinition) Task {
	return func(ctx context.Context) error {
		attrs := []any{"name", def.Name, "cron", def.Cron}
		if exec, ok := ExecutionFromContext(ctx); ok {
			attrs = append(attrs, "execution_id", exec.ID, "scheduled_at", exec.ScheduledAt)
		}
		e.logger.InfoContext(ctx, "executing job", attrs...)
		return nil
	}
}
