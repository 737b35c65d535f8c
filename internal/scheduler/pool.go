package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultWorkers - число воркеров пула по умолчанию.
	DefaultWorkers = 4
	// DefaultQueueSize - ёмкость очереди срабатываний по умолчанию.
	DefaultQueueSize = 64
)

// JobHooks содержит необязательные хуки для наблюдаемости.
// Вызываются из горутины воркера.
type JobHooks struct {
	OnJobStart  func(exec Execution)
	OnJobFinish func(exec Execution, duration time.Duration, err error)
	OnJobError  func(exec Execution, err error)
}

// PoolConfig содержит конфигурацию пула воркеров.
type PoolConfig struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
	Hooks     JobHooks
}

// dispatch - одно срабатывание, переданное в пул.
type dispatch struct {
	exec Execution
	task Task
	// done вызывается после завершения задачи, в том числе после паники.
	done func()
}

// Pool - ограниченный пул воркеров с неблокирующей постановкой в очередь.
// Срабатывания разных задач выполняются параллельно, но не более Workers одновременно.
type Pool struct {
	ctx     context.Context
	logger  *slog.Logger
	hooks   JobHooks
	workers int
	queue   chan dispatch

	mu     sync.RWMutex // защищает closed и отправку в queue
	closed bool

	wg        sync.WaitGroup
	inFlight  atomic.Int64
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool создает пул. Контекст ctx передается выполняемым задачам;
// его отмена сигнализирует задачам о завершении работы.
func NewPool(ctx context.Context, cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		ctx:     ctx,
		logger:  logger,
		hooks:   cfg.Hooks,
		workers: workers,
		queue:   make(chan dispatch, queueSize),
	}
}

// Start запускает воркеры. Повторные вызовы игнорируются.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(p.workers)
		for i := 0; i < p.workers; i++ {
			go p.worker()
		}
		p.logger.Debug("worker pool started", "workers", p.workers, "queue_size", cap(p.queue))
	})
}

// TrySubmit ставит срабатывание в очередь, не блокируясь.
// Возвращает false, если очередь заполнена или пул остановлен.
func (p *Pool) TrySubmit(d dispatch) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- d:
		return true
	default:
		return false
	}
}

// Stop закрывает очередь и ждет, пока воркеры выполнят уже принятые срабатывания.
// При истечении ctx возвращает ctx.Err(); воркеры завершатся в фоне.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool stop deadline exceeded", "in_flight", p.inFlight.Load())
		return ctx.Err()
	}
}

// InFlight возвращает число выполняющихся сейчас задач.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Queued возвращает число срабатываний, ожидающих свободного воркера.
func (p *Pool) Queued() int {
	return len(p.queue)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for d := range p.queue {
		p.run(d)
	}
}

// run выполняет одно срабатывание с хуками и восстановлением после паники.
func (p *Pool) run(d dispatch) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	if d.done != nil {
		defer d.done()
	}

	exec := d.exec
	if p.hooks.OnJobStart != nil {
		p.hooks.OnJobStart(exec)
	}

	start := time.Now()
	err := p.invoke(d)
	duration := time.Since(start)

	if p.hooks.OnJobFinish != nil {
		p.hooks.OnJobFinish(exec, duration, err)
	}

	if err != nil {
		p.logger.Error("job failed",
			"name", exec.Job,
			"execution_id", exec.ID,
			"error", err,
			"duration", duration,
		)
		if p.hooks.OnJobError != nil {
			p.hooks.OnJobError(exec, err)
		}
		return
	}
	p.logger.Debug("job completed successfully", "name", exec.Job, "execution_id", exec.ID, "duration", duration)
}

func (p *Pool) invoke(d dispatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "name", d.exec.Job, "execution_id", d.exec.ID, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if d.task == nil {
		return nil
	}
	return d.task(ContextWithExecution(p.ctx, d.exec))
}
