package scheduler

import (
	"context"
	"strings"
	"time"
)

// JobDefinition - неизменяемое описание задачи: уникальное имя и cron-выражение.
type JobDefinition struct {
	Name string
	Cron string
}

// Normalize возвращает копию с обрезанными пробелами.
func (d JobDefinition) Normalize() JobDefinition {
	return JobDefinition{Name: strings.TrimSpace(d.Name), Cron: strings.TrimSpace(d.Cron)}
}

// Validate проверяет имя и разбирает расписание.
func (d JobDefinition) Validate() (Schedule, error) {
	if strings.TrimSpace(d.Name) == "" {
		return Schedule{}, ErrEmptyJobName
	}
	return Parse(d.Cron)
}

// Task - непрозрачное действие, выполняемое при срабатывании задачи.
// Ядро не анализирует результат, кроме логирования и вызова хуков.
type Task func(ctx context.Context) error

// TaskFactory возвращает действие для определения задачи.
type TaskFactory func(def JobDefinition) Task

// WithTimeout ограничивает время одного выполнения задачи.
// Ядро само таймаутов не накладывает, это политика вызывающей стороны.
func WithTimeout(task Task, d time.Duration) Task {
	if d <= 0 {
		return task
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return task(ctx)
	}
}

// JobInfo - снимок состояния запланированной задачи.
type JobInfo struct {
	Name     string
	Cron     string
	NextFire time.Time
	State    TriggerState
}
