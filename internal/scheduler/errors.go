package scheduler

import (
	"errors"
	"fmt"

	"dynsched/internal/shared"
)

var (
	// ErrEmptyJobName возвращается для определения задачи без имени.
	ErrEmptyJobName = fmt.Errorf("%w: job name is required", shared.ErrValidation)
	// ErrEngineStopped возвращается при изменении расписания после остановки движка.
	ErrEngineStopped = errors.New("scheduler engine stopped")

	errTriggerCancelled = errors.New("trigger cancelled")
	errNoNextFire       = errors.New("no next fire time")
)

// InvalidScheduleError - cron-выражение некорректно или не срабатывает никогда.
// Классифицируется как shared.KindValidation.
type InvalidScheduleError struct {
	Expr string
	Err  error
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %v", e.Expr, e.Err)
}

func (e *InvalidScheduleError) Unwrap() error { return e.Err }

// Is сопоставляет ошибку с shared.ErrValidation.
func (e *InvalidScheduleError) Is(target error) bool { return target == shared.ErrValidation }

// DuplicateJobError - задача с таким именем уже запланирована.
// Классифицируется как shared.KindConflict.
type DuplicateJobError struct {
	Name string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job %q is already scheduled", e.Name)
}

// Is сопоставляет ошибку с shared.ErrConflict.
func (e *DuplicateJobError) Is(target error) bool { return target == shared.ErrConflict }

// JobNotFoundError - задача с таким именем не запланирована.
// Классифицируется как shared.KindNotFound.
type JobNotFoundError struct {
	Name string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %q not found", e.Name)
}

// Is сопоставляет ошибку с shared.ErrNotFound.
func (e *JobNotFoundError) Is(target error) bool { return target == shared.ErrNotFound }
