package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Execution описывает одно срабатывание задачи.
type Execution struct {
	ID          uuid.UUID
	Job         string
	Cron        string
	ScheduledAt time.Time
	FiredAt     time.Time
}

type executionKey struct{}

// ContextWithExecution сохраняет метаданные срабатывания в контексте.
func ContextWithExecution(ctx context.Context, exec Execution) context.Context {
	return context.WithValue(ctx, executionKey{}, exec)
}

// ExecutionFromContext извлекает метаданные срабатывания, если задача запущена движком.
func ExecutionFromContext(ctx context.Context) (Execution, bool) {
	exec, ok := ctx.Value(executionKey{}).(Execution)
	return exec, ok
}
