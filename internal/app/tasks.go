package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dynsched/internal/adapter/telegram"
	"dynsched/internal/adapter/webhook"
	"dynsched/internal/scheduler"
)

// TaskOptions selects the sinks every job execution goes through.
type TaskOptions struct {
	Logger   *slog.Logger
	Webhook  *webhook.Sink
	Notifier *telegram.Notifier
	// Timeout bounds one execution; zero means no limit.
	Timeout time.Duration
}

type sink struct {
	name    string
	deliver func(ctx context.Context) error
}

// NewTaskFactory builds the task run for every job: log the execution,
// then hand it to the configured sinks. A failing sink does not stop the
// others; their errors are joined.
func NewTaskFactory(o TaskOptions) scheduler.TaskFactory {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "tasks")

	var sinks []sink
	if o.Webhook != nil {
		sinks = append(sinks, sink{name: "webhook", deliver: o.Webhook.Deliver})
	}
	if o.Notifier.Enabled() {
		sinks = append(sinks, sink{name: "telegram", deliver: o.Notifier.Deliver})
	}

	return func(def scheduler.JobDefinition) scheduler.Task {
		task := func(ctx context.Context) error {
			attrs := []any{"name", def.Name, "cron", def.Cron}
			if exec, ok := scheduler.ExecutionFromContext(ctx); ok {
				attrs = append(attrs, "execution_id", exec.ID)
			}
			log.InfoContext(ctx, "executing job", attrs...)

			var errs []error
			for _, s := range sinks {
				if err := s.deliver(ctx); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				}
			}
			return errors.Join(errs...)
		}
		return scheduler.WithTimeout(task, o.Timeout)
	}
}

// NewHooks logs execution results and forwards failures to the notifier.
func NewHooks(log *slog.Logger, notifier *telegram.Notifier) scheduler.JobHooks {
	if log == nil {
		log = slog.Default()
	}
	hooks := scheduler.JobHooks{
		OnJobFinish: func(exec scheduler.Execution, d time.Duration, err error) {
			log.Debug("job finished",
				"name", exec.Job,
				"execution_id", exec.ID,
				"duration", d,
				"lag", exec.FiredAt.Sub(exec.ScheduledAt),
				"ok", err == nil,
			)
		},
	}
	if notifier.Enabled() {
		hooks.OnJobError = notifier.JobFailed
	}
	return hooks
}
