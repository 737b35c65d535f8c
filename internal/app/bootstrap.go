package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dynsched/internal/jobstore"
	"dynsched/internal/scheduler"
	"dynsched/pkg/retry"
)

// Bootstrap loads stored definitions and schedules them. Loading is retried
// on transient store failures; a bad record is logged and skipped so the
// rest of the schedule still starts.
func Bootstrap(ctx context.Context, store jobstore.Store, engine *scheduler.Engine, policy retry.Config, log *slog.Logger) error {
	var records []jobstore.Record
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		log.Warn("loading jobs failed, retrying", "attempt", attempt, "delay", next, "err", err)
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		records, err = store.LoadAll(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	if err := engine.Bootstrap(jobstore.Definitions(records)); err != nil {
		log.Error("some stored jobs were not scheduled", "err", err)
	}
	return nil
}
