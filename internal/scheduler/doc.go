// Package scheduler is a dynamic cron scheduler: named jobs whose schedules
// are added, replaced and cancelled at runtime without a restart.
//
// Features:
//   - Cron expressions via github.com/robfig/cron/v3: 5 fields, optional
//     leading seconds field, descriptors (@daily, @every 5m), CRON_TZ= prefix
//   - Expressions that never fire are rejected at parse time
//   - At most one live trigger per job name; replace is atomic
//   - Cancel is idempotent and guarantees no new executions after return
//   - Bounded worker pool; a fire that finds the queue full is skipped
//   - Next fire is armed after the previous execution completes, missed
//     instants are not replayed
//   - Injectable clock (github.com/jonboulle/clockwork) for deterministic tests
//   - Panic recovery, structured slog logging and observability hooks
//
// Basic usage:
//
//	engine := scheduler.New(scheduler.Config{
//		Logger: logger,
//		Tasks: func(def scheduler.JobDefinition) scheduler.Task {
//			return func(ctx context.Context) error {
//				exec, _ := scheduler.ExecutionFromContext(ctx)
//				logger.Info("tick", "name", def.Name, "execution_id", exec.ID)
//				return nil
//			}
//		},
//	})
//	engine.Start()
//	defer engine.Stop(context.Background())
//
//	err := engine.ScheduleJob(scheduler.JobDefinition{Name: "report", Cron: "0 9 * * MON-FRI"})
//	err = engine.UpdateJob(scheduler.JobDefinition{Name: "report", Cron: "0 10 * * MON-FRI"})
//	err = engine.CancelJob("report")
//
// Errors are typed (*InvalidScheduleError, *DuplicateJobError, *JobNotFoundError)
// and also match the shared sentinels, so shared.KindOf maps them to
// KindValidation, KindConflict and KindNotFound.
package scheduler
