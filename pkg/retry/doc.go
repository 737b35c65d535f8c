// Package retry runs an operation with exponential backoff and jitter.
//
// Errors are classified with the shared error kinds: timeouts and
// dependency failures are retried, validation or not-found errors are not,
// and cancellation stops immediately.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    defs, err = store.LoadAll(ctx)
//	    return err
//	})
//
// A custom Classifier narrows what is retried, for example SQLITE_BUSY only:
//
//	err := retry.DoWithClassifier(ctx, cfg, fn, isBusy)
//
// Delays run on a clockwork.Clock, so tests advance a FakeClock instead of sleeping.
package retry
