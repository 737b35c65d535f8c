package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dynsched/internal/shared"
	"dynsched/pkg/retry"
)

// WaitForDB ожидает доступности БД, повторяя ping по политике cfg.
// Нужна при старте рядом с контейнером БД, который поднимается дольше приложения.
func WaitForDB(ctx context.Context, dsn string, cfg retry.Config) error {
	err := retry.DoWithClassifier(ctx, cfg, func(ctx context.Context) error {
		return pingDatabase(ctx, dsn, 5*time.Second)
	}, func(err error) bool {
		return !shared.IsCanceled(err)
	})
	if err != nil {
		return shared.MarkKind(fmt.Errorf("database not available: %w", err), shared.KindDependencyFailure)
	}
	return nil
}

// HealthCheckPool проверяет пул ping-ом и простым запросом.
func HealthCheckPool(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return shared.MarkKind(fmt.Errorf("health query failed: %w", err), shared.KindDependencyFailure)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health query result: got %d, want 1", result)
	}
	return nil
}

// pingDatabase пингует БД через временный пул.
func pingDatabase(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
