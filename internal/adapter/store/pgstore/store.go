// Package pgstore stores job definitions in PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dynsched/internal/jobstore"
	"dynsched/internal/platform/pg"
	"dynsched/internal/scheduler"
	"dynsched/migrations"
)

// uniqueViolation is the SQLSTATE of unique_violation.
const uniqueViolation = "23505"

// Store implements jobstore.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	tx   *pg.TxRunner
}

var _ jobstore.Store = (*Store)(nil)

// Open applies migrations and connects a pool.
func Open(ctx context.Context, dsn string, opts pg.PoolOptions) (*Store, error) {
	if _, err := pg.ApplyMigrations(dsn, migrations.FS, migrations.PostgresDir); err != nil {
		return nil, jobstore.DependencyError("migrate postgres", err)
	}
	pool, err := pg.NewPool(ctx, dsn, opts)
	if err != nil {
		return nil, jobstore.DependencyError("connect postgres", err)
	}
	return New(pool), nil
}

// New wraps an existing pool whose schema is already migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, tx: pg.NewTxRunner(pool)}
}

func (s *Store) LoadAll(ctx context.Context) ([]jobstore.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_name, cron, created_at, updated_at FROM job_config ORDER BY job_name`)
	if err != nil {
		return nil, jobstore.DependencyError("load job definitions", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (jobstore.Record, error) {
		var r jobstore.Record
		err := row.Scan(&r.Name, &r.Cron, &r.CreatedAt, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, jobstore.DependencyError("load job definitions", err)
	}
	return records, nil
}

func (s *Store) Create(ctx context.Context, def scheduler.JobDefinition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_config (job_name, cron) VALUES ($1, $2)`, def.Name, def.Cron)
	if isUniqueViolation(err) {
		return fmt.Errorf("job %q: %w", def.Name, jobstore.ErrExists)
	}
	return jobstore.DependencyError("create job definition", err)
}

func (s *Store) SaveCron(ctx context.Context, def scheduler.JobDefinition) (bool, error) {
	var created bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := s.tx.Querier(ctx)

		var exists bool
		err := q.QueryRow(ctx,
			`SELECT true FROM job_config WHERE job_name = $1 FOR UPDATE`, def.Name).Scan(&exists)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			created = true
			_, err = q.Exec(ctx,
				`INSERT INTO job_config (job_name, cron) VALUES ($1, $2)
				 ON CONFLICT (job_name) DO UPDATE SET cron = EXCLUDED.cron, updated_at = now()`,
				def.Name, def.Cron)
			return err
		case err != nil:
			return err
		}

		_, err = q.Exec(ctx,
			`UPDATE job_config SET cron = $1, updated_at = now() WHERE job_name = $2`, def.Cron, def.Name)
		return err
	})
	if err != nil {
		return false, jobstore.DependencyError("save job definition", err)
	}
	return created, nil
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_config WHERE job_name = $1`, name)
	if err != nil {
		return false, jobstore.DependencyError("delete job definition", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return jobstore.DependencyError("ping postgres", pg.HealthCheckPool(ctx, s.pool))
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
