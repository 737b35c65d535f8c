// Package sqlitestore stores job definitions in an embedded SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dynsched/internal/jobstore"
	"dynsched/internal/platform/sqlite"
	"dynsched/internal/scheduler"
	"dynsched/migrations"
)

const timeLayout = time.RFC3339Nano

// Store implements jobstore.Store on SQLite.
type Store struct {
	db  *sql.DB
	tx  *sqlite.TxRunner
	now func() time.Time
}

var _ jobstore.Store = (*Store)(nil)

// Open migrates the database file at path and opens it.
func Open(ctx context.Context, path string, opts sqlite.DBOptions) (*Store, error) {
	if _, err := sqlite.ApplyMigrations(path, migrations.FS, migrations.SQLiteDir); err != nil {
		return nil, jobstore.DependencyError("migrate sqlite", err)
	}
	db, err := sqlite.NewDB(ctx, path, opts)
	if err != nil {
		return nil, jobstore.DependencyError("open sqlite", err)
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{
		db:  db,
		tx:  sqlite.NewTxRunner(db),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) LoadAll(ctx context.Context) ([]jobstore.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_name, cron, created_at, updated_at FROM job_config ORDER BY job_name`)
	if err != nil {
		return nil, jobstore.DependencyError("load job definitions", err)
	}
	defer rows.Close()

	var records []jobstore.Record
	for rows.Next() {
		var (
			r                    jobstore.Record
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.Name, &r.Cron, &createdAt, &updatedAt); err != nil {
			return nil, jobstore.DependencyError("scan job definition", err)
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, jobstore.DependencyError("load job definitions", err)
	}
	return records, nil
}

func (s *Store) Create(ctx context.Context, def scheduler.JobDefinition) error {
	now := s.now().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_config (job_name, cron, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		def.Name, def.Cron, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("job %q: %w", def.Name, jobstore.ErrExists)
	}
	return jobstore.DependencyError("create job definition", err)
}

func (s *Store) SaveCron(ctx context.Context, def scheduler.JobDefinition) (bool, error) {
	var created bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created = false
		q := s.tx.Querier(ctx)
		now := s.now().Format(timeLayout)

		res, err := q.ExecContext(ctx,
			`UPDATE job_config SET cron = ?, updated_at = ? WHERE job_name = ?`,
			def.Cron, now, def.Name)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n > 0 {
			return err
		}

		created = true
		_, err = q.ExecContext(ctx,
			`INSERT INTO job_config (job_name, cron, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			def.Name, def.Cron, now, now)
		return err
	})
	if err != nil {
		return false, jobstore.DependencyError("save job definition", err)
	}
	return created, nil
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_config WHERE job_name = ?`, name)
	if err != nil {
		return false, jobstore.DependencyError("delete job definition", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, jobstore.DependencyError("delete job definition", err)
	}
	return n > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return jobstore.DependencyError("ping sqlite", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqlErr *moderncsqlite.Error
	return errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
