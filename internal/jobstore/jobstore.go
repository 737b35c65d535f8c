// Package jobstore defines persistence of job definitions: the source for
// bootstrap and the durable side of the HTTP API.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dynsched/internal/scheduler"
	"dynsched/internal/shared"
)

// Record is a persisted job definition.
type Record struct {
	Name      string
	Cron      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Definition converts the record into a scheduler definition.
func (r Record) Definition() scheduler.JobDefinition {
	return scheduler.JobDefinition{Name: r.Name, Cron: r.Cron}
}

// Store persists job definitions keyed by unique name.
//
// Implementations mark infrastructure errors with shared.KindDependencyFailure
// so callers can retry them.
type Store interface {
	// LoadAll returns every stored definition ordered by name.
	LoadAll(ctx context.Context) ([]Record, error)
	// Create inserts a new definition; an existing name yields ErrExists.
	Create(ctx context.Context, def scheduler.JobDefinition) error
	// SaveCron inserts or updates the definition and reports whether it was created.
	SaveCron(ctx context.Context, def scheduler.JobDefinition) (created bool, err error)
	// Delete removes the definition and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
	// Ping checks the backing database.
	Ping(ctx context.Context) error
	Close() error
}

// ErrExists is returned by Create for a name that is already stored.
var ErrExists = fmt.Errorf("%w: job definition already stored", shared.ErrConflict)

// Definitions converts records into scheduler definitions.
func Definitions(records []Record) []scheduler.JobDefinition {
	defs := make([]scheduler.JobDefinition, 0, len(records))
	for _, r := range records {
		defs = append(defs, r.Definition())
	}
	return defs
}

// DependencyError marks err as a storage failure, leaving nil and
// already classified errors untouched.
func DependencyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrExists) || shared.IsCanceled(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return shared.MarkKind(fmt.Errorf("%s: %w", op, err), shared.KindDependencyFailure)
}
