// Package migrations embeds SQL migration files for the job_config schema.
package migrations

import "embed"

// FS holds the embedded SQL migration files, one directory per driver.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

const (
	// SQLiteDir is the directory of SQLite migrations inside FS.
	SQLiteDir = "sqlite"
	// PostgresDir is the directory of PostgreSQL migrations inside FS.
	PostgresDir = "postgres"
)
