package sqlite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// BuildMigrateURL строит URL для golang-migrate с учетом особенностей ОС.
// На Windows путь "C:\..." превращается в "sqlite:///C:/...", на Unix "/..." в "sqlite:///...".
func BuildMigrateURL(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	urlPath := filepath.ToSlash(absPath)
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	return "sqlite://" + urlPath, nil
}

// ApplyMigrations применяет миграции из fsys/dir к файлу БД и возвращает итоговую версию.
// migrate открывает собственное соединение, поэтому in-memory базы не поддерживаются.
func ApplyMigrations(dbPath string, fsys fs.FS, dir string) (uint, error) {
	if parent := filepath.Dir(dbPath); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", parent, err)
		}
	}

	databaseURL, err := BuildMigrateURL(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to build database URL: %w", err)
	}

	source, err := iofs.New(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("database is in dirty state at version %d", version)
	}
	return version, nil
}
