package store

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrate creates the catalog tables for dsn and returns the schema version.
// Memory stores need no schema and report version 0.
func Migrate(dsn string) (uint, bool, error) {
	kind, target, err := ParseDSN(dsn)
	if err != nil {
		return 0, false, err
	}

	var dir, url string
	switch kind {
	case KindPostgres:
		_, rest, _ := strings.Cut(target, "://")
		dir, url = "migrations/postgres", "pgx5://"+rest
	case KindSQLite:
		dir, url = "migrations/sqlite", "sqlite://"+target
	default:
		return 0, false, nil
	}

	source, err := iofs.New(migrationFS, dir)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}
