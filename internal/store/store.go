// Package store provides the storage sinks for catalog loads.
//
// Every sink appends rows and nothing else: no truncation, no upsert, no key
// checks. The schema is created separately by [Migrate].
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/catalog-etl/internal/core"
)

// ErrClosed is returned by a sink used after Close.
var ErrClosed = errors.New("store: sink is closed")

// ErrUnsupportedDSN is returned for a database URL with an unknown scheme.
var ErrUnsupportedDSN = errors.New("store: unsupported database url")

// Store is a sink that can also report table sizes.
type Store interface {
	core.Sink
	Count(ctx context.Context, table string) (int64, error)
}

// PoolConfig tunes the PostgreSQL connection pool. Zero values keep the pgx
// defaults.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Kind identifies a storage engine.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
	KindMemory   Kind = "memory"
)

// ParseDSN returns the engine for dsn and the engine-specific target: the
// connection URL for PostgreSQL, the file path for SQLite, the name for memory.
func ParseDSN(dsn string) (Kind, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return KindPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqliteTarget(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		return sqliteTarget(strings.TrimPrefix(dsn, "file:"))
	case strings.HasPrefix(dsn, "memory://"):
		return KindMemory, strings.TrimPrefix(dsn, "memory://"), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDSN, redact(dsn))
	}
}

func sqliteTarget(path string) (Kind, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("%w: sqlite url has no path", ErrUnsupportedDSN)
	}
	return KindSQLite, path, nil
}

// Open connects to the store named by dsn.
func Open(ctx context.Context, dsn string, cfg PoolConfig) (Store, error) {
	kind, target, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPostgres:
		return OpenPostgres(ctx, target, cfg)
	case KindSQLite:
		return OpenSQLite(ctx, target)
	default:
		return NewMemory(), nil
	}
}

// quoteIdent quotes a table or column name for SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// redact hides everything before the host so credentials never reach logs.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "****"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "****" + rest[at:]
	}
	return scheme + "://" + rest
}
