package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres appends rows with COPY. Each Append is one COPY statement, so a
// table's share of a chunk is written entirely or not at all.
type Postgres struct {
	pool  *pgxpool.Pool
	owned bool
}

// OpenPostgres creates a pool for url and verifies it with a ping.
func OpenPostgres(ctx context.Context, url string, cfg PoolConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{pool: pool, owned: true}, nil
}

// NewPostgres wraps an existing pool. Close leaves the pool open.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Append(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := p.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func (p *Postgres) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
	if err := p.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (p *Postgres) Close() error {
	if p.owned {
		p.pool.Close()
	}
	return nil
}
