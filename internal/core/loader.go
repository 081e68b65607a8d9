package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LoadError reports a sink write that failed for one table.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("append %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadResult counts the rows written per table for one chunk.
type LoadResult struct {
	Rows     map[string]int64
	Duration time.Duration
}

// Total returns the number of rows written across all tables.
func (r LoadResult) Total() int64 {
	var n int64
	for _, c := range r.Rows {
		n += c
	}
	return n
}

// Loader appends projected tables to a Sink. Writes are append-only: running
// the same feed twice doubles every table except where a chunk dedups.
type Loader struct {
	sink   Sink
	logger *slog.Logger
}

// NewLoader creates a Loader writing to sink.
func NewLoader(sink Sink, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{sink: sink, logger: logger}
}

// Append writes one table's rows in a single bulk request.
// An empty table is skipped without touching the sink.
func (l *Loader) Append(ctx context.Context, t TableRows) (int64, error) {
	if t.Len() == 0 {
		return 0, nil
	}

	n, err := l.sink.Append(ctx, t.Table, t.Columns, t.Rows)
	if err != nil {
		return n, &LoadError{Table: t.Table, Err: err}
	}
	return n, nil
}

// LoadChunk appends every view of p in load order. The first failure stops
// the chunk; tables written before it stay committed.
func (l *Loader) LoadChunk(ctx context.Context, p Projection) (LoadResult, error) {
	start := time.Now()
	result := LoadResult{Rows: make(map[string]int64, TableCount())}

	for _, t := range p.Tables() {
		n, err := l.Append(ctx, t)
		if err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		result.Rows[t.Table] = n
		l.logger.Debug("table appended", "table", t.Table, "rows", n)
	}

	result.Duration = time.Since(start)
	return result, nil
}
