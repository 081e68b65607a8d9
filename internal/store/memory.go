package store

import (
	"context"
	"sync"
)

// Memory keeps appended rows in process. It backs dry runs and tests.
type Memory struct {
	mu     sync.Mutex
	tables map[string][][]any
	closed bool
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][][]any)}
}

func (m *Memory) Append(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	for _, row := range rows {
		m.tables[table] = append(m.tables[table], append([]any(nil), row...))
	}
	return int64(len(rows)), nil
}

func (m *Memory) Count(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tables[table])), nil
}

// Rows returns a copy of the rows appended to table.
func (m *Memory) Rows(table string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.tables[table]...)
}

// Closed reports whether Close has been called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
