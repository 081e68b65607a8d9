package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/JonMunkholm/catalog-etl/internal/core"
	"github.com/JonMunkholm/catalog-etl/internal/store"
)

// feedColumns returns every known feed column, in feed order.
func feedColumns() []string {
	specs := core.FieldSpecs()
	cols := make([]string, len(specs))
	for i, f := range specs {
		cols[i] = f.Name
	}
	return cols
}

// feedCSV renders rows (column -> value) under the given header.
func feedCSV(t *testing.T, header []string, rows ...map[string]string) string {
	t.Helper()
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(header); err != nil {
		t.Fatal(err)
	}
	for _, kv := range rows {
		rec := make([]string, len(header))
		for i, col := range header {
			rec[i] = kv[col]
		}
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	w.Flush()
	return b.String()
}

// largeFeed returns n rows with unique product ids. bad, when > 0, is the
// 1-based data row given a malformed quoted field.
func largeFeed(n, bad int) string {
	header := feedColumns()
	pad := strings.Repeat(",", len(header)-1)

	var b strings.Builder
	b.WriteString(strings.Join(header, ",") + "\n")
	for i := 1; i <= n; i++ {
		if i == bad {
			fmt.Fprintf(&b, "\"p%d\"x%s\n", i, pad)
			continue
		}
		fmt.Fprintf(&b, "p%d%s\n", i, pad)
	}
	return b.String()
}

func gzipString(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// stubFetcher writes fixed bytes to dest.
type stubFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, _, dest string) (int64, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(dest, f.data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(f.data)), nil
}

// blockingFetcher waits for release (or ctx) before writing data.
type blockingFetcher struct {
	release chan struct{}
	data    []byte
}

func (f *blockingFetcher) Fetch(ctx context.Context, _, dest string) (int64, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	if err := os.WriteFile(dest, f.data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(f.data)), nil
}

// sinkProbe hands out sinks over one shared Memory store and records
// successful opens, closes and an optional failing table.
type sinkProbe struct {
	mem     *store.Memory
	openErr error
	failOn  string

	mu     sync.Mutex
	opens  int
	closes int
}

func newSinkProbe() *sinkProbe {
	return &sinkProbe{mem: store.NewMemory()}
}

func (p *sinkProbe) open(context.Context) (core.Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.opens++
	return &probeSink{probe: p}, nil
}

func (p *sinkProbe) count(table string) int {
	n, _ := p.mem.Count(context.Background(), table)
	return int(n)
}

func (p *sinkProbe) counts() (opens, closes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens, p.closes
}

type probeSink struct {
	probe *sinkProbe
}

func (s *probeSink) Append(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if table == s.probe.failOn {
		return 0, errors.New("relation does not exist")
	}
	return s.probe.mem.Append(ctx, table, columns, rows)
}

func (s *probeSink) Close() error {
	s.probe.mu.Lock()
	defer s.probe.mu.Unlock()
	s.probe.closes++
	return nil
}

func newTestPipeline(t *testing.T, cfg Config, fetcher Fetcher, probe *sinkProbe) *Pipeline {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = "https://feeds.example.com/catalog.csv.gz"
	}
	return New(cfg, Deps{
		Fetcher:  fetcher,
		OpenSink: probe.open,
	})
}
