package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn        string
		wantKind   Kind
		wantTarget string
		wantErr    bool
	}{
		{dsn: "postgres://u:p@localhost:5432/catalog", wantKind: KindPostgres, wantTarget: "postgres://u:p@localhost:5432/catalog"},
		{dsn: "postgresql://localhost/catalog", wantKind: KindPostgres, wantTarget: "postgresql://localhost/catalog"},
		{dsn: "sqlite://products.db", wantKind: KindSQLite, wantTarget: "products.db"},
		{dsn: "sqlite:///var/lib/catalog.db", wantKind: KindSQLite, wantTarget: "/var/lib/catalog.db"},
		{dsn: "file:products.db", wantKind: KindSQLite, wantTarget: "products.db"},
		{dsn: "memory://", wantKind: KindMemory, wantTarget: ""},
		{dsn: "sqlite://", wantErr: true},
		{dsn: "mysql://localhost/catalog", wantErr: true},
		{dsn: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			kind, target, err := ParseDSN(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDSN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedDSN) {
					t.Errorf("error should wrap ErrUnsupportedDSN: %v", err)
				}
				return
			}
			if kind != tt.wantKind || target != tt.wantTarget {
				t.Errorf("ParseDSN() = (%q, %q), want (%q, %q)", kind, target, tt.wantKind, tt.wantTarget)
			}
		})
	}
}

func TestParseDSN_RedactsCredentials(t *testing.T) {
	_, _, err := ParseDSN("mysql://admin:hunter2@db:3306/catalog")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Errorf("error leaks password: %v", err)
	}
}

func TestInsertSQL(t *testing.T) {
	got := insertSQL("products", []string{"product_id", "sku_id"})
	want := `INSERT INTO "products" ("product_id","sku_id") VALUES (?,?)`
	if got != want {
		t.Errorf("insertSQL() = %s, want %s", got, want)
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	row := []any{"p1", "x"}
	n, err := m.Append(ctx, "products", []string{"product_id", "sku_id"}, [][]any{row})
	if err != nil || n != 1 {
		t.Fatalf("Append() = %d, %v", n, err)
	}
	row[0] = "mutated"

	if got := m.Rows("products")[0][0]; got != "p1" {
		t.Errorf("stored row should be a copy, got %v", got)
	}
	if c, _ := m.Count(ctx, "products"); c != 1 {
		t.Errorf("Count() = %d, want 1", c)
	}

	m.Close()
	if !m.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := m.Append(ctx, "products", nil, [][]any{row}); !errors.Is(err, ErrClosed) {
		t.Errorf("Append() after Close error = %v, want ErrClosed", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), "memory://", PoolConfig{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("Open(memory://) = %T, want *Memory", s)
	}
}
