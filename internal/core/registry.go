package core

import (
	"fmt"
	"sync"
)

// TableDef describes one target table.
type TableDef struct {
	Name    string   // Table name in the sink: "products"
	Label   string   // Display name: "Products"
	Columns []string // Column names, in sink order

	// RequireColumns makes every column mandatory in the feed header.
	// A missing column is a feed-schema mismatch, not an empty value.
	RequireColumns bool

	// Dedup drops fully identical rows within one chunk.
	Dedup bool
}

var (
	registry   []TableDef
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if a table with the same name is already registered or a column is
// not a known feed column.
func Register(def TableDef) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, existing := range registry {
		if existing.Name == def.Name {
			panic(fmt.Sprintf("table already registered: %s", def.Name))
		}
	}
	for _, col := range def.Columns {
		if _, ok := fieldsByName[col]; !ok {
			panic(fmt.Sprintf("table %s: unknown column %q", def.Name, col))
		}
	}

	registry = append(registry, def)
}

// Get returns a table definition by name.
func Get(name string) (TableDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, def := range registry {
		if def.Name == name {
			return def, true
		}
	}
	return TableDef{}, false
}

// Tables returns all registered tables in load order.
func Tables() []TableDef {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]TableDef, len(registry))
	copy(out, registry)
	return out
}

// TableNames returns the registered table names in load order.
func TableNames() []string {
	defs := Tables()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
