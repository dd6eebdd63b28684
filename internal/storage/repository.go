// Package storage persists aggregate report tables. Backends register
// themselves under a kind string from an init() in their own package; the
// pipeline selects one via Config without importing any backend directly.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// ColumnSpec is one column of a report table.
type ColumnSpec struct {
	Name string
	// Type is a portable type tag: "text", "numeric", "timestamp".
	// Backends map it onto their own DDL types.
	Type string
}

// TableSpec describes one report table to create.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

// Repository is the minimal sink interface the report runner needs.
// Backends implement idempotent table creation in their own dialect.
type Repository interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// EnsureTable creates the table if it does not exist.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows bulk-inserts rows aligned with columns and reports how many
	// were written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "sqlite"). Call from an
// init() in the backend package. Registering a kind twice panics so an
// ambiguous backend selection fails at startup, not mid-run.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for CLI help output.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
