package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Type identifies a supported data-source kind. The set is closed: adapters
// register themselves at init time and unknown types are an error, never a
// silent fallthrough.
type Type string

const (
	TypePostgres  Type = "postgres"
	TypeSQLServer Type = "sqlserver"
)

// Factory creates a RowQuerier from a connection string.
type Factory func(ctx context.Context, connString string) (RowQuerier, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Type]Factory)
)

// Register installs a factory for a data-source type. Called from adapter
// init(); re-registration panics to surface wiring mistakes early.
func Register(t Type, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[t]; dup {
		panic(fmt.Sprintf("datasource: duplicate registration for type %q", t))
	}
	registry[t] = f
}

// New creates a RowQuerier for the given type.
func New(ctx context.Context, t Type, connString string) (RowQuerier, error) {
	registryMu.RLock()
	factory, ok := registry[t]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported datasource type %q (supported: %v)", t, SupportedTypes())
	}
	return factory(ctx, connString)
}

// SupportedTypes returns the registered types, sorted for stable messages.
func SupportedTypes() []Type {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
