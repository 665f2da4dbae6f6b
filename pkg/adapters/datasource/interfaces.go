// Package datasource abstracts the tenant-owned relational databases that
// drill-down detail queries run against.
package datasource

import "context"

// QueryResult holds the rows returned by a detail query, as flat records.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// RowQuerier executes read-only detail queries against one tenant data
// source. Implementations own their connection pool and must be closed when
// the tenant is torn down.
//
// Templates arrive in the admin's placeholder dialect: `?` for positional,
// `:name` for named. Each implementation rewrites them to its native binding
// before execution, so values never reach the data source as SQL text.
type RowQuerier interface {
	// QueryPositional runs a template using `?` placeholders with args bound
	// in order.
	QueryPositional(ctx context.Context, query string, args []any) (*QueryResult, error)

	// QueryNamed runs a template using `:name` placeholders with args bound
	// by name.
	QueryNamed(ctx context.Context, query string, args map[string]any) (*QueryResult, error)

	// Close releases the underlying pool.
	Close() error
}

// Resolver maps an authenticated tenant onto its configured data source.
type Resolver interface {
	// ForTenant returns the querier for the tenant's data source. The
	// returned querier is shared and must NOT be closed by the caller.
	ForTenant(ctx context.Context, clientID int64) (RowQuerier, error)
}
