// Package postgres implements the tenant data-source querier for PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendacrm/venda-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.TypePostgres, func(ctx context.Context, connString string) (datasource.RowQuerier, error) {
		return New(ctx, connString)
	})
}

// Querier runs detail queries against a tenant's PostgreSQL database.
type Querier struct {
	pool *pgxpool.Pool
}

// New opens a pooled connection to the tenant database.
func New(ctx context.Context, connString string) (*Querier, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &Querier{pool: pool}, nil
}

// QueryPositional rewrites `?` placeholders to $N and executes with pgx's
// native parameter binding.
func (q *Querier) QueryPositional(ctx context.Context, query string, args []any) (*datasource.QueryResult, error) {
	rewritten, count := datasource.RewritePositional(query, func(pos int) string {
		return fmt.Sprintf("$%d", pos)
	})
	if count != len(args) {
		return nil, fmt.Errorf("query has %d placeholders but %d values were bound", count, len(args))
	}
	return q.run(ctx, rewritten, args)
}

// QueryNamed rewrites `:name` placeholders to $N, assigning one position per
// distinct name (repeats reuse the same position), and executes with values
// ordered accordingly.
func (q *Querier) QueryNamed(ctx context.Context, query string, args map[string]any) (*datasource.QueryResult, error) {
	positions := make(map[string]int)

	rewritten, _ := datasource.RewriteNamed(query, func(name string) string {
		if pos, ok := positions[name]; ok {
			return fmt.Sprintf("$%d", pos)
		}
		pos := len(positions) + 1
		positions[name] = pos
		return fmt.Sprintf("$%d", pos)
	})

	ordered := make([]any, len(positions))
	for name, pos := range positions {
		value, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("no value bound for named parameter :%s", name)
		}
		ordered[pos-1] = value
	}

	return q.run(ctx, rewritten, ordered)
}

func (q *Querier) run(ctx context.Context, query string, args []any) (*datasource.QueryResult, error) {
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &datasource.QueryResult{Columns: columns, Rows: resultRows}, nil
}

// Close releases the pool.
func (q *Querier) Close() error {
	q.pool.Close()
	return nil
}

var _ datasource.RowQuerier = (*Querier)(nil)
