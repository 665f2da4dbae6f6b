// Package sqlserver implements the tenant data-source querier for SQL Server.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/vendacrm/venda-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.TypeSQLServer, func(ctx context.Context, connString string) (datasource.RowQuerier, error) {
		return New(connString)
	})
}

// Querier runs detail queries against a tenant's SQL Server database.
type Querier struct {
	db *sql.DB
}

// New opens a pooled connection to the tenant database.
func New(connString string) (*Querier, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver: %w", err)
	}
	return &Querier{db: db}, nil
}

// NewFromDB wraps an existing *sql.DB. Used by tests with sqlmock.
func NewFromDB(db *sql.DB) *Querier {
	return &Querier{db: db}
}

// trailingLimit matches the portable `LIMIT n` clause the executor appends.
// T-SQL has no LIMIT, so the adapter translates it to TOP.
var trailingLimit = regexp.MustCompile(`(?i)\s+LIMIT\s+(\d+)\s*;?\s*$`)

// leadingTop matches a template's own `SELECT TOP n` cap, with or without
// parentheses around the count.
var leadingTop = regexp.MustCompile(`(?i)^\s*SELECT\s+TOP\s*\(?\s*(\d+)`)

// rewriteRowLimit converts a trailing `LIMIT n` into `SELECT TOP n ...`.
// A template that already carries its own TOP keeps a single TOP clause with
// the tighter of the two caps. Queries without a trailing LIMIT pass through
// untouched.
func rewriteRowLimit(query string) string {
	m := trailingLimit.FindStringSubmatch(query)
	if m == nil {
		return query
	}
	stripped := trailingLimit.ReplaceAllString(query, "")
	limitN, err := strconv.Atoi(m[1])
	if err != nil {
		return stripped
	}

	if loc := leadingTop.FindStringSubmatchIndex(stripped); loc != nil {
		topN, err := strconv.Atoi(stripped[loc[2]:loc[3]])
		if err == nil && limitN < topN {
			return stripped[:loc[2]] + m[1] + stripped[loc[3]:]
		}
		return stripped
	}

	idx := strings.Index(strings.ToUpper(stripped), "SELECT")
	if idx < 0 {
		return stripped
	}
	insertAt := idx + len("SELECT")
	return stripped[:insertAt] + " TOP " + m[1] + stripped[insertAt:]
}

// QueryPositional rewrites `?` placeholders to @pN, the driver's positional
// form.
func (q *Querier) QueryPositional(ctx context.Context, query string, args []any) (*datasource.QueryResult, error) {
	rewritten, count := datasource.RewritePositional(rewriteRowLimit(query), func(pos int) string {
		return fmt.Sprintf("@p%d", pos)
	})
	if count != len(args) {
		return nil, fmt.Errorf("query has %d placeholders but %d values were bound", count, len(args))
	}
	return q.run(ctx, rewritten, args)
}

// QueryNamed rewrites `:name` placeholders to @name and binds values with
// sql.Named, the driver's native named-parameter support.
func (q *Querier) QueryNamed(ctx context.Context, query string, args map[string]any) (*datasource.QueryResult, error) {
	seen := make(map[string]bool)
	var named []any

	rewritten, names := datasource.RewriteNamed(rewriteRowLimit(query), func(name string) string {
		return "@" + name
	})
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		value, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("no value bound for named parameter :%s", name)
		}
		named = append(named, sql.Named(name, value))
	}

	return q.run(ctx, rewritten, named)
}

func (q *Querier) run(ctx context.Context, query string, args []any) (*datasource.QueryResult, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			// database/sql surfaces text columns as []byte; normalize for display.
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
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
	return q.db.Close()
}

var _ datasource.RowQuerier = (*Querier)(nil)
