// Package database owns the engine's PostgreSQL pool, the store behind
// drill-down configs. Tenant data sources are a separate concern, handled in
// pkg/adapters/datasource.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns     = 25
	defaultConnLifetime = time.Hour
	defaultConnIdleTime = 30 * time.Minute
)

// Pool is the engine database handle shared by the repositories.
type Pool struct {
	*pgxpool.Pool
}

// Open connects to the engine database and verifies it with a ping.
// A non-positive maxConns uses the package default.
func Open(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse engine database config: %w", err)
	}

	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	pc.MaxConns = maxConns
	pc.MaxConnLifetime = defaultConnLifetime
	pc.MaxConnIdleTime = defaultConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open engine database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping engine database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}
