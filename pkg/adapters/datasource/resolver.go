package datasource

import (
	"context"
	"fmt"
	"sync"
)

// TenantSource is the configured data source of one tenant.
type TenantSource struct {
	Type       Type
	ConnString string
}

// tenantConn guards the first-use open of one tenant's querier, so a slow
// dial never blocks resolution for other tenants.
type tenantConn struct {
	once    sync.Once
	querier RowQuerier
	err     error
}

// StaticResolver resolves tenants from a fixed configuration map and opens
// one shared querier per tenant on first use. Queriers are pooled; many
// concurrent executions share them (pool sizing bounds the damage of
// timed-out queries that keep running at the data source).
type StaticResolver struct {
	mu      sync.Mutex
	sources map[int64]TenantSource
	open    map[int64]*tenantConn
}

// NewStaticResolver creates a resolver over the given tenant→source map.
func NewStaticResolver(sources map[int64]TenantSource) *StaticResolver {
	return &StaticResolver{
		sources: sources,
		open:    make(map[int64]*tenantConn),
	}
}

// ForTenant returns the shared querier for a tenant, opening it on first use.
// The resolver lock only covers map access; the dial itself runs under the
// tenant's own once guard. A failed open is forgotten so the next call
// retries.
func (r *StaticResolver) ForTenant(ctx context.Context, clientID int64) (RowQuerier, error) {
	r.mu.Lock()
	conn, ok := r.open[clientID]
	if !ok {
		if _, configured := r.sources[clientID]; !configured {
			r.mu.Unlock()
			return nil, fmt.Errorf("no datasource configured for tenant %d", clientID)
		}
		conn = &tenantConn{}
		r.open[clientID] = conn
	}
	src := r.sources[clientID]
	r.mu.Unlock()

	conn.once.Do(func() {
		conn.querier, conn.err = New(ctx, src.Type, src.ConnString)
	})

	if conn.err != nil {
		r.mu.Lock()
		if r.open[clientID] == conn {
			delete(r.open, clientID)
		}
		r.mu.Unlock()
		return nil, fmt.Errorf("open datasource for tenant %d: %w", clientID, conn.err)
	}
	return conn.querier, nil
}

// Close closes every opened querier.
func (r *StaticResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, conn := range r.open {
		if conn.querier == nil {
			continue
		}
		if err := conn.querier.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close datasource for tenant %d: %w", id, err)
		}
		delete(r.open, id)
	}
	return firstErr
}

var _ Resolver = (*StaticResolver)(nil)
