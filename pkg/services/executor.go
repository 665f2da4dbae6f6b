package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vendacrm/venda-engine/pkg/adapters/datasource"
	"github.com/vendacrm/venda-engine/pkg/apperrors"
	"github.com/vendacrm/venda-engine/pkg/logging"
	"github.com/vendacrm/venda-engine/pkg/sqlbind"
)

const (
	// DefaultMaxResults caps result rows when a config does not set max_results.
	DefaultMaxResults = 1000
	// DefaultTimeoutSeconds bounds execution when a config does not set
	// query_timeout_seconds.
	DefaultTimeoutSeconds = 30
)

// ComposeLimit appends LIMIT maxResults unless the template already carries a
// LIMIT clause (case-insensitive substring, consistent with the safety
// validator's text-based approach).
func ComposeLimit(query string, maxResults int) string {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if strings.Contains(strings.ToUpper(query), "LIMIT") {
		return query
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimRight(query, " \t\n\r;"), maxResults)
}

// QueryExecutor runs a composed detail query against a tenant data source,
// racing it against a timeout.
type QueryExecutor struct {
	logger *zap.Logger

	// Fallbacks applied when a config leaves max_results or
	// query_timeout_seconds unset. Deployment-level, from config.yaml.
	defaultMaxResults     int
	defaultTimeoutSeconds int
}

// NewQueryExecutor creates a QueryExecutor. Non-positive defaults fall back
// to the package constants.
func NewQueryExecutor(logger *zap.Logger, defaultMaxResults, defaultTimeoutSeconds int) *QueryExecutor {
	if defaultMaxResults <= 0 {
		defaultMaxResults = DefaultMaxResults
	}
	if defaultTimeoutSeconds <= 0 {
		defaultTimeoutSeconds = DefaultTimeoutSeconds
	}
	return &QueryExecutor{
		logger:                logger,
		defaultMaxResults:     defaultMaxResults,
		defaultTimeoutSeconds: defaultTimeoutSeconds,
	}
}

type queryOutcome struct {
	result *datasource.QueryResult
	err    error
}

// Execute composes the row cap, runs the bound query, and returns whichever
// settles first: the driver call or the timeout.
//
// Known limitation: on timeout the in-flight driver call is NOT cancelled at
// the data source. It keeps consuming a pooled connection until the driver
// returns; pool sizing and data-source statement timeouts bound that cost.
// The abandoned call's eventual outcome is logged when it settles.
func (e *QueryExecutor) Execute(
	ctx context.Context,
	querier datasource.RowQuerier,
	query string,
	bound *sqlbind.Bound,
	maxResults int,
	timeoutSeconds int,
) (*datasource.QueryResult, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = e.defaultTimeoutSeconds
	}
	if maxResults <= 0 {
		maxResults = e.defaultMaxResults
	}
	composed := ComposeLimit(query, maxResults)

	outcomeCh := make(chan queryOutcome, 1)
	go func() {
		var (
			result *datasource.QueryResult
			err    error
		)
		if bound.Style == sqlbind.StyleNamed {
			result, err = querier.QueryNamed(ctx, composed, bound.Named)
		} else {
			result, err = querier.QueryPositional(ctx, composed, bound.Positional)
		}
		outcomeCh <- queryOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(time.Duration(timeoutSeconds) * time.Second)
	defer timer.Stop()

	select {
	case outcome := <-outcomeCh:
		if outcome.err != nil {
			// Raw driver errors are for the server log only; callers get a
			// sanitized, user-safe message.
			e.logger.Error("detail query failed",
				zap.String("query", logging.SanitizeQuery(composed)),
				zap.String("error", logging.SanitizeError(outcome.err)),
			)
			return nil, fmt.Errorf("%w: the detail query could not be executed", apperrors.ErrExecution)
		}
		return outcome.result, nil

	case <-timer.C:
		e.logger.Warn("detail query timed out",
			zap.Int("timeout_seconds", timeoutSeconds),
			zap.String("query", logging.SanitizeQuery(composed)),
		)
		go e.drainAbandoned(outcomeCh, composed)
		return nil, fmt.Errorf("%w after %d seconds", apperrors.ErrTimeout, timeoutSeconds)

	case <-ctx.Done():
		go e.drainAbandoned(outcomeCh, composed)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, ctx.Err())
	}
}

// drainAbandoned waits for a timed-out call to settle so its outcome is
// observable in the server log.
func (e *QueryExecutor) drainAbandoned(outcomeCh <-chan queryOutcome, query string) {
	outcome := <-outcomeCh
	if outcome.err != nil {
		e.logger.Warn("abandoned detail query settled with error",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(outcome.err)),
		)
		return
	}
	e.logger.Warn("abandoned detail query settled after timeout",
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Int("rows_discarded", len(outcome.result.Rows)),
	)
}
