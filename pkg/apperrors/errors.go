package apperrors

import "errors"

var (
	ErrConfigNotFound  = errors.New("drill-down config not found")
	ErrConfigConflict  = errors.New("an active drill-down config already exists for this chart position")
	ErrUnsafeQuery     = errors.New("query failed safety validation")
	ErrBinding         = errors.New("failed to bind clicked data to query parameters")
	ErrTimeout         = errors.New("query timed out")
	ErrExecution       = errors.New("query execution failed")
	ErrMalformedConfig = errors.New("stored drill-down config is malformed")
)
