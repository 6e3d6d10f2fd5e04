package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed search request. No upstream call is made.
	ErrValidation = errors.New("validation error")
	// ErrEmbeddingUnavailable signals an embedding provider failure or timeout.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrStoreUnavailable signals a vector store connectivity failure or timeout.
	ErrStoreUnavailable = errors.New("vector store unavailable")
	// ErrDimensionMismatch signals that query and stored vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnsupportedOperator signals a missing search module or vector index.
	ErrUnsupportedOperator = errors.New("vector search not supported by store")
)

// Stage names used in timeout errors.
const (
	StageEmbedding = "embedding"
	StageStore     = "store"
)

// TimeoutError reports that a pipeline stage exceeded its own deadline.
// It matches both the stage sentinel and context.DeadlineExceeded via errors.Is.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Stage)
}

// Unwrap exposes the stage sentinel and the deadline error.
func (e *TimeoutError) Unwrap() []error {
	sentinel := ErrStoreUnavailable
	if e.Stage == StageEmbedding {
		sentinel = ErrEmbeddingUnavailable
	}
	return []error{sentinel, context.DeadlineExceeded}
}

// NewTimeout creates a stage timeout error.
func NewTimeout(stage string) error {
	return &TimeoutError{Stage: stage}
}

// Validationf formats a validation error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Error codes returned to callers.
const (
	CodeValidation           = "ValidationError"
	CodeEmbeddingUnavailable = "EmbeddingUnavailable"
	CodeStoreUnavailable     = "StoreUnavailable"
	CodeDimensionMismatch    = "DimensionMismatch"
	CodeUnsupportedOperator  = "UnsupportedOperator"
	CodeInternal             = "InternalError"
)

// Code maps err onto its caller-facing error code. Deployment faults take
// precedence over availability faults.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrDimensionMismatch):
		return CodeDimensionMismatch
	case errors.Is(err, ErrUnsupportedOperator):
		return CodeUnsupportedOperator
	case errors.Is(err, ErrEmbeddingUnavailable):
		return CodeEmbeddingUnavailable
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}
