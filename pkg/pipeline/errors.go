// pkg/pipeline/errors.go
package pipeline

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/David-Botos/data-cleaner/pkg/cleaner"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// ErrorCategory classifies a fatal stage error
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	// ErrorCategoryConfiguration covers unknown columns, bad thresholds, formats and strategies
	ErrorCategoryConfiguration
	// ErrorCategoryCancelled means the context was done at a stage boundary
	ErrorCategoryCancelled
	// ErrorCategoryInternal is anything else
	ErrorCategoryInternal
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryConfiguration:
		return "Configuration"
	case ErrorCategoryCancelled:
		return "Cancelled"
	case ErrorCategoryInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// CategorizeError maps a stage error to its category
func CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCancelled
	case errors.Is(err, cleaner.ErrUnknownColumn),
		errors.Is(err, cleaner.ErrInvalidThreshold),
		errors.Is(err, cleaner.ErrInvalidFormat),
		errors.Is(err, cleaner.ErrNotNumeric),
		errors.Is(err, cleaner.ErrInvalidStrategy):
		return ErrorCategoryConfiguration
	default:
		return ErrorCategoryInternal
	}
}

// StageError wraps the error that aborted the pipeline
type StageError struct {
	Stage model.Stage
	Err   error
}

// Error implements error
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying stage error
func (e *StageError) Unwrap() error { return e.Err }
