// pkg/cleaner/errors.go
package cleaner

import (
	"github.com/cockroachdb/errors"

	"github.com/David-Botos/data-cleaner/pkg/converter"
)

// Configuration errors abort the pipeline in the stage that detects them
var (
	ErrUnknownColumn    = errors.New("unknown column")
	ErrInvalidThreshold = errors.New("threshold must be in (0,1]")
	ErrInvalidFormat    = converter.ErrInvalidFormat
	ErrNotNumeric       = errors.New("column is not numeric")
	ErrInvalidStrategy  = errors.New("invalid strategy")
)

// ErrStrategyMismatch is recoverable: a numeric strategy was requested for a
// non-numeric column and mode was used instead
var ErrStrategyMismatch = errors.New("strategy not applicable to column type")

// unknownColumn builds the error returned when a stage is handed a name
// that is not present in the table
func unknownColumn(name string) error {
	return errors.WithHint(
		errors.Wrapf(ErrUnknownColumn, "column %q", name),
		"column references may use the original header or its normalized form",
	)
}
