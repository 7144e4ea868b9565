// pkg/cleaner/cleaner.go
package cleaner

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// DataCleaner runs the individual cleaning stages over an in-memory table.
// Each stage returns the CleaningActions it produced; callers own ordering.
type DataCleaner struct {
	logger *zap.Logger
}

// NewDataCleaner creates a new DataCleaner instance
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataCleaner{logger: logger.Named("cleaner")}
}

// record logs an action as it is produced
func (c *DataCleaner) record(action model.CleaningAction) model.CleaningAction {
	c.logger.Info(action.Description,
		zap.String("stage", string(action.Stage)),
		zap.String("column", action.Column),
		zap.Int("count", action.Count))
	return action
}

// lookup finds a column by its current name
func lookup(t *model.Table, name string) (*model.Column, int, error) {
	for i, col := range t.Columns() {
		if col.Name == name {
			return col, i, nil
		}
	}
	return nil, -1, unknownColumn(name)
}

// requireNumeric fails unless the column has been coerced to a numeric type
func requireNumeric(col *model.Column) error {
	if !col.Type.IsNumeric() {
		return errors.WithHint(
			errors.Wrapf(ErrNotNumeric, "column %q has type %s", col.Name, col.Type),
			"only integer and float columns can be scaled or checked for outliers",
		)
	}
	return nil
}
