// pkg/cleaner/nullity.go
package cleaner

import (
	"github.com/cockroachdb/errors"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// DropHighNullityColumns removes every column whose missing ratio exceeds
// threshold, except those named in protected. One action per dropped column.
func (c *DataCleaner) DropHighNullityColumns(t *model.Table, threshold float64, protected map[string]bool) ([]model.CleaningAction, error) {
	if !(threshold > 0 && threshold <= 1) {
		return nil, errors.Wrapf(ErrInvalidThreshold, "nullity threshold %v", threshold)
	}
	if t.NumRows() == 0 {
		return nil, nil
	}

	var actions []model.CleaningAction
	for i := 0; i < t.NumColumns(); {
		col := t.Column(i)
		ratio := float64(col.MissingCount()) / float64(t.NumRows())
		if ratio <= threshold || protected[col.Name] {
			i++
			continue
		}
		t.DropColumn(i)
		actions = append(actions, c.record(model.NewAction(model.StageNullityPruning, col.Name, 1,
			"Dropped column '%s' with %.2f%% null values", col.Name, ratio*100)))
	}
	return actions, nil
}
