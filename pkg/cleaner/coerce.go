// pkg/cleaner/coerce.go
package cleaner

import (
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/converter"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// CoerceColumn casts every cell of col to target. Cells that fail become
// missing and are counted. The column's declared type becomes target whatever
// the failure count. layout is the Go date layout used for date targets.
func (c *DataCleaner) CoerceColumn(col *model.Column, target model.SemanticType, layout string) model.CleaningAction {
	if target == model.TypeUnknown {
		target = model.TypeString
	}

	failures := 0
	for i, v := range col.Values {
		cast, err := converter.Cast(v, target, layout)
		if err != nil {
			failures++
			c.logger.Debug("Coercion failure",
				zap.String("column", col.Name),
				zap.Int("row", i),
				zap.Stringer("value", v),
				zap.Error(err))
		}
		col.Values[i] = cast
	}
	col.Type = target

	return c.record(model.NewAction(model.StageTypeCoercion, col.Name, failures,
		"Checked and fixed data types for '%s' (%s, %d coercion failures)", col.Name, target, failures))
}
