// pkg/cleaner/dates.go
package cleaner

import (
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/converter"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// ParseDates parses every cell of col against one strftime format. Cells that
// do not match, including impossible calendar dates, become missing and are
// counted. The column's declared type becomes date.
func (c *DataCleaner) ParseDates(col *model.Column, format string) (model.CleaningAction, error) {
	layout, err := converter.DateLayout(format)
	if err != nil {
		return model.CleaningAction{}, err
	}

	failures := 0
	for i, v := range col.Values {
		if v.IsMissing() {
			continue
		}
		parsed, err := converter.ToDate(v, layout)
		if err != nil {
			failures++
			c.logger.Debug("Unparseable date",
				zap.String("column", col.Name),
				zap.Int("row", i),
				zap.Stringer("value", v))
			col.Values[i] = model.Missing()
			continue
		}
		col.Values[i] = model.DateValue(parsed)
	}
	col.Type = model.TypeDate

	return c.record(model.NewAction(model.StageDateParsing, col.Name, failures,
		"Parsed '%s' as datetime using format %s (%d unparseable values set to missing)", col.Name, format, failures)), nil
}
