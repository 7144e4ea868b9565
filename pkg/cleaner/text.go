// pkg/cleaner/text.go
package cleaner

import (
	"strings"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// NormalizeText trims, collapses internal whitespace and lowercases
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeTextColumn normalizes every string cell of a string column. A cell
// that normalizes to the empty string becomes missing. Non-string columns are
// skipped and report false.
func (c *DataCleaner) NormalizeTextColumn(col *model.Column) (model.CleaningAction, bool) {
	if col.Type != model.TypeString {
		return model.CleaningAction{}, false
	}

	altered := 0
	for i, v := range col.Values {
		if v.Kind != model.KindString {
			continue
		}
		normalized := NormalizeText(v.Str)
		if normalized == v.Str {
			continue
		}
		altered++
		if normalized == "" {
			col.Values[i] = model.Missing()
		} else {
			col.Values[i] = model.StringValue(normalized)
		}
	}

	return c.record(model.NewAction(model.StageTextNormalization, col.Name, altered,
		"Normalized text in '%s' (%d cells altered)", col.Name, altered)), true
}
