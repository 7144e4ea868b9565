// pkg/cleaner/schema.go
package cleaner

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// NormalizeName lowercases a header and turns every run of characters other
// than letters and digits into one underscore, trimming underscores at both ends
func NormalizeName(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// NormalizeColumnNames renames every column to snake_case. Names that collide
// after normalization get the smallest free suffix _2, _3, ... in column order;
// suffixes never take a name that another column normalizes to on its own.
// One action is emitted per column, with count 1 for a rename and 0 otherwise.
func (c *DataCleaner) NormalizeColumnNames(t *model.Table) []model.CleaningAction {
	columns := t.Columns()
	bases := make([]string, len(columns))
	reserved := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		base := NormalizeName(col.Name)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		bases[i] = base
		reserved[base] = struct{}{}
	}

	used := make(map[string]struct{}, len(columns))
	actions := make([]model.CleaningAction, 0, len(columns))
	for i, col := range columns {
		name := bases[i]
		if _, taken := used[name]; taken {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", bases[i], n)
				_, isUsed := used[candidate]
				_, isReserved := reserved[candidate]
				if !isUsed && !isReserved {
					name = candidate
					break
				}
			}
		}
		used[name] = struct{}{}

		old := col.Name
		if old == name {
			actions = append(actions, c.record(model.NewAction(model.StageSchemaNormalization, name, 0,
				"Standardized column name '%s' (unchanged)", name)))
			continue
		}
		col.Name = name
		actions = append(actions, c.record(model.NewAction(model.StageSchemaNormalization, name, 1,
			"Standardized column name '%s' to '%s'", old, name)))
	}
	return actions
}
