// pkg/cleaner/dedup.go
package cleaner

import (
	"strconv"
	"strings"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// RemoveDuplicates drops rows equal to an earlier row in every column.
// Missing equals missing. The first occurrence is kept.
func (c *DataCleaner) RemoveDuplicates(t *model.Table) model.CleaningAction {
	seen := make(map[string]struct{}, t.NumRows())
	keep := make([]bool, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		key := rowKey(t.Row(i))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep[i] = true
	}

	removed := t.KeepRows(keep)
	return c.record(model.NewAction(model.StageDeduplication, "", removed,
		"Removed %d duplicate rows", removed))
}

// rowKey length-prefixes every cell key so that no two distinct rows collide
func rowKey(row []model.Value) string {
	var b strings.Builder
	for _, v := range row {
		k := v.Key()
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}
