// pkg/pipeline/resolve.go
package pipeline

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/David-Botos/data-cleaner/pkg/cleaner"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// resolver maps configuration column references to live columns. A reference
// matches a current column name first, then an original header followed
// through renames by the column's origin, then the normalized form of itself.
type resolver struct {
	origins map[string]int
}

func newResolver(t *model.Table) *resolver {
	r := &resolver{origins: make(map[string]int, t.NumColumns())}
	for _, col := range t.Columns() {
		if _, dup := r.origins[col.Name]; !dup {
			r.origins[col.Name] = col.Origin
		}
	}
	return r
}

func (r *resolver) resolve(t *model.Table, ref string) (*model.Column, error) {
	if col, ok := t.ColumnByName(ref); ok {
		return col, nil
	}
	if origin, ok := r.origins[ref]; ok {
		if col, ok := t.ColumnByOrigin(origin); ok {
			return col, nil
		}
	}
	if col, ok := t.ColumnByName(cleaner.NormalizeName(ref)); ok {
		return col, nil
	}
	return nil, errors.WithHint(
		errors.Wrapf(cleaner.ErrUnknownColumn, "column %q", ref),
		"column references may use the original header or its normalized form",
	)
}

// resolveAll resolves refs and returns the distinct columns in origin order
func (r *resolver) resolveAll(t *model.Table, refs []string) ([]*model.Column, error) {
	seen := make(map[int]struct{}, len(refs))
	cols := make([]*model.Column, 0, len(refs))
	for _, ref := range refs {
		col, err := r.resolve(t, ref)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[col.Origin]; dup {
			continue
		}
		seen[col.Origin] = struct{}{}
		cols = append(cols, col)
	}
	sortByOrigin(cols)
	return cols, nil
}

// origin returns the origin a reference points at, if any, without failing
func (r *resolver) origin(t *model.Table, ref string) (int, bool) {
	col, err := r.resolve(t, ref)
	if err != nil {
		return 0, false
	}
	return col.Origin, true
}

func sortByOrigin(cols []*model.Column) {
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Origin < cols[j].Origin })
}

// sortedKeys returns map keys in a deterministic order for error reporting
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
