// pkg/cleaner/impute.go
package cleaner

import (
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/David-Botos/data-cleaner/pkg/model"
	"github.com/David-Botos/data-cleaner/pkg/profiler"
)

// Strategy selects how missing cells of a column are handled
type Strategy string

const (
	StrategyNone   Strategy = "none"
	StrategyDrop   Strategy = "drop"
	StrategyMean   Strategy = "mean"
	StrategyMedian Strategy = "median"
	StrategyMode   Strategy = "mode"
	// StrategyAuto picks mean or median by skewness for numeric columns and mode otherwise
	StrategyAuto Strategy = "auto"
)

// skewLimit is the absolute skewness above which auto imputation prefers the median
const skewLimit = 2.0

// ParseStrategy validates a configured strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyNone, StrategyDrop, StrategyMean, StrategyMedian, StrategyMode, StrategyAuto:
		return st, nil
	case "":
		return StrategyNone, nil
	default:
		return "", errors.Wrapf(ErrInvalidStrategy, "imputation strategy %q", s)
	}
}

// DropMissingRows removes every row of t with a missing cell in col, which
// must be one of t's columns. It reports false when no row was removed.
func (c *DataCleaner) DropMissingRows(t *model.Table, col *model.Column) (model.CleaningAction, bool) {
	keep := make([]bool, col.Len())
	for i, v := range col.Values {
		keep[i] = !v.IsMissing()
	}
	removed := t.KeepRows(keep)
	if removed == 0 {
		return model.CleaningAction{}, false
	}
	return c.record(model.NewAction(model.StageImputation, col.Name, removed,
		"Dropped %d rows with missing values in '%s'", removed, col.Name)), true
}

// FillMissing replaces the missing cells of col according to strategy. semantic
// is the profiled type of the column. It reports false when the column had
// nothing to fill or the strategy does not fill.
func (c *DataCleaner) FillMissing(col *model.Column, strategy Strategy, semantic model.SemanticType) (model.CleaningAction, bool) {
	missing := col.MissingCount()
	if missing == 0 || strategy == StrategyNone || strategy == StrategyDrop {
		return model.CleaningAction{}, false
	}

	used := strategy
	note := ""
	if strategy == StrategyAuto {
		used = autoStrategy(col, semantic)
		note = " (" + string(used) + ")"
	}
	if (used == StrategyMean || used == StrategyMedian) && !semantic.IsNumeric() {
		err := errors.Wrapf(ErrStrategyMismatch, "%s on %s column %q", used, semantic, col.Name)
		c.logger.Warn("Falling back to mode imputation",
			zap.String("column", col.Name),
			zap.Error(err))
		note = " (" + string(used) + " not applicable to " + string(semantic) + " column)"
		used = StrategyMode
	}

	fill, ok := fillValue(col, used, semantic)
	if !ok {
		return c.record(model.NewAction(model.StageImputation, col.Name, 0,
			"Handled missing values in '%s' with %s%s (no values to impute from)", col.Name, strategy, note)), true
	}

	for i, v := range col.Values {
		if v.IsMissing() {
			col.Values[i] = fill
		}
	}

	return c.record(model.NewAction(model.StageImputation, col.Name, missing,
		"Handled missing values in '%s' with %s%s", col.Name, strategy, note)), true
}

func autoStrategy(col *model.Column, semantic model.SemanticType) Strategy {
	if !semantic.IsNumeric() {
		return StrategyMode
	}
	xs := profiler.NumericValues(col.Values)
	skew := stat.Skew(xs, nil)
	if math.IsNaN(skew) || math.Abs(skew) < skewLimit {
		return StrategyMean
	}
	return StrategyMedian
}

// fillValue computes the replacement cell. Numeric fills take the kind of the
// existing cells so that later equality checks see one representation.
func fillValue(col *model.Column, strategy Strategy, semantic model.SemanticType) (model.Value, bool) {
	if strategy == StrategyMode {
		return mode(col.Values)
	}

	xs := profiler.NumericValues(col.Values)
	if len(xs) == 0 {
		return model.Missing(), false
	}
	var f float64
	if strategy == StrategyMean {
		f = stat.Mean(xs, nil)
	} else {
		f = median(xs)
	}

	var v model.Value
	if semantic == model.TypeInteger {
		v = model.IntValue(int64(math.Round(f)))
	} else {
		v = model.FloatValue(f)
	}
	if rawStrings(col.Values) {
		return model.StringValue(v.Text()), true
	}
	return v, true
}

// mode returns the most frequent non-missing cell; ties go to the value seen first
func mode(values []model.Value) (model.Value, bool) {
	counts := make(map[string]int)
	var order []model.Value
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		k := v.Key()
		if _, seen := counts[k]; !seen {
			order = append(order, v)
		}
		counts[k]++
	}
	if len(order) == 0 {
		return model.Missing(), false
	}

	best := order[0]
	for _, v := range order[1:] {
		if counts[v.Key()] > counts[best.Key()] {
			best = v
		}
	}
	return best, true
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func rawStrings(values []model.Value) bool {
	for _, v := range values {
		if !v.IsMissing() {
			return v.Kind == model.KindString
		}
	}
	return false
}
