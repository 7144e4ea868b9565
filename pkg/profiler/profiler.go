// pkg/profiler/profiler.go
package profiler

import (
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// Profile inspects a column and proposes a semantic type. dateLayout is a Go
// time layout; when empty only cells that already hold dates count as dates.
// Profile never mutates col.
func Profile(col *model.Column, dateLayout string) model.ColumnProfile {
	proposed := ProposeType(col.Values, dateLayout)

	profile := model.ColumnProfile{
		Column:   col.Name,
		Position: col.Origin,
		Proposed: proposed,
		Rows:     col.Len(),
		Missing:  col.MissingCount(),
		Distinct: distinct(col.Values),
	}
	if proposed.IsNumeric() {
		profile.Numeric = Describe(NumericValues(col.Values))
	}
	return profile
}

// ProposeType classifies the non-missing cells with the fallback order
// integer, float, date, string. A column without any value is a string column.
// Columns holding only boolean cells keep the boolean type.
func ProposeType(values []model.Value, dateLayout string) model.SemanticType {
	present := make([]model.Value, 0, len(values))
	for _, v := range values {
		if !v.IsMissing() {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return model.TypeString
	}

	switch {
	case all(present, isInteger):
		return model.TypeInteger
	case all(present, isFloat):
		return model.TypeFloat
	case all(present, func(v model.Value) bool { return isDate(v, dateLayout) }):
		return model.TypeDate
	case all(present, func(v model.Value) bool { return v.Kind == model.KindBool }):
		return model.TypeBoolean
	default:
		return model.TypeString
	}
}

// NumericValues parses the non-missing cells as floats, skipping cells that do not parse
func NumericValues(values []model.Value) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.AsFloat(); ok {
			out = append(out, f)
			continue
		}
		if v.Kind == model.KindString {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil && isFinite(f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Describe computes count, mean, sample standard deviation, min and max.
// It returns nil for an empty input.
func Describe(xs []float64) *model.NumericSummary {
	if len(xs) == 0 {
		return nil
	}
	summary := &model.NumericSummary{
		Count: len(xs),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
	}
	if len(xs) == 1 {
		summary.Mean = xs[0]
		return summary
	}
	summary.Mean, summary.Std = stat.MeanStdDev(xs, nil)
	return summary
}

func all(values []model.Value, pred func(model.Value) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

// isInteger accepts integer cells and strings in base-10 integer notation.
// Float cells are never integers here, even when integral.
func isInteger(v model.Value) bool {
	switch v.Kind {
	case model.KindInt:
		return true
	case model.KindString:
		_, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		return err == nil
	}
	return false
}

func isFloat(v model.Value) bool {
	switch v.Kind {
	case model.KindInt, model.KindFloat:
		return true
	case model.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return err == nil && isFinite(f)
	}
	return false
}

func isDate(v model.Value, layout string) bool {
	switch v.Kind {
	case model.KindDate:
		return true
	case model.KindString:
		if layout == "" {
			return false
		}
		_, err := time.Parse(layout, strings.TrimSpace(v.Str))
		return err == nil
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func distinct(values []model.Value) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		seen[v.Key()] = struct{}{}
	}
	return len(seen)
}
