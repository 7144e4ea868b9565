// pkg/cleaner/outliers.go
package cleaner

import (
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// OutlierAction selects what happens to values outside the IQR fences
type OutlierAction string

const (
	OutlierCap    OutlierAction = "cap"
	OutlierRemove OutlierAction = "remove"
	// OutlierFlag records the outlying rows and leaves the cells unchanged
	OutlierFlag OutlierAction = "flag"
)

// iqrFactor widens the interquartile range into the outlier fences
const iqrFactor = 1.5

// ParseOutlierAction validates a configured outlier action
func ParseOutlierAction(s string) (OutlierAction, error) {
	switch a := OutlierAction(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return OutlierCap, nil
	case OutlierCap, OutlierRemove, OutlierFlag:
		return a, nil
	default:
		return "", errors.Wrapf(ErrInvalidStrategy, "outlier action %q", s)
	}
}

// Quantile returns the p-quantile of sorted by linear interpolation between
// the closest ranks at position (n-1)*p
func Quantile(p float64, sorted []float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := float64(len(sorted)-1) * p
	i := int(math.Floor(pos))
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// Fences returns the IQR bounds Q1 - 1.5*IQR and Q3 + 1.5*IQR
func Fences(xs []float64) (lo, hi float64) {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	q1 := Quantile(0.25, sorted)
	q3 := Quantile(0.75, sorted)
	iqr := q3 - q1
	return q1 - iqrFactor*iqr, q3 + iqrFactor*iqr
}

// HandleOutliers caps, removes or flags the values of a numeric column that
// fall outside the IQR fences. Removal drops whole rows from t. rows holds the
// outlying row indices as they were before the call; it is empty, with no
// action, when the column has no outliers.
func (c *DataCleaner) HandleOutliers(t *model.Table, name string, action OutlierAction) (model.CleaningAction, []int, error) {
	col, _, err := lookup(t, name)
	if err != nil {
		return model.CleaningAction{}, nil, err
	}
	if err := requireNumeric(col); err != nil {
		return model.CleaningAction{}, nil, err
	}

	xs := col.Floats()
	if len(xs) == 0 {
		return model.CleaningAction{}, nil, nil
	}
	lo, hi := Fences(xs)

	outside := make([]bool, col.Len())
	var rows []int
	for i, v := range col.Values {
		if f, ok := v.AsFloat(); ok && (f < lo || f > hi) {
			outside[i] = true
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return model.CleaningAction{}, nil, nil
	}

	switch action {
	case OutlierFlag:
		c.logger.Debug("Flagged outlying rows",
			zap.String("column", name),
			zap.Ints("rows", rows),
			zap.Float64("lower", lo),
			zap.Float64("upper", hi))
		return c.record(model.NewAction(model.StageOutlierHandling, name, len(rows),
			"Flagged %d outliers in '%s'", len(rows), name)), rows, nil
	case OutlierRemove:
		keep := make([]bool, len(outside))
		for i, o := range outside {
			keep[i] = !o
		}
		removed := t.KeepRows(keep)
		return c.record(model.NewAction(model.StageOutlierHandling, name, removed,
			"Removed %d outliers in '%s'", removed, name)), rows, nil
	}

	for _, i := range rows {
		f, _ := col.Values[i].AsFloat()
		col.Values[i] = capValue(col.Type, f, lo, hi)
	}
	return c.record(model.NewAction(model.StageOutlierHandling, name, len(rows),
		"Capped %d outliers in '%s'", len(rows), name)), rows, nil
}

// capValue clips to the fences, staying inside them for integer columns
func capValue(semantic model.SemanticType, f, lo, hi float64) model.Value {
	if semantic == model.TypeInteger {
		if f < lo {
			return model.IntValue(int64(math.Ceil(lo)))
		}
		return model.IntValue(int64(math.Floor(hi)))
	}
	if f < lo {
		return model.FloatValue(lo)
	}
	return model.FloatValue(hi)
}
