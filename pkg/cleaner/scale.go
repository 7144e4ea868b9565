// pkg/cleaner/scale.go
package cleaner

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// ScaleMethod selects the rescaling applied by Scale
type ScaleMethod string

const (
	ScaleMinMax   ScaleMethod = "minmax"
	ScaleStandard ScaleMethod = "standard"
)

// ParseScaleMethod validates a configured scaling method
func ParseScaleMethod(s string) (ScaleMethod, error) {
	switch m := ScaleMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ScaleMinMax, nil
	case ScaleMinMax, ScaleStandard:
		return m, nil
	default:
		return "", errors.Wrapf(ErrInvalidStrategy, "scale method %q", s)
	}
}

func (m ScaleMethod) label() string {
	if m == ScaleStandard {
		return "standard scaling"
	}
	return "min-max scaling"
}

// Scale rescales a numeric column. minmax maps to [0,1] and a constant column
// maps to 0; standard maps to z-scores with the sample standard deviation and a
// zero deviation maps to 0. Missing cells stay missing. The count is the number
// of cells whose value changed.
func (c *DataCleaner) Scale(col *model.Column, method ScaleMethod) (model.CleaningAction, error) {
	if err := requireNumeric(col); err != nil {
		return model.CleaningAction{}, err
	}

	xs := col.Floats()
	transform := func(float64) float64 { return 0 }
	if len(xs) > 0 {
		switch method {
		case ScaleStandard:
			if len(xs) > 1 {
				mean, std := stat.MeanStdDev(xs, nil)
				if std > 0 {
					transform = func(v float64) float64 { return (v - mean) / std }
				}
			}
		default:
			lo, hi := floats.Min(xs), floats.Max(xs)
			if hi > lo {
				transform = func(v float64) float64 { return (v - lo) / (hi - lo) }
			}
		}
	}

	changed := 0
	for i, v := range col.Values {
		old, ok := v.AsFloat()
		if !ok {
			continue
		}
		scaled := transform(old)
		if math.Abs(scaled-old) > 1e-9*math.Max(1, math.Abs(old)) {
			changed++
		}
		col.Values[i] = model.FloatValue(scaled)
	}
	col.Type = model.TypeFloat

	return c.record(model.NewAction(model.StageScaling, col.Name, changed,
		"Scaled '%s' using %s", col.Name, method.label())), nil
}
