// pkg/converter/values.go
package converter

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	strftime "github.com/ncruces/go-strftime"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// ErrCast marks a cell that cannot be converted to the requested type
var ErrCast = errors.New("cannot cast value")

// ToInteger attempts to convert a cell to int64
func ToInteger(v model.Value) (int64, error) {
	switch v.Kind {
	case model.KindInt:
		return v.Int, nil
	case model.KindFloat:
		if v.Float == math.Trunc(v.Float) && !math.IsInf(v.Float, 0) &&
			v.Float >= math.MinInt64 && v.Float <= math.MaxInt64 {
			return int64(v.Float), nil
		}
		return 0, errors.Wrapf(ErrCast, "float %v is not integral", v.Float)
	case model.KindString:
		cleaned := strings.TrimSpace(v.Str)
		if cleaned == "" {
			return 0, errors.Wrap(ErrCast, "empty string")
		}
		i, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrCast, "cannot parse %q as integer", v.Str)
		}
		return i, nil
	default:
		return 0, errors.Wrapf(ErrCast, "cannot convert %s to integer", v.Kind)
	}
}

// ToFloat attempts to convert a cell to a finite float64
func ToFloat(v model.Value) (float64, error) {
	switch v.Kind {
	case model.KindInt:
		return float64(v.Int), nil
	case model.KindFloat:
		return v.Float, nil
	case model.KindString:
		cleaned := strings.TrimSpace(v.Str)
		if cleaned == "" {
			return 0, errors.Wrap(ErrCast, "empty string")
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, errors.Wrapf(ErrCast, "cannot parse %q as float", v.Str)
		}
		return f, nil
	default:
		return 0, errors.Wrapf(ErrCast, "cannot convert %s to float", v.Kind)
	}
}

// ToBoolean attempts to convert a cell to bool
func ToBoolean(v model.Value) (bool, error) {
	switch v.Kind {
	case model.KindBool:
		return v.Bool, nil
	case model.KindInt:
		// Convert numeric values (0 = false, 1 = true)
		switch v.Int {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, errors.Wrapf(ErrCast, "integer %d is not a boolean", v.Int)
	case model.KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "t", "yes", "y", "1", "on":
			return true, nil
		case "false", "f", "no", "n", "0", "off":
			return false, nil
		}
		return false, errors.Wrapf(ErrCast, "cannot parse %q as boolean", v.Str)
	default:
		return false, errors.Wrapf(ErrCast, "cannot convert %s to boolean", v.Kind)
	}
}

// ToDate attempts to convert a cell to time.Time using a Go layout.
// Calendar-invalid dates such as 2024-02-30 are rejected.
func ToDate(v model.Value, layout string) (time.Time, error) {
	switch v.Kind {
	case model.KindDate:
		return v.Time, nil
	case model.KindString:
		cleaned := strings.TrimSpace(v.Str)
		if cleaned == "" {
			return time.Time{}, errors.Wrap(ErrCast, "empty string")
		}
		if layout == "" {
			return time.Time{}, errors.Wrap(ErrCast, "no date layout configured")
		}
		t, err := time.Parse(layout, cleaned)
		if err != nil {
			return time.Time{}, errors.Wrapf(ErrCast, "cannot parse %q as date: %v", v.Str, err)
		}
		return t, nil
	default:
		return time.Time{}, errors.Wrapf(ErrCast, "cannot convert %s to date", v.Kind)
	}
}

// Cast converts a cell to the target semantic type. Missing cells stay missing.
func Cast(v model.Value, target model.SemanticType, layout string) (model.Value, error) {
	if v.IsMissing() {
		return v, nil
	}

	switch target {
	case model.TypeInteger:
		i, err := ToInteger(v)
		if err != nil {
			return model.Missing(), err
		}
		return model.IntValue(i), nil
	case model.TypeFloat:
		f, err := ToFloat(v)
		if err != nil {
			return model.Missing(), err
		}
		return model.FloatValue(f), nil
	case model.TypeBoolean:
		b, err := ToBoolean(v)
		if err != nil {
			return model.Missing(), err
		}
		return model.BoolValue(b), nil
	case model.TypeDate:
		t, err := ToDate(v, layout)
		if err != nil {
			return model.Missing(), err
		}
		return model.DateValue(t), nil
	default:
		if v.Kind == model.KindString {
			return v, nil
		}
		return model.StringValue(v.Text()), nil
	}
}

// ErrInvalidFormat is returned for strftime specifiers that cannot be used for parsing
var ErrInvalidFormat = errors.New("invalid date format specifier")

// DateLayout converts a strftime format such as %Y-%m-%d into a Go time layout
func DateLayout(format string) (string, error) {
	if !strings.Contains(format, "%") {
		return "", errors.Wrapf(ErrInvalidFormat, "%q contains no format directives", format)
	}
	layout, err := strftime.Layout(format)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidFormat, "%q: %v", format, err)
	}
	return layout, nil
}
