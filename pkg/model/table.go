// pkg/model/table.go
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// SemanticType is the declared type of a column
type SemanticType string

const (
	TypeUnknown SemanticType = "unknown"
	TypeString  SemanticType = "string"
	TypeInteger SemanticType = "integer"
	TypeFloat   SemanticType = "float"
	TypeDate    SemanticType = "date"
	TypeBoolean SemanticType = "boolean"
)

// ParseSemanticType converts a configuration string into a SemanticType
func ParseSemanticType(s string) (SemanticType, error) {
	switch SemanticType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeString:
		return TypeString, nil
	case TypeInteger:
		return TypeInteger, nil
	case TypeFloat:
		return TypeFloat, nil
	case TypeDate:
		return TypeDate, nil
	case TypeBoolean:
		return TypeBoolean, nil
	default:
		return TypeUnknown, errors.Newf("unknown semantic type %q", s)
	}
}

// IsNumeric reports whether values of this type can be aggregated arithmetically
func (t SemanticType) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Kind tags the variant held by a Value
type Kind uint8

const (
	KindMissing Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a single cell. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
}

// Missing returns an explicitly missing cell
func Missing() Value { return Value{Kind: KindMissing} }

// StringValue wraps a string cell
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue wraps an integer cell
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue wraps a float cell
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// BoolValue wraps a boolean cell
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// DateValue wraps a date cell
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// IsMissing reports whether the cell holds no value
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Text returns the textual representation used by the profiler, the coercer and writers.
// Missing cells render as the empty string.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// Key returns a string that is equal for two values iff Equal reports true
func (v Value) Key() string {
	if v.Kind == KindDate {
		return "date:" + v.Time.UTC().Format(time.RFC3339Nano)
	}
	return v.Kind.String() + ":" + v.Text()
}

// Equal compares two cells; missing equals missing
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindMissing:
		return true
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindBool:
		return v.Bool == o.Bool
	case KindDate:
		return v.Time.Equal(o.Time)
	}
	return false
}

// AsFloat returns the numeric value of int and float cells
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// String implements fmt.Stringer for logging
func (v Value) String() string {
	if v.IsMissing() {
		return "<missing>"
	}
	return v.Text()
}

// Column is a named, typed sequence of cells
type Column struct {
	Name   string
	Type   SemanticType
	Values []Value
	// Origin is the column's position in the input table. It survives renames and drops
	// and orders per-column audit entries.
	Origin int
}

// NewColumn creates an untyped column
func NewColumn(name string, values []Value) *Column {
	return &Column{Name: name, Type: TypeUnknown, Values: values}
}

// StringColumn builds a column from raw strings; empty strings become missing cells
func StringColumn(name string, raw ...string) *Column {
	values := make([]Value, len(raw))
	for i, s := range raw {
		if s == "" {
			values[i] = Missing()
		} else {
			values[i] = StringValue(s)
		}
	}
	return NewColumn(name, values)
}

// Len returns the number of cells
func (c *Column) Len() int { return len(c.Values) }

// MissingCount returns the number of missing cells
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Floats returns the non-missing numeric values in row order
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.AsFloat(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy of the column
func (c *Column) Clone() *Column {
	values := make([]Value, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Type: c.Type, Values: values, Origin: c.Origin}
}

// ErrRaggedTable is returned when columns have different lengths
var ErrRaggedTable = errors.New("columns must all have the same length")

// Table is an in-memory columnar table
type Table struct {
	columns []*Column
	rows    int
}

// NewTable creates a table from columns of equal length. Each column's Origin is set
// to its position.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{columns: make([]*Column, 0, len(columns))}
	for i, col := range columns {
		if col == nil {
			return nil, errors.Newf("column %d is nil", i)
		}
		if i == 0 {
			t.rows = col.Len()
		} else if col.Len() != t.rows {
			return nil, errors.Wrapf(ErrRaggedTable, "column %q has %d rows, expected %d", col.Name, col.Len(), t.rows)
		}
		col.Origin = i
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// MustTable is NewTable for fixtures; it panics on ragged input
func MustTable(columns ...*Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the column count
func (t *Table) NumColumns() int { return len(t.columns) }

// Columns returns the columns in order. The slice is a copy; the columns are shared.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column returns the column at position i
func (t *Table) Column(i int) *Column { return t.columns[i] }

// ColumnByName returns the first column with the given name
func (t *Table) ColumnByName(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnByOrigin returns the column that was at position origin in the input table
func (t *Table) ColumnByOrigin(origin int) (*Column, bool) {
	for _, c := range t.columns {
		if c.Origin == origin {
			return c, true
		}
	}
	return nil, false
}

// Names returns the column names in order
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Row returns the cells of row i across all columns
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// KeepRows removes every row whose keep flag is false and returns the number removed
func (t *Table) KeepRows(keep []bool) int {
	if len(keep) != t.rows {
		panic(fmt.Sprintf("KeepRows: got %d flags for %d rows", len(keep), t.rows))
	}
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	if kept == t.rows {
		return 0
	}
	for _, c := range t.columns {
		values := make([]Value, 0, kept)
		for i, v := range c.Values {
			if keep[i] {
				values = append(values, v)
			}
		}
		c.Values = values
	}
	removed := t.rows - kept
	t.rows = kept
	return removed
}

// DropColumn removes the column at position i
func (t *Table) DropColumn(i int) {
	t.columns = append(t.columns[:i], t.columns[i+1:]...)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := &Table{columns: make([]*Column, len(t.columns)), rows: t.rows}
	for i, c := range t.columns {
		out.columns[i] = c.Clone()
	}
	return out
}
