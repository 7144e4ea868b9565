// pkg/model/profile.go
package model

// NumericSummary holds descriptive statistics of a numeric column
type NumericSummary struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// ColumnProfile is the profiler's verdict on one column
type ColumnProfile struct {
	Column   string
	Position int
	Proposed SemanticType
	Rows     int
	Missing  int
	Distinct int
	Numeric  *NumericSummary
}

// MissingRate returns the fraction of missing cells
func (p ColumnProfile) MissingRate() float64 {
	if p.Rows == 0 {
		return 0
	}
	return float64(p.Missing) / float64(p.Rows)
}
