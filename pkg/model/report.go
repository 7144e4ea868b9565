// pkg/model/report.go
package model

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrReportFinalized is returned when appending to a finalized report
var ErrReportFinalized = errors.New("report is finalized")

// Report is the ordered, append-only audit trail of one pipeline run
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	// Profiles holds the column profiles computed before any mutation
	Profiles []ColumnProfile
	// Outliers lists the rows flagged by outlier handling. Row indices refer to
	// the cleaned output table.
	Outliers []OutlierFlag
	// Fatal is set when the pipeline aborted
	Fatal *FatalError

	actions   []CleaningAction
	finalized bool
}

// OutlierFlag marks the rows of one column whose values fall outside the IQR fences
type OutlierFlag struct {
	Column string
	Rows   []int
}

// NewReport creates an empty report for a new run
func NewReport() *Report {
	return &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		actions:   make([]CleaningAction, 0),
	}
}

// Append adds actions in arrival order
func (r *Report) Append(actions ...CleaningAction) error {
	if r.finalized {
		return ErrReportFinalized
	}
	r.actions = append(r.actions, actions...)
	return nil
}

// Abort records the fatal entry for stage and finalizes the report
func (r *Report) Abort(stage Stage, cause error) {
	if r.finalized {
		return
	}
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	r.Fatal = &FatalError{Stage: stage, Reason: reason}
	// Flags index the output table, which a failed run does not produce
	r.Outliers = nil
	r.actions = append(r.actions, CleaningAction{
		Stage:       stage,
		Description: "Aborted pipeline during " + string(stage) + ": " + reason,
		Fatal:       true,
	})
	r.Finalize()
}

// Finalize makes the report read-only
func (r *Report) Finalize() {
	if r.finalized {
		return
	}
	r.finalized = true
	r.FinishedAt = time.Now()
}

// Finalized reports whether the report is read-only
func (r *Report) Finalized() bool { return r.finalized }

// Failed reports whether the run aborted
func (r *Report) Failed() bool { return r.Fatal != nil }

// Actions returns a copy of the recorded actions
func (r *Report) Actions() []CleaningAction {
	out := make([]CleaningAction, len(r.actions))
	copy(out, r.actions)
	return out
}

// Len returns the number of recorded actions
func (r *Report) Len() int { return len(r.actions) }

// ActionsFor returns the actions emitted by one stage
func (r *Report) ActionsFor(stage Stage) []CleaningAction {
	var out []CleaningAction
	for _, a := range r.actions {
		if a.Stage == stage {
			out = append(out, a)
		}
	}
	return out
}

// TotalAffected sums the counts of all non-fatal actions
func (r *Report) TotalAffected() int {
	total := 0
	for _, a := range r.actions {
		if !a.Fatal {
			total += a.Count
		}
	}
	return total
}
