// pkg/model/cleaning.go
package model

import "fmt"

// Stage names a step of the cleaning pipeline
type Stage string

const (
	StageInit                Stage = "init"
	StageProfiling           Stage = "profiling"
	StageImputation          Stage = "imputation"
	StageDeduplication       Stage = "deduplication"
	StageSchemaNormalization Stage = "schema_normalization"
	StageTypeCoercion        Stage = "type_coercion"
	StageOutlierHandling     Stage = "outlier_handling"
	StageTextNormalization   Stage = "text_normalization"
	StageFuzzyDeduplication  Stage = "fuzzy_deduplication"
	StageNullityPruning      Stage = "nullity_pruning"
	StageDateParsing         Stage = "date_parsing"
	StageScaling             Stage = "scaling"
)

// CleaningAction is one audit record of a mutation performed by a stage.
// Actions are values; once appended to a Report they are never modified.
type CleaningAction struct {
	Stage       Stage  // Stage that performed the action
	Column      string // Target column, empty for table-wide actions
	Description string // Rendered audit line
	Count       int    // Cells, rows or columns affected
	Fatal       bool   // Marks the entry that aborted the pipeline
}

// NewAction builds an action with a formatted description
func NewAction(stage Stage, column string, count int, format string, args ...interface{}) CleaningAction {
	return CleaningAction{
		Stage:       stage,
		Column:      column,
		Description: fmt.Sprintf(format, args...),
		Count:       count,
	}
}

// String returns the audit line
func (a CleaningAction) String() string {
	return a.Description
}

// FatalError identifies the stage and reason of a pipeline abort
type FatalError struct {
	Stage  Stage
	Reason string
}

// Error implements error
func (e *FatalError) Error() string {
	return fmt.Sprintf("pipeline aborted in %s: %s", e.Stage, e.Reason)
}
