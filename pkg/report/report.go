// pkg/report/report.go
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// Lines returns the canonical audit line of every action in report order
func Lines(r *model.Report) []string {
	actions := r.Actions()
	lines := make([]string, len(actions))
	for i, a := range actions {
		lines[i] = a.String()
	}
	return lines
}

// WriteText writes one canonical line per action
func WriteText(w io.Writer, r *model.Report) error {
	for _, line := range Lines(r) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "failed to write report line")
		}
	}
	return nil
}

// Markdown renders a human-readable summary: run status, column profiles and
// the actions grouped by stage in the order the stages ran.
func Markdown(r *model.Report, source string) string {
	var sb strings.Builder

	sb.WriteString("# Data Cleaning Summary\n\n")
	if source != "" {
		sb.WriteString(fmt.Sprintf("- **Source:** %s\n", source))
	}
	sb.WriteString(fmt.Sprintf("- **Run:** %s\n", r.RunID))
	if !r.FinishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))
	}
	if r.Fatal != nil {
		sb.WriteString(fmt.Sprintf("- **Status:** failed during %s\n", r.Fatal.Stage))
		sb.WriteString(fmt.Sprintf("- **Reason:** %s\n", r.Fatal.Reason))
		sb.WriteString("\n> The cleaned output of a failed run is not authoritative.\n")
	} else {
		sb.WriteString("- **Status:** completed\n")
	}
	sb.WriteString(fmt.Sprintf("- **Actions:** %d (%d values affected)\n", r.Len(), r.TotalAffected()))

	if len(r.Profiles) > 0 {
		sb.WriteString("\n## Column Profiles\n\n")
		sb.WriteString("| Column | Type | Missing | Distinct | Mean | Std | Min | Max |\n")
		sb.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, p := range r.Profiles {
			mean, std, lo, hi := "", "", "", ""
			if p.Numeric != nil {
				mean = formatStat(p.Numeric.Mean)
				std = formatStat(p.Numeric.Std)
				lo = formatStat(p.Numeric.Min)
				hi = formatStat(p.Numeric.Max)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d (%.1f%%) | %d | %s | %s | %s | %s |\n",
				escapeCell(p.Column), p.Proposed, p.Missing, p.MissingRate()*100, p.Distinct, mean, std, lo, hi))
		}
	}

	var stage model.Stage
	for _, a := range r.Actions() {
		if a.Stage != stage {
			stage = a.Stage
			sb.WriteString(fmt.Sprintf("\n## %s\n\n", stageTitle(stage)))
		}
		if a.Fatal {
			sb.WriteString(fmt.Sprintf("- **%s**\n", a))
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s\n", a))
	}

	if len(r.Outliers) > 0 {
		sb.WriteString("\n## Flagged Outliers\n\n")
		for _, f := range r.Outliers {
			rows := make([]string, len(f.Rows))
			for i, row := range f.Rows {
				rows[i] = strconv.Itoa(row)
			}
			sb.WriteString(fmt.Sprintf("- %s: rows %s\n", escapeCell(f.Column), strings.Join(rows, ", ")))
		}
	}
	return sb.String()
}

func formatStat(f float64) string {
	return fmt.Sprintf("%.4g", f)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// stageTitle turns schema_normalization into Schema Normalization
func stageTitle(s model.Stage) string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Document is the JSON form of a report
type Document struct {
	RunID      string           `json:"run_id"`
	Source     string           `json:"source,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Status     string           `json:"status"`
	Fatal      *FatalDocument   `json:"fatal,omitempty"`
	Profiles   []ProfileEntry   `json:"profiles,omitempty"`
	Actions    []ActionDocument `json:"actions"`
	Outliers   []OutlierEntry   `json:"outliers,omitempty"`
}

// OutlierEntry is the JSON form of the rows flagged in one column
type OutlierEntry struct {
	Column string `json:"column"`
	Rows   []int  `json:"rows"`
}

// FatalDocument is the JSON form of a fatal error
type FatalDocument struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// ProfileEntry is the JSON form of a column profile
type ProfileEntry struct {
	Column   string   `json:"column"`
	Position int      `json:"position"`
	Proposed string   `json:"proposed_type"`
	Rows     int      `json:"rows"`
	Missing  int      `json:"missing"`
	Distinct int      `json:"distinct"`
	Mean     *float64 `json:"mean,omitempty"`
	Std      *float64 `json:"std,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

// ActionDocument is the JSON form of a cleaning action
type ActionDocument struct {
	Stage       string `json:"stage"`
	Column      string `json:"column,omitempty"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Fatal       bool   `json:"fatal,omitempty"`
}

// NewDocument converts a report for JSON encoding
func NewDocument(r *model.Report, source string) Document {
	doc := Document{
		RunID:      r.RunID.String(),
		Source:     source,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		Status:     Status(r),
		Actions:    make([]ActionDocument, 0, r.Len()),
	}
	if r.Fatal != nil {
		doc.Fatal = &FatalDocument{Stage: string(r.Fatal.Stage), Reason: r.Fatal.Reason}
	}
	for _, p := range r.Profiles {
		entry := ProfileEntry{
			Column:   p.Column,
			Position: p.Position,
			Proposed: string(p.Proposed),
			Rows:     p.Rows,
			Missing:  p.Missing,
			Distinct: p.Distinct,
		}
		if n := p.Numeric; n != nil {
			entry.Mean, entry.Std, entry.Min, entry.Max = &n.Mean, &n.Std, &n.Min, &n.Max
		}
		doc.Profiles = append(doc.Profiles, entry)
	}
	for _, a := range r.Actions() {
		doc.Actions = append(doc.Actions, ActionDocument{
			Stage:       string(a.Stage),
			Column:      a.Column,
			Description: a.Description,
			Count:       a.Count,
			Fatal:       a.Fatal,
		})
	}
	for _, f := range r.Outliers {
		doc.Outliers = append(doc.Outliers, OutlierEntry{Column: f.Column, Rows: f.Rows})
	}
	return doc
}

// WriteJSON encodes the report as indented JSON
func WriteJSON(w io.Writer, r *model.Report, source string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(r, source)); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	return nil
}

// Status summarizes the outcome of a run
func Status(r *model.Report) string {
	switch {
	case r.Fatal != nil:
		return "failed"
	case r.Finalized():
		return "completed"
	default:
		return "running"
	}
}
