package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

func sampleReport(t *testing.T) *model.Report {
	r := model.NewReport()
	r.Profiles = []model.ColumnProfile{
		{Column: "Age", Position: 0, Proposed: model.TypeInteger, Rows: 4, Missing: 1, Distinct: 3,
			Numeric: &model.NumericSummary{Count: 3, Mean: 20, Std: 10, Min: 10, Max: 30}},
		{Column: "Email", Position: 1, Proposed: model.TypeString, Rows: 4, Distinct: 4},
	}
	require.NoError(t, r.Append(
		model.NewAction(model.StageImputation, "Age", 1, "Handled missing values in '%s' with %s", "Age", "mode"),
		model.NewAction(model.StageFuzzyDeduplication, "email", 89, "Deduplicated %d text entries in '%s' using fuzzy matching", 89, "email"),
		model.NewAction(model.StageDateParsing, "signupdate", 0, "Parsed '%s' as datetime using format %s", "signupdate", "%Y-%m-%d"),
	))
	return r
}

func TestLinesAreCanonical(t *testing.T) {
	r := sampleReport(t)
	assert.Equal(t, []string{
		"Handled missing values in 'Age' with mode",
		"Deduplicated 89 text entries in 'email' using fuzzy matching",
		"Parsed 'signupdate' as datetime using format %Y-%m-%d",
	}, Lines(r))

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Equal(t, strings.Join(Lines(r), "\n")+"\n", buf.String())
}

func TestMarkdown(t *testing.T) {
	r := sampleReport(t)
	r.Finalize()

	md := Markdown(r, "customers.csv")
	assert.Contains(t, md, "# Data Cleaning Summary")
	assert.Contains(t, md, "- **Source:** customers.csv")
	assert.Contains(t, md, "- **Status:** completed")
	assert.Contains(t, md, "- **Actions:** 3 (90 values affected)")
	assert.Contains(t, md, "| Age | integer | 1 (25.0%) | 3 | 20 | 10 | 10 | 30 |")
	assert.Contains(t, md, "| Email | string | 0 (0.0%) | 4 |  |  |  |  |")
	assert.Contains(t, md, "## Fuzzy Deduplication\n\n- Deduplicated 89 text entries")
	assert.Less(t, strings.Index(md, "## Imputation"), strings.Index(md, "## Date Parsing"))
}

func TestMarkdownFailedRun(t *testing.T) {
	r := sampleReport(t)
	r.Abort(model.StageScaling, errors.New("column \"salary\": unknown column"))

	md := Markdown(r, "")
	assert.NotContains(t, md, "Source")
	assert.Contains(t, md, "- **Status:** failed during scaling")
	assert.Contains(t, md, "not authoritative")
	assert.Contains(t, md, "- **Aborted pipeline during scaling")
}

func TestWriteJSON(t *testing.T) {
	r := sampleReport(t)
	r.Abort(model.StageScaling, errors.New("boom"))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r, "in.csv"))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, r.RunID.String(), doc.RunID)
	assert.Equal(t, "failed", doc.Status)
	require.NotNil(t, doc.Fatal)
	assert.Equal(t, "scaling", doc.Fatal.Stage)
	assert.Equal(t, "boom", doc.Fatal.Reason)
	require.Len(t, doc.Actions, 4)
	assert.True(t, doc.Actions[3].Fatal)
	require.Len(t, doc.Profiles, 2)
	require.NotNil(t, doc.Profiles[0].Mean)
	assert.Equal(t, 20.0, *doc.Profiles[0].Mean)
	assert.Nil(t, doc.Profiles[1].Mean)
}

func TestFlaggedOutliers(t *testing.T) {
	r := sampleReport(t)
	r.Outliers = []model.OutlierFlag{{Column: "income", Rows: []int{2, 7}}}
	r.Finalize()

	assert.Contains(t, Markdown(r, ""), "## Flagged Outliers\n\n- income: rows 2, 7\n")

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r, ""))
	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Outliers, 1)
	assert.Equal(t, OutlierEntry{Column: "income", Rows: []int{2, 7}}, doc.Outliers[0])
}

func TestStatus(t *testing.T) {
	r := model.NewReport()
	assert.Equal(t, "running", Status(r))
	r.Finalize()
	assert.Equal(t, "completed", Status(r))
}
