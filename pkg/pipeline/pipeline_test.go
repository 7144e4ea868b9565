package pipeline

import (
	"bytes"
	"context"
	"io"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/David-Botos/data-cleaner/pkg/cleaner"
	"github.com/David-Botos/data-cleaner/pkg/config"
	"github.com/David-Botos/data-cleaner/pkg/loader"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

func sampleTable() *model.Table {
	return model.MustTable(
		model.StringColumn("Full Name", "Alice Smith", "Bob Jones", "Bob Jones", "  carol  king", ""),
		model.StringColumn("Email", "alice@x.com", "bob@x.com", "bob@x.com", "carol@x.com", "alice@x.con"),
		model.StringColumn("Age", "30", "", "", "40", "50"),
		model.StringColumn("Signup Date", "2024-01-15", "2024-02-30", "2024-02-30", "2024-03-01", "2024-04-01"),
		model.StringColumn("Income", "100", "200", "200", "300", "500"),
	)
}

func sampleConfig() *config.CleaningConfig {
	cfg := config.DefaultCleaningConfig()
	cfg.ImputeStrategy["Age"] = "mean"
	cfg.FuzzyColumns = []string{"email"}
	cfg.DateFormat["Signup Date"] = "%Y-%m-%d"
	cfg.ScaleColumns = []string{"Income"}
	return cfg
}

func counts(actions []model.CleaningAction) []int {
	out := make([]int, len(actions))
	for i, a := range actions {
		out[i] = a.Count
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	input := sampleTable()
	o := New(sampleConfig(), zaptest.NewLogger(t), WithWorkers(4))

	res, err := o.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, StateDone, o.State())
	assert.True(t, res.Report.Finalized())
	assert.False(t, res.Report.Failed())

	out := res.Table
	assert.Equal(t, []string{"full_name", "email", "age", "signup_date", "income"}, out.Names())
	assert.Equal(t, 4, out.NumRows())
	assert.Equal(t, 5, input.NumRows(), "input must not be mutated")
	assert.Equal(t, "Full Name", input.Column(0).Name)

	r := res.Report
	require.Len(t, r.ActionsFor(model.StageImputation), 1)
	assert.Equal(t, "Handled missing values in 'Age' with mean", r.ActionsFor(model.StageImputation)[0].Description)
	assert.Equal(t, 2, r.ActionsFor(model.StageImputation)[0].Count)
	assert.Equal(t, []int{1}, counts(r.ActionsFor(model.StageDeduplication)))
	assert.Equal(t, []int{1, 1, 1, 1, 1}, counts(r.ActionsFor(model.StageSchemaNormalization)))
	assert.Equal(t, []int{0, 0, 0, 0, 0}, counts(r.ActionsFor(model.StageTypeCoercion)))
	assert.Equal(t, []int{3, 0, 0}, counts(r.ActionsFor(model.StageTextNormalization)))
	assert.Equal(t, []int{1}, counts(r.ActionsFor(model.StageFuzzyDeduplication)))
	assert.Equal(t, []int{1}, counts(r.ActionsFor(model.StageDateParsing)))
	assert.Equal(t, []int{4}, counts(r.ActionsFor(model.StageScaling)))
	assert.Equal(t, 18, r.Len())

	email, _ := out.ColumnByName("email")
	assert.Equal(t, "alice@x.com", email.Values[3].Str)
	age, _ := out.ColumnByName("age")
	assert.Equal(t, model.TypeInteger, age.Type)
	assert.Equal(t, model.IntValue(40), age.Values[1])
	signup, _ := out.ColumnByName("signup_date")
	assert.Equal(t, model.TypeDate, signup.Type)
	assert.True(t, signup.Values[1].IsMissing())
	income, _ := out.ColumnByName("income")
	assert.Equal(t, []model.Value{model.FloatValue(0), model.FloatValue(0.25), model.FloatValue(0.5), model.FloatValue(1)}, income.Values)

	require.Len(t, r.Profiles, 5)
	assert.Equal(t, model.TypeInteger, r.Profiles[2].Proposed)
	assert.Equal(t, 2, r.Profiles[2].Missing)
	assert.Equal(t, model.TypeString, r.Profiles[3].Proposed)
}

func TestRunIsIdempotent(t *testing.T) {
	o := New(sampleConfig(), zaptest.NewLogger(t))
	first, err := o.Run(context.Background(), sampleTable())
	require.NoError(t, err)

	second, err := o.Run(context.Background(), first.Table)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Report.TotalAffected())
	for _, a := range second.Report.Actions() {
		assert.Contains(t, []model.Stage{model.StageDeduplication, model.StageSchemaNormalization, model.StageTypeCoercion,
			model.StageTextNormalization, model.StageFuzzyDeduplication, model.StageDateParsing, model.StageScaling}, a.Stage)
		assert.Zero(t, a.Count, a.Description)
	}
	assert.Equal(t, first.Table.Names(), second.Table.Names())
	for i := 0; i < first.Table.NumColumns(); i++ {
		assert.Equal(t, first.Table.Column(i).Type, second.Table.Column(i).Type)
		for j, v := range first.Table.Column(i).Values {
			assert.True(t, v.Equal(second.Table.Column(i).Values[j]), "column %d row %d", i, j)
		}
	}
}

func TestRunIsIdempotentThroughFiles(t *testing.T) {
	formats := []struct {
		name  string
		write func(io.Writer, *model.Table) error
		read  func(io.Reader, loader.Options) (*model.Table, error)
	}{
		{"csv", loader.WriteCSV, loader.ReadCSV},
		{"xlsx", loader.WriteXLSX, loader.ReadXLSX},
	}

	for _, f := range formats {
		t.Run(f.name, func(t *testing.T) {
			o := New(sampleConfig(), zaptest.NewLogger(t))
			first, err := o.Run(context.Background(), sampleTable())
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, f.write(&buf, first.Table))
			reread, err := f.read(&buf, loader.DefaultOptions())
			require.NoError(t, err)

			second, err := o.Run(context.Background(), reread)
			require.NoError(t, err)
			for _, a := range second.Report.Actions() {
				assert.Zero(t, a.Count, a.Description)
			}
			signup, _ := second.Table.ColumnByName("signup_date")
			assert.Equal(t, 1, signup.MissingCount())
		})
	}
}

func TestRunReportFollowsStageOrder(t *testing.T) {
	cfg := sampleConfig()
	cfg.NullityThreshold = 0.9
	cfg.Outliers = &config.OutlierConfig{Method: "iqr", Action: "cap", Columns: []string{"income"}}

	res, err := New(cfg, zaptest.NewLogger(t), WithWorkers(8)).Run(context.Background(), sampleTable())
	require.NoError(t, err)

	order := map[model.Stage]int{
		model.StageImputation:          1,
		model.StageDeduplication:       2,
		model.StageSchemaNormalization: 3,
		model.StageTypeCoercion:        4,
		model.StageOutlierHandling:     5,
		model.StageTextNormalization:   6,
		model.StageFuzzyDeduplication:  7,
		model.StageNullityPruning:      8,
		model.StageDateParsing:         9,
		model.StageScaling:             10,
	}
	last := 0
	for _, a := range res.Report.Actions() {
		require.Contains(t, order, a.Stage)
		assert.GreaterOrEqual(t, order[a.Stage], last, a.Description)
		last = order[a.Stage]
	}
	require.NotNil(t, res.Metrics.Stage(model.StageOutlierHandling))
	require.NotNil(t, res.Metrics.Stage(model.StageNullityPruning))
}

func outlierTable() *model.Table {
	tbl := sampleTable()
	income, _ := tbl.ColumnByName("Income")
	income.Values[4] = model.StringValue("5000")
	return tbl
}

func TestRunFlagsOutliers(t *testing.T) {
	cfg := sampleConfig()
	cfg.ScaleColumns = nil
	cfg.Outliers = &config.OutlierConfig{Method: "iqr", Action: "flag", Columns: []string{"Income"}}

	res, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), outlierTable())
	require.NoError(t, err)

	flagged := res.Report.ActionsFor(model.StageOutlierHandling)
	require.Len(t, flagged, 1)
	assert.Equal(t, "Flagged 1 outliers in 'income'", flagged[0].Description)
	assert.Equal(t, []model.OutlierFlag{{Column: "income", Rows: []int{3}}}, res.Report.Outliers)

	income, _ := res.Table.ColumnByName("income")
	assert.Equal(t, model.IntValue(5000), income.Values[3])
}

func TestRunFailureDropsOutlierFlags(t *testing.T) {
	cfg := sampleConfig()
	cfg.ScaleColumns = []string{"email"}
	cfg.Outliers = &config.OutlierConfig{Action: "flag", Columns: []string{"Income"}}

	res, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), outlierTable())
	require.Error(t, err)
	assert.True(t, res.Report.Failed())
	assert.Empty(t, res.Report.Outliers)
}

func TestRunPerColumnOrderIsDeterministic(t *testing.T) {
	var cols []*model.Column
	for i := 0; i < 40; i++ {
		cols = append(cols, model.StringColumn(fmt.Sprintf("Col %02d", i), " A ", "b"))
	}
	tbl := model.MustTable(cols...)

	res, err := New(nil, zaptest.NewLogger(t), WithWorkers(16)).Run(context.Background(), tbl)
	require.NoError(t, err)

	coercions := res.Report.ActionsFor(model.StageTypeCoercion)
	require.Len(t, coercions, 40)
	for i, a := range coercions {
		assert.Equal(t, fmt.Sprintf("col_%02d", i), a.Column)
	}
	texts := res.Report.ActionsFor(model.StageTextNormalization)
	require.Len(t, texts, 40)
	for _, a := range texts {
		assert.Equal(t, 1, a.Count)
	}
}

func TestRunModeImputation(t *testing.T) {
	cfg := config.DefaultCleaningConfig()
	cfg.ImputeStrategy["x"] = "mode"
	tbl := model.MustTable(model.StringColumn("x", "1", "1", "2", ""), model.StringColumn("id", "a", "b", "c", "d"))

	res, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), tbl)
	require.NoError(t, err)
	x, _ := res.Table.ColumnByName("x")
	assert.Equal(t, []model.Value{model.IntValue(1), model.IntValue(1), model.IntValue(2), model.IntValue(1)}, x.Values)
	assert.Equal(t, []int{1}, counts(res.Report.ActionsFor(model.StageImputation)))
}

func TestRunImputationWithDuplicateHeaders(t *testing.T) {
	cfg := config.DefaultCleaningConfig()
	cfg.DefaultImputeStrategy = "mode"
	input := model.MustTable(
		model.StringColumn("x", "a", "", "a", "b"),
		model.StringColumn("x", "c", "d", "", ""),
	)

	res, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), input)
	require.NoError(t, err)
	imputed := res.Report.ActionsFor(model.StageImputation)
	assert.Equal(t, []int{1, 2}, counts(imputed))
	assert.Equal(t, []string{"x", "x"}, []string{imputed[0].Column, imputed[1].Column})
}

func TestRunDropWithDuplicateHeaders(t *testing.T) {
	cfg := config.DefaultCleaningConfig()
	cfg.DefaultImputeStrategy = "drop"
	input := model.MustTable(
		model.StringColumn("x", "a", "b", "c", "d"),
		model.StringColumn("x", "e", "", "g", "h"),
	)

	res, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Table.NumRows())
	imputed := res.Report.ActionsFor(model.StageImputation)
	require.Len(t, imputed, 1)
	assert.Equal(t, "Dropped 1 rows with missing values in 'x'", imputed[0].Description)
	assert.Equal(t, []string{"x", "x_2"}, res.Table.Names())
}

func TestRunAbortsOnUnknownColumn(t *testing.T) {
	cfg := sampleConfig()
	cfg.ScaleColumns = []string{"salary"}
	input := sampleTable()

	o := New(cfg, zaptest.NewLogger(t))
	res, err := o.Run(context.Background(), input)
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, model.StageScaling, stageErr.Stage)
	assert.True(t, errors.Is(err, cleaner.ErrUnknownColumn))
	assert.Equal(t, ErrorCategoryConfiguration, CategorizeError(err))

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateFailed, o.State())
	assert.Same(t, input, res.Table)
	assert.Equal(t, "Full Name", res.Table.Column(0).Name)

	r := res.Report
	assert.True(t, r.Finalized())
	require.NotNil(t, r.Fatal)
	assert.Equal(t, model.StageScaling, r.Fatal.Stage)
	actions := r.Actions()
	assert.True(t, actions[len(actions)-1].Fatal)
	assert.NotEmpty(t, r.ActionsFor(model.StageDateParsing))
}

func TestRunAbortsOnInvalidThreshold(t *testing.T) {
	cfg := sampleConfig()
	cfg.FuzzyThreshold = 1.5

	res, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), sampleTable())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cleaner.ErrInvalidThreshold))
	assert.Equal(t, model.StageFuzzyDeduplication, res.Report.Fatal.Stage)
	assert.Empty(t, res.Report.ActionsFor(model.StageDateParsing))
}

func TestRunAbortsOnBadFormatAndNonNumericScale(t *testing.T) {
	cfg := sampleConfig()
	cfg.DateFormat["Signup Date"] = "yyyy"
	_, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), sampleTable())
	assert.True(t, errors.Is(err, cleaner.ErrInvalidFormat))

	cfg = sampleConfig()
	cfg.ScaleColumns = []string{"email"}
	_, err = New(cfg, zaptest.NewLogger(t)).Run(context.Background(), sampleTable())
	assert.True(t, errors.Is(err, cleaner.ErrNotNumeric))
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(nil, zaptest.NewLogger(t)).Run(ctx, sampleTable())
	require.Error(t, err)
	assert.Equal(t, ErrorCategoryCancelled, CategorizeError(err))
	assert.Equal(t, model.StageProfiling, res.Report.Fatal.Stage)
	assert.Equal(t, 1, res.Report.Len())
}

func TestRunColumnTypeOverride(t *testing.T) {
	cfg := config.DefaultCleaningConfig()
	cfg.ColumnTypes["Zip"] = "string"
	tbl := model.MustTable(model.StringColumn("Zip", "02134", "10001"))

	res, err := New(cfg, zaptest.NewLogger(t)).Run(context.Background(), tbl)
	require.NoError(t, err)
	zip, _ := res.Table.ColumnByName("zip")
	assert.Equal(t, model.TypeString, zip.Type)
	assert.Equal(t, "02134", zip.Values[0].Str)
}

func TestMetricsReport(t *testing.T) {
	res, err := New(sampleConfig(), zaptest.NewLogger(t)).Run(context.Background(), sampleTable())
	require.NoError(t, err)

	text := res.Metrics.GenerateMetricsReport()
	assert.Contains(t, text, "=== Pipeline Metrics ===")
	assert.Contains(t, text, string(model.StageFuzzyDeduplication))
	assert.Equal(t, 5, res.Metrics.Stage(model.StageTypeCoercion).Columns)
}
