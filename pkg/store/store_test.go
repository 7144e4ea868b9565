package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

func sampleReport(t *testing.T) *model.Report {
	r := model.NewReport()
	require.NoError(t, r.Append(
		model.NewAction(model.StageDeduplication, "", 2, "Removed %d duplicate rows", 2),
		model.NewAction(model.StageTextNormalization, "name", 3, "Normalized text in '%s' (%d cells altered)", "name", 3),
	))
	return r
}

func openSQLite(t *testing.T) *ReportStore {
	s, err := Open(context.Background(), "sqlite", ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestSaveReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.EnsureSchema(ctx), "schema creation is repeatable")

	r := sampleReport(t)
	r.Finalize()
	require.NoError(t, s.SaveReport(ctx, r, "customers.csv"))

	run, err := s.GetRun(ctx, r.RunID)
	require.NoError(t, err)
	assert.Equal(t, "customers.csv", run.Source)
	assert.Equal(t, "completed", run.Status)
	assert.False(t, run.FatalStage.Valid)
	assert.Equal(t, 2, run.ActionCount)
	assert.Equal(t, 5, run.Affected)

	records, err := s.ListActions(ctx, r.RunID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	actions := make([]model.CleaningAction, len(records))
	for i, rec := range records {
		assert.Equal(t, i+1, rec.Seq)
		actions[i] = rec.Action()
	}
	assert.Equal(t, r.Actions(), actions)
}

func TestSaveFailedReport(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	r := sampleReport(t)
	r.Abort(model.StageFuzzyDeduplication, errors.New("threshold 1.5 outside (0,1]"))
	require.NoError(t, s.SaveReport(ctx, r, "in.csv"))

	run, err := s.GetRun(ctx, r.RunID)
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, "fuzzy_deduplication", run.FatalStage.String)

	records, err := s.ListActions(ctx, r.RunID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[2].Fatal)
}

func TestGetRunNotFound(t *testing.T) {
	s := openSQLite(t)
	_, err := s.GetRun(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedDriver))
}

func TestSaveReport_Sqlmock(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	s := New(sqlx.NewDb(mockDB, "postgres"), zaptest.NewLogger(t))
	r := sampleReport(t)
	r.Finalize()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cleaning_runs .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9\)`).
		WithArgs(r.RunID.String(), "t.csv", "completed", nil, nil, 2, 5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep := mock.ExpectPrepare(`INSERT INTO cleaning_actions`)
	prep.ExpectExec().
		WithArgs(r.RunID.String(), 1, "deduplication", "", "Removed 2 duplicate rows", 2, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(r.RunID.String(), 2, "text_normalization", "name", "Normalized text in 'name' (3 cells altered)", 3, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveReport(context.Background(), r, "t.csv"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportRollsBack_Sqlmock(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	s := New(sqlx.NewDb(mockDB, "postgres"), zaptest.NewLogger(t))
	r := sampleReport(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO cleaning_runs`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = s.SaveReport(context.Background(), r, "t.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert cleaning run")
	assert.NoError(t, mock.ExpectationsWereMet())
}
