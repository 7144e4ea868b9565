// pkg/store/store.go
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/David-Botos/data-cleaner/pkg/model"
	"github.com/David-Botos/data-cleaner/pkg/report"
)

// ErrUnsupportedDriver is returned for store drivers other than postgres and sqlite
var ErrUnsupportedDriver = errors.New("unsupported report store driver")

// ErrRunNotFound is returned when a run id has no stored report
var ErrRunNotFound = errors.New("cleaning run not found")

const timeLayout = time.RFC3339Nano

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cleaning_runs (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		fatal_stage TEXT,
		fatal_reason TEXT,
		action_count INTEGER NOT NULL,
		affected INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cleaning_actions (
		run_id TEXT NOT NULL REFERENCES cleaning_runs (run_id),
		seq INTEGER NOT NULL,
		stage TEXT NOT NULL,
		column_name TEXT NOT NULL,
		description TEXT NOT NULL,
		affected INTEGER NOT NULL,
		fatal BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// RunRecord is a stored pipeline run
type RunRecord struct {
	RunID       string         `db:"run_id"`
	Source      string         `db:"source"`
	Status      string         `db:"status"`
	FatalStage  sql.NullString `db:"fatal_stage"`
	FatalReason sql.NullString `db:"fatal_reason"`
	ActionCount int            `db:"action_count"`
	Affected    int            `db:"affected"`
	StartedAt   string         `db:"started_at"`
	FinishedAt  string         `db:"finished_at"`
}

// ActionRecord is a stored cleaning action
type ActionRecord struct {
	RunID       string `db:"run_id"`
	Seq         int    `db:"seq"`
	Stage       string `db:"stage"`
	Column      string `db:"column_name"`
	Description string `db:"description"`
	Affected    int    `db:"affected"`
	Fatal       bool   `db:"fatal"`
}

// Action converts the record back into a CleaningAction
func (r ActionRecord) Action() model.CleaningAction {
	return model.CleaningAction{
		Stage:       model.Stage(r.Stage),
		Column:      r.Column,
		Description: r.Description,
		Count:       r.Affected,
		Fatal:       r.Fatal,
	}
}

// ReportStore persists cleaning reports into a SQL audit store
type ReportStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open connects to the store. driver is postgres or sqlite.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*ReportStore, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, errors.Wrapf(ErrUnsupportedDriver, "driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s report store", driver)
	}
	if driver == "sqlite" {
		// A single connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s report store", driver)
	}
	return New(db, logger), nil
}

// New wraps an open database
func New(db *sqlx.DB, logger *zap.Logger) *ReportStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportStore{db: db, logger: logger.Named("report-store")}
}

// DB returns the underlying database handle
func (s *ReportStore) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the run and action tables if they don't exist
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create report store tables")
		}
	}
	s.logger.Debug("Ensured report store tables exist")
	return nil
}

// SaveReport stores a run and all of its actions in one transaction
func (s *ReportStore) SaveReport(ctx context.Context, r *model.Report, source string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	var fatalStage, fatalReason sql.NullString
	if r.Fatal != nil {
		fatalStage = sql.NullString{String: string(r.Fatal.Stage), Valid: true}
		fatalReason = sql.NullString{String: r.Fatal.Reason, Valid: true}
	}
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO cleaning_runs
		(run_id, source, status, fatal_stage, fatal_reason, action_count, affected, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.RunID.String(),
		source,
		report.Status(r),
		fatalStage,
		fatalReason,
		r.Len(),
		r.TotalAffected(),
		r.StartedAt.UTC().Format(timeLayout),
		finished.UTC().Format(timeLayout),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert cleaning run")
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO cleaning_actions
		(run_id, seq, stage, column_name, description, affected, fatal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for i, a := range r.Actions() {
		if _, err = stmt.ExecContext(ctx,
			r.RunID.String(),
			i+1,
			string(a.Stage),
			a.Column,
			a.Description,
			a.Count,
			a.Fatal,
		); err != nil {
			return errors.Wrapf(err, "failed to insert cleaning action %d", i+1)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	s.logger.Info("Recorded cleaning run",
		zap.String("runID", r.RunID.String()),
		zap.String("source", source),
		zap.Int("actions", r.Len()))
	return nil
}

// GetRun returns the stored run
func (s *ReportStore) GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	var run RunRecord
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`
		SELECT run_id, source, status, fatal_stage, fatal_reason, action_count, affected, started_at, finished_at
		FROM cleaning_runs WHERE run_id = ?`), runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query cleaning run")
	}
	return &run, nil
}

// ListActions returns the actions of a run in their original order
func (s *ReportStore) ListActions(ctx context.Context, runID uuid.UUID) ([]ActionRecord, error) {
	var actions []ActionRecord
	err := s.db.SelectContext(ctx, &actions, s.db.Rebind(`
		SELECT run_id, seq, stage, column_name, description, affected, fatal
		FROM cleaning_actions WHERE run_id = ? ORDER BY seq`), runID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query cleaning actions")
	}
	return actions, nil
}
