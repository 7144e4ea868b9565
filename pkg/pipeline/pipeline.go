// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/cleaner"
	"github.com/David-Botos/data-cleaner/pkg/config"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// State is a state of the orchestrator state machine
type State int

const (
	StateInit State = iota
	StateProfiling
	StateImputing
	StateDeduplicating
	StateNormalizing
	StateCoercing
	StateOutlierHandling
	StateTextNormalizing
	StateFuzzyDedup
	StateNullityPruning
	StateDateParsing
	StateScaling
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:            "Init",
	StateProfiling:       "Profiling",
	StateImputing:        "Imputing",
	StateDeduplicating:   "Deduplicating",
	StateNormalizing:     "Normalizing",
	StateCoercing:        "Coercing",
	StateOutlierHandling: "OutlierHandling",
	StateTextNormalizing: "TextNormalizing",
	StateFuzzyDedup:      "FuzzyDedup",
	StateNullityPruning:  "NullityPruning",
	StateDateParsing:     "DateParsing",
	StateScaling:         "Scaling",
	StateDone:            "Done",
	StateFailed:          "Failed",
}

// String returns the state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the outcome of one run. On failure Table is the unmodified input.
type Result struct {
	Table   *model.Table
	Report  *model.Report
	State   State
	Metrics *Metrics
}

// Orchestrator sequences the cleaning stages over a table
type Orchestrator struct {
	cfg     *config.CleaningConfig
	logger  *zap.Logger
	cleaner *cleaner.DataCleaner
	fuzzy   *cleaner.FuzzyDeduplicator
	workers int
	state   State
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithWorkers bounds per-column parallelism; n <= 0 means runtime.NumCPU()
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithFuzzyDeduplicator replaces the deduplicator built from the configured metric
func WithFuzzyDeduplicator(d *cleaner.FuzzyDeduplicator) Option {
	return func(o *Orchestrator) { o.fuzzy = d }
}

// New creates an orchestrator. A nil cfg means the default cleaning configuration.
func New(cfg *config.CleaningConfig, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultCleaningConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:     cfg,
		logger:  logger.Named("pipeline"),
		cleaner: cleaner.NewDataCleaner(logger),
		state:   StateInit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the state reached by the last run
func (o *Orchestrator) State() State { return o.state }

// step is one transition of the state machine
type step struct {
	state State
	stage model.Stage
	exec  func(r *run) ([]model.CleaningAction, error)
}

func (o *Orchestrator) steps() []step {
	steps := []step{
		{StateProfiling, model.StageProfiling, o.profile},
		{StateImputing, model.StageImputation, o.impute},
		{StateDeduplicating, model.StageDeduplication, o.deduplicate},
		{StateNormalizing, model.StageSchemaNormalization, o.normalizeNames},
		{StateCoercing, model.StageTypeCoercion, o.coerce},
	}
	if o.cfg.Outliers != nil && len(o.cfg.Outliers.Columns) > 0 {
		steps = append(steps, step{StateOutlierHandling, model.StageOutlierHandling, o.handleOutliers})
	}
	steps = append(steps,
		step{StateTextNormalizing, model.StageTextNormalization, o.normalizeText},
		step{StateFuzzyDedup, model.StageFuzzyDeduplication, o.fuzzyDedup},
	)
	if o.cfg.NullityThreshold > 0 {
		steps = append(steps, step{StateNullityPruning, model.StageNullityPruning, o.pruneNullity})
	}
	return append(steps,
		step{StateDateParsing, model.StageDateParsing, o.parseDates},
		step{StateScaling, model.StageScaling, o.scale},
	)
}

// Run cleans a copy of input. Stages run strictly in order and the context is
// only checked between stages. A fatal stage error finalizes the report with a
// fatal entry, leaves the orchestrator in StateFailed and returns the input
// table untouched together with a *StageError.
func (o *Orchestrator) Run(ctx context.Context, input *model.Table) (*Result, error) {
	metrics := NewMetrics(o.logger)
	r := &run{
		table:    input.Clone(),
		report:   model.NewReport(),
		resolver: newResolver(input),
		pool:     NewColumnPool(o.workers, o.logger, metrics),
		targets:  make(map[int]model.SemanticType, input.NumColumns()),
	}
	o.state = StateInit

	logger := o.logger.With(zap.String("runID", r.report.RunID.String()))
	logger.Info("Starting cleaning pipeline",
		zap.Int("rows", input.NumRows()),
		zap.Int("columns", input.NumColumns()),
		zap.Int("workers", r.pool.Size()))

	for _, s := range o.steps() {
		if err := ctx.Err(); err != nil {
			return o.abort(logger, input, r, metrics, s.stage, err)
		}

		o.state = s.state
		metrics.StartStage(s.stage, r.table.NumRows())
		actions, err := s.exec(r)
		if err != nil {
			metrics.EndStage(s.stage, r.table.NumRows(), nil, true)
			return o.abort(logger, input, r, metrics, s.stage, err)
		}
		metrics.EndStage(s.stage, r.table.NumRows(), actions, false)

		if err := r.report.Append(actions...); err != nil {
			return o.abort(logger, input, r, metrics, s.stage, err)
		}
	}

	r.report.Finalize()
	metrics.Complete()
	o.state = StateDone

	logger.Info("Cleaning pipeline completed",
		zap.Int("rows", r.table.NumRows()),
		zap.Int("columns", r.table.NumColumns()),
		zap.Int("actions", r.report.Len()),
		zap.Int("affected", r.report.TotalAffected()),
		zap.Duration("duration", metrics.Duration()))

	return &Result{Table: r.table, Report: r.report, State: StateDone, Metrics: metrics}, nil
}

func (o *Orchestrator) abort(logger *zap.Logger, input *model.Table, r *run, metrics *Metrics, stage model.Stage, err error) (*Result, error) {
	r.report.Abort(stage, err)
	metrics.Complete()
	o.state = StateFailed

	logger.Error("Cleaning pipeline aborted",
		zap.String("stage", string(stage)),
		zap.String("category", CategorizeError(err).String()),
		zap.Error(err))

	return &Result{Table: input, Report: r.report, State: StateFailed, Metrics: metrics},
		&StageError{Stage: stage, Err: err}
}
