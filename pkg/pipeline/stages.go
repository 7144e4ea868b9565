// pkg/pipeline/stages.go
package pipeline

import (
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/cleaner"
	"github.com/David-Botos/data-cleaner/pkg/converter"
	"github.com/David-Botos/data-cleaner/pkg/model"
	"github.com/David-Botos/data-cleaner/pkg/profiler"
)

// run holds the working state of one pipeline execution
type run struct {
	table    *model.Table
	report   *model.Report
	resolver *resolver
	pool     *ColumnPool
	// targets maps a column origin to the type the coercer will apply
	targets       map[int]model.SemanticType
	profileLayout string
}

func (o *Orchestrator) profile(r *run) ([]model.CleaningAction, error) {
	if o.cfg.ProfileDateFormat != "" {
		layout, err := converter.DateLayout(o.cfg.ProfileDateFormat)
		if err != nil {
			return nil, err
		}
		r.profileLayout = layout
	}

	overrides := make(map[int]model.SemanticType, len(o.cfg.ColumnTypes))
	for _, ref := range sortedKeys(o.cfg.ColumnTypes) {
		col, err := r.resolver.resolve(r.table, ref)
		if err != nil {
			return nil, err
		}
		t, err := model.ParseSemanticType(o.cfg.ColumnTypes[ref])
		if err != nil {
			return nil, err
		}
		overrides[col.Origin] = t
	}

	// Fuzzy and date columns stay text until their own stage. Unknown references
	// are left for those stages to report.
	pinned := make(map[int]bool)
	for _, ref := range o.cfg.FuzzyColumns {
		if origin, ok := r.resolver.origin(r.table, ref); ok {
			pinned[origin] = true
		}
	}
	for ref := range o.cfg.DateFormat {
		if origin, ok := r.resolver.origin(r.table, ref); ok {
			pinned[origin] = true
		}
	}

	cols := r.table.Columns()
	profiles := make([]model.ColumnProfile, len(cols))
	position := make(map[int]int, len(cols))
	for i, col := range cols {
		position[col.Origin] = i
	}
	if _, err := r.pool.Run(model.StageProfiling, cols, func(col *model.Column) (model.CleaningAction, bool, error) {
		profiles[position[col.Origin]] = profiler.Profile(col, r.profileLayout)
		return model.CleaningAction{}, false, nil
	}); err != nil {
		return nil, err
	}

	for _, p := range profiles {
		target := p.Proposed
		if t, ok := overrides[p.Position]; ok {
			target = t
		} else if pinned[p.Position] && p.Proposed != model.TypeDate {
			target = model.TypeString
		}
		r.targets[p.Position] = target

		o.logger.Debug("Profiled column",
			zap.String("column", p.Column),
			zap.String("proposed", string(p.Proposed)),
			zap.String("target", string(target)),
			zap.Int("missing", p.Missing),
			zap.Int("distinct", p.Distinct))
	}
	r.report.Profiles = profiles
	return nil, nil
}

func (o *Orchestrator) impute(r *run) ([]model.CleaningAction, error) {
	strategies := make(map[int]cleaner.Strategy, len(o.cfg.ImputeStrategy))
	for _, ref := range sortedKeys(o.cfg.ImputeStrategy) {
		col, err := r.resolver.resolve(r.table, ref)
		if err != nil {
			return nil, err
		}
		st, err := cleaner.ParseStrategy(o.cfg.ImputeStrategy[ref])
		if err != nil {
			return nil, err
		}
		strategies[col.Origin] = st
	}
	def, err := cleaner.ParseStrategy(o.cfg.DefaultImputeStrategy)
	if err != nil {
		return nil, err
	}
	strategyFor := func(origin int) cleaner.Strategy {
		if st, ok := strategies[origin]; ok {
			return st
		}
		return def
	}

	// Row drops change alignment, so they run before any fill. Actions are
	// keyed by origin since input headers are not unique yet.
	dropped := make(map[int]model.CleaningAction)
	for _, col := range r.table.Columns() {
		if strategyFor(col.Origin) != cleaner.StrategyDrop {
			continue
		}
		if a, ok := o.cleaner.DropMissingRows(r.table, col); ok {
			dropped[col.Origin] = a
		}
	}

	// Every column has at most one imputation action, emitted in column order
	return r.pool.Run(model.StageImputation, r.table.Columns(), func(col *model.Column) (model.CleaningAction, bool, error) {
		if a, ok := dropped[col.Origin]; ok {
			return a, true, nil
		}
		a, ok := o.cleaner.FillMissing(col, strategyFor(col.Origin), r.targets[col.Origin])
		return a, ok, nil
	})
}

func (o *Orchestrator) deduplicate(r *run) ([]model.CleaningAction, error) {
	return []model.CleaningAction{o.cleaner.RemoveDuplicates(r.table)}, nil
}

func (o *Orchestrator) normalizeNames(r *run) ([]model.CleaningAction, error) {
	return o.cleaner.NormalizeColumnNames(r.table), nil
}

func (o *Orchestrator) coerce(r *run) ([]model.CleaningAction, error) {
	layouts := make(map[int]string)
	for ref, format := range o.cfg.DateFormat {
		origin, ok := r.resolver.origin(r.table, ref)
		if !ok {
			continue
		}
		if layout, err := converter.DateLayout(format); err == nil {
			layouts[origin] = layout
		}
	}

	return r.pool.Run(model.StageTypeCoercion, r.table.Columns(), func(col *model.Column) (model.CleaningAction, bool, error) {
		target := r.targets[col.Origin]
		layout := r.profileLayout
		if l, ok := layouts[col.Origin]; ok {
			layout = l
		}
		return o.cleaner.CoerceColumn(col, target, layout), true, nil
	})
}

func (o *Orchestrator) handleOutliers(r *run) ([]model.CleaningAction, error) {
	action, err := cleaner.ParseOutlierAction(o.cfg.Outliers.Action)
	if err != nil {
		return nil, err
	}
	cols, err := r.resolver.resolveAll(r.table, o.cfg.Outliers.Columns)
	if err != nil {
		return nil, err
	}

	// Removal changes every column, so columns are handled one at a time
	var actions []model.CleaningAction
	var flags []model.OutlierFlag
	for _, col := range cols {
		a, rows, err := o.cleaner.HandleOutliers(r.table, col.Name, action)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		actions = append(actions, a)
		if action == cleaner.OutlierFlag {
			flags = append(flags, model.OutlierFlag{Column: col.Name, Rows: rows})
		}
	}
	r.report.Outliers = append(r.report.Outliers, flags...)
	return actions, nil
}

func (o *Orchestrator) normalizeText(r *run) ([]model.CleaningAction, error) {
	return r.pool.Run(model.StageTextNormalization, r.table.Columns(), func(col *model.Column) (model.CleaningAction, bool, error) {
		a, ok := o.cleaner.NormalizeTextColumn(col)
		return a, ok, nil
	})
}

func (o *Orchestrator) fuzzyDedup(r *run) ([]model.CleaningAction, error) {
	if len(o.cfg.FuzzyColumns) == 0 {
		return nil, nil
	}
	if err := cleaner.ValidateThreshold(o.cfg.FuzzyThreshold); err != nil {
		return nil, err
	}
	dedup := o.fuzzy
	if dedup == nil {
		metric, err := cleaner.ParseMetric(o.cfg.FuzzyMetric)
		if err != nil {
			return nil, err
		}
		if dedup, err = cleaner.NewFuzzyDeduplicator(metric, o.logger); err != nil {
			return nil, err
		}
	}
	cols, err := r.resolver.resolveAll(r.table, o.cfg.FuzzyColumns)
	if err != nil {
		return nil, err
	}

	return r.pool.Run(model.StageFuzzyDeduplication, cols, func(col *model.Column) (model.CleaningAction, bool, error) {
		a, err := dedup.Deduplicate(col, o.cfg.FuzzyThreshold)
		return a, err == nil, err
	})
}

func (o *Orchestrator) pruneNullity(r *run) ([]model.CleaningAction, error) {
	protected := make(map[string]bool)
	for _, ref := range o.cfg.ProtectedColumns() {
		if col, err := r.resolver.resolve(r.table, ref); err == nil {
			protected[col.Name] = true
		}
	}
	return o.cleaner.DropHighNullityColumns(r.table, o.cfg.NullityThreshold, protected)
}

func (o *Orchestrator) parseDates(r *run) ([]model.CleaningAction, error) {
	if len(o.cfg.DateFormat) == 0 {
		return nil, nil
	}
	formats := make(map[int]string, len(o.cfg.DateFormat))
	refs := sortedKeys(o.cfg.DateFormat)
	for _, ref := range refs {
		col, err := r.resolver.resolve(r.table, ref)
		if err != nil {
			return nil, err
		}
		formats[col.Origin] = o.cfg.DateFormat[ref]
	}
	cols, err := r.resolver.resolveAll(r.table, refs)
	if err != nil {
		return nil, err
	}

	return r.pool.Run(model.StageDateParsing, cols, func(col *model.Column) (model.CleaningAction, bool, error) {
		a, err := o.cleaner.ParseDates(col, formats[col.Origin])
		return a, err == nil, err
	})
}

func (o *Orchestrator) scale(r *run) ([]model.CleaningAction, error) {
	if len(o.cfg.ScaleColumns) == 0 {
		return nil, nil
	}
	method, err := cleaner.ParseScaleMethod(o.cfg.ScaleMethod)
	if err != nil {
		return nil, err
	}
	cols, err := r.resolver.resolveAll(r.table, o.cfg.ScaleColumns)
	if err != nil {
		return nil, err
	}

	return r.pool.Run(model.StageScaling, cols, func(col *model.Column) (model.CleaningAction, bool, error) {
		a, err := o.cleaner.Scale(col, method)
		return a, err == nil, err
	})
}
