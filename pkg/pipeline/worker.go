// pkg/pipeline/worker.go
package pipeline

import (
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// columnTask transforms one column. It must read and write only that column.
// ok=false means the column produced no action.
type columnTask func(col *model.Column) (action model.CleaningAction, ok bool, err error)

// ColumnPool runs per-column work of a stage on a bounded number of goroutines.
// Results are collected by column index so emission order never depends on
// completion order.
type ColumnPool struct {
	size    int
	logger  *zap.Logger
	metrics *Metrics
}

// NewColumnPool creates a pool; size <= 0 means runtime.NumCPU()
func NewColumnPool(size int, logger *zap.Logger, metrics *Metrics) *ColumnPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &ColumnPool{size: size, logger: logger, metrics: metrics}
}

// Size returns the number of concurrent workers
func (p *ColumnPool) Size() int { return p.size }

// Run applies task to every column and returns the produced actions in column
// order. When several columns fail, the error of the first column wins. All
// tasks finish before Run returns; the context is not consulted mid-column.
func (p *ColumnPool) Run(stage model.Stage, columns []*model.Column, task columnTask) ([]model.CleaningAction, error) {
	actions := make([]model.CleaningAction, len(columns))
	emitted := make([]bool, len(columns))
	errs := make([]error, len(columns))

	var g errgroup.Group
	g.SetLimit(p.size)
	for i, col := range columns {
		i, col := i, col
		g.Go(func() error {
			start := time.Now()
			actions[i], emitted[i], errs[i] = task(col)
			p.metrics.RecordColumn(stage, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.CleaningAction, 0, len(columns))
	for i := range columns {
		if errs[i] != nil {
			p.logger.Debug("Column task failed",
				zap.String("stage", string(stage)),
				zap.String("column", columns[i].Name),
				zap.Error(errs[i]))
			return out, errs[i]
		}
		if emitted[i] {
			out = append(out, actions[i])
		}
	}
	return out, nil
}
