// pkg/pipeline/metrics.go
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/model"
)

// StageMetrics tracks metrics for one stage of a run
type StageMetrics struct {
	Stage      model.Stage
	StartTime  time.Time
	EndTime    time.Time
	Actions    int
	Affected   int
	Columns    int           // Per-column tasks executed
	ColumnTime time.Duration // Summed time of per-column tasks
	RowsBefore int
	RowsAfter  int
	Failed     bool
}

// Duration returns the wall time of the stage
func (sm *StageMetrics) Duration() time.Duration {
	if sm.EndTime.IsZero() {
		return time.Since(sm.StartTime)
	}
	return sm.EndTime.Sub(sm.StartTime)
}

// Metrics tracks timing and volume for one pipeline run
type Metrics struct {
	mu        sync.Mutex
	logger    *zap.Logger
	StartTime time.Time
	EndTime   time.Time
	Stages    []*StageMetrics
	current   map[model.Stage]*StageMetrics
}

// NewMetrics creates a new Metrics instance
func NewMetrics(logger *zap.Logger) *Metrics {
	return &Metrics{
		logger:    logger,
		StartTime: time.Now(),
		current:   make(map[model.Stage]*StageMetrics),
	}
}

// StartStage begins tracking a stage
func (m *Metrics) StartStage(stage model.Stage, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm := &StageMetrics{Stage: stage, StartTime: time.Now(), RowsBefore: rows}
	m.Stages = append(m.Stages, sm)
	m.current[stage] = sm
}

// EndStage completes a stage with the actions it emitted
func (m *Metrics) EndStage(stage model.Stage, rows int, actions []model.CleaningAction, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.current[stage]
	if !ok {
		return
	}
	sm.EndTime = time.Now()
	sm.RowsAfter = rows
	sm.Actions = len(actions)
	sm.Failed = failed
	for _, a := range actions {
		sm.Affected += a.Count
	}

	if m.logger != nil {
		m.logger.Debug("Completed stage",
			zap.String("stage", string(stage)),
			zap.Duration("duration", sm.Duration()),
			zap.Int("actions", sm.Actions),
			zap.Int("affected", sm.Affected),
			zap.Int("rowsBefore", sm.RowsBefore),
			zap.Int("rowsAfter", sm.RowsAfter))
	}
}

// RecordColumn adds the time of one per-column task; safe for concurrent use
func (m *Metrics) RecordColumn(stage model.Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if sm, ok := m.current[stage]; ok {
		sm.Columns++
		sm.ColumnTime += d
	}
}

// Complete marks the end of the run
func (m *Metrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

// Duration returns the total duration of the run
func (m *Metrics) Duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// Stage returns the metrics of one stage, or nil when it did not run
func (m *Metrics) Stage(stage model.Stage) *StageMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current[stage]
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// GenerateMetricsReport renders a plain-text timing table
func (m *Metrics) GenerateMetricsReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== Pipeline Metrics ===\n")
	sb.WriteString(fmt.Sprintf("Total duration: %s\n", formatDuration(m.Duration())))
	sb.WriteString(fmt.Sprintf("%-22s %10s %8s %9s %8s %8s\n", "stage", "duration", "actions", "affected", "rows in", "rows out"))
	for _, sm := range m.Stages {
		status := ""
		if sm.Failed {
			status = " (failed)"
		}
		sb.WriteString(fmt.Sprintf("%-22s %10s %8d %9d %8d %8d%s\n",
			sm.Stage, formatDuration(sm.Duration()), sm.Actions, sm.Affected, sm.RowsBefore, sm.RowsAfter, status))
	}
	return sb.String()
}
