// Package etl runs the parse/normalize/map/validate/export transformation pipeline.
package etl

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates counters for one pipeline invocation.
type Metrics struct {
	TotalInputRecords   int
	ParsedRecords       int
	NormalizedRecords   int
	MappedRelationships int
	ValidationErrors    int
	ProcessingTime      time.Duration

	// StageMetrics holds per-stage outcome summaries keyed by stage name.
	StageMetrics map[string]map[string]any
}

// MetricsTracker accumulates per-run metrics and feeds the process-wide
// Prometheus collectors. Guarded by its own lock; stage runners report into
// it from a single goroutine but the coordinator may read concurrently.
type MetricsTracker struct {
	mu sync.Mutex

	metrics      Metrics
	stageResults map[Stage]StageResult
}

// NewMetricsTracker creates an empty tracker.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		metrics:      Metrics{StageMetrics: make(map[string]map[string]any)},
		stageResults: make(map[Stage]StageResult),
	}
}

// SetTotalInputRecords records the raw record count observed for this run.
func (t *MetricsTracker) SetTotalInputRecords(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalInputRecords = total
}

// Update refreshes aggregate metrics after a pipeline execution.
func (t *MetricsTracker) Update(
	parsed *ParsedBundle,
	normalized *NormalizedBundle,
	mapped *MappedBundle,
	validation *ValidationSummary,
	totalTime time.Duration,
	stageResults map[Stage]StageResult,
) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.ProcessingTime = totalTime

	if parsed != nil {
		t.metrics.ParsedRecords = parsed.TotalRecords()
	}

	if normalized != nil {
		t.metrics.NormalizedRecords = normalized.TotalRecords()
	}

	if mapped != nil {
		t.metrics.MappedRelationships = mapped.RelationshipCount()
	}

	if validation != nil {
		t.metrics.ValidationErrors = validation.Failed
	}

	t.metrics.StageMetrics = make(map[string]map[string]any, len(stageResults))
	t.stageResults = make(map[Stage]StageResult, len(stageResults))

	for stage, result := range stageResults {
		t.stageResults[stage] = result
		t.metrics.StageMetrics[string(stage)] = map[string]any{
			"status":            string(result.Status),
			"records_processed": result.RecordsProcessed,
			"records_failed":    result.RecordsFailed,
			"errors":            len(result.Errors),
			"duration_seconds":  result.Duration.Seconds(),
		}

		observeStage(result)
	}
}

// Summary returns a copy of the aggregate metrics.
func (t *MetricsTracker) Summary() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := t.metrics
	summary.StageMetrics = make(map[string]map[string]any, len(t.metrics.StageMetrics))

	for stage, values := range t.metrics.StageMetrics {
		copied := make(map[string]any, len(values))
		for key, value := range values {
			copied[key] = value
		}

		summary.StageMetrics[stage] = copied
	}

	return summary
}

// StageDurations returns each recorded stage's wall-clock duration.
func (t *MetricsTracker) StageDurations() map[Stage]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	durations := make(map[Stage]time.Duration, len(t.stageResults))
	for stage, result := range t.stageResults {
		durations[stage] = result.Duration
	}

	return durations
}

// Process-wide Prometheus collectors for the transformation pipeline.
type pipelineMetrics struct {
	once sync.Once

	stageRecords  *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runsTotal     prometheus.Counter
}

var promMetrics pipelineMetrics

func (m *pipelineMetrics) init() {
	m.once.Do(func() {
		m.stageRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_etl_stage_records_total",
			Help: "Records processed per pipeline stage",
		}, []string{"stage"})
		m.stageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_etl_stage_failures_total",
			Help: "Record failures per pipeline stage",
		}, []string{"stage"})
		m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_etl_stage_duration_seconds",
			Help:    "Wall-clock duration per pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"})
		m.runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_etl_runs_total",
			Help: "Completed pipeline executions",
		})

		prometheus.MustRegister(m.stageRecords, m.stageFailures, m.stageDuration, m.runsTotal)
	})
}

func observeStage(result StageResult) {
	promMetrics.init()

	stage := string(result.Stage)
	promMetrics.stageRecords.WithLabelValues(stage).Add(float64(result.RecordsProcessed))
	promMetrics.stageFailures.WithLabelValues(stage).Add(float64(result.RecordsFailed))
	promMetrics.stageDuration.WithLabelValues(stage).Observe(result.Duration.Seconds())
}

func observeRun() {
	promMetrics.init()
	promMetrics.runsTotal.Inc()
}
