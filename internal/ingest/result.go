// Package ingest coordinates data acquisition from upstream biomedical sources.
package ingest

import (
	"time"

	"github.com/biolink-io/harvester/internal/provenance"
	"github.com/biolink-io/harvester/internal/source"
)

// Phase describes the coordinator's overall progress.
type Phase string

const (
	// PhaseInitializing marks coordination setup.
	PhaseInitializing Phase = "initializing"

	// PhaseIngesting marks workers in flight.
	PhaseIngesting Phase = "ingesting"

	// PhaseProcessing marks post-ingestion processing.
	PhaseProcessing Phase = "processing"

	// PhaseCompleted marks a finished coordination run.
	PhaseCompleted Phase = "completed"

	// PhaseFailed marks a coordination run that failed before workers finished.
	PhaseFailed Phase = "failed"
)

// IngestionResult is one worker's outcome.
type IngestionResult struct {
	Source           string
	Status           Status
	RecordsProcessed int
	RecordsFailed    int

	// Data carries the raw records acquired by the worker, feeding the ETL
	// input bundle.
	Data []source.RawRecord

	Provenance provenance.Provenance
	Errors     []IngestionError
	Metrics    JobMetrics
	Duration   time.Duration
	Timestamp  time.Time
}

// CoordinatorResult aggregates the outcome of one coordination run.
type CoordinatorResult struct {
	TotalSources     int
	CompletedSources int
	FailedSources    int
	TotalRecords     int
	TotalErrors      int

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// SourceResults maps source name to its worker's result.
	SourceResults map[string]IngestionResult

	Phase Phase
}

// SourceSummary condenses one worker's outcome for reporting.
type SourceSummary struct {
	Status           Status  `json:"status"`
	RecordsProcessed int     `json:"records_processed"`
	RecordsFailed    int     `json:"records_failed"`
	ErrorsCount      int     `json:"errors_count"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// Summary condenses a coordination run for reporting.
type Summary struct {
	TotalSources     int                      `json:"total_sources"`
	CompletedSources int                      `json:"completed_sources"`
	FailedSources    int                      `json:"failed_sources"`
	SuccessRate      float64                  `json:"success_rate"`
	TotalRecords     int                      `json:"total_records"`
	TotalErrors      int                      `json:"total_errors"`
	DurationSeconds  float64                  `json:"duration_seconds"`
	RecordsPerSecond float64                  `json:"records_per_second"`
	SourceDetails    map[string]SourceSummary `json:"source_details"`
}

// Summarize computes the reporting summary of a coordination run.
// SuccessRate is completedSources/totalSources × 100; RecordsPerSecond is 0
// when the run had no measurable duration.
func Summarize(result CoordinatorResult) Summary {
	successRate := 0.0
	if result.TotalSources > 0 {
		successRate = float64(result.CompletedSources) / float64(result.TotalSources) * 100
	}

	recordsPerSecond := 0.0
	if seconds := result.Duration.Seconds(); seconds > 0 {
		recordsPerSecond = float64(result.TotalRecords) / seconds
	}

	details := make(map[string]SourceSummary, len(result.SourceResults))
	for name, sourceResult := range result.SourceResults {
		details[name] = SourceSummary{
			Status:           sourceResult.Status,
			RecordsProcessed: sourceResult.RecordsProcessed,
			RecordsFailed:    sourceResult.RecordsFailed,
			ErrorsCount:      len(sourceResult.Errors),
			DurationSeconds:  sourceResult.Duration.Seconds(),
		}
	}

	return Summary{
		TotalSources:     result.TotalSources,
		CompletedSources: result.CompletedSources,
		FailedSources:    result.FailedSources,
		SuccessRate:      successRate,
		TotalRecords:     result.TotalRecords,
		TotalErrors:      result.TotalErrors,
		DurationSeconds:  result.Duration.Seconds(),
		RecordsPerSecond: recordsPerSecond,
		SourceDetails:    details,
	}
}
