// Package ingest coordinates data acquisition from upstream biomedical sources.
//
// The package owns the ingestion job aggregate (an immutable value whose
// mutations produce new instances), the per-source worker contract, and the
// bounded-concurrency coordinator that drives a batch of workers to
// completion.
package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/biolink-io/harvester/internal/provenance"
)

type (
	// Status is the lifecycle state of an ingestion job.
	Status string

	// Trigger records what started an ingestion job.
	Trigger string

	// ErrorType categorizes ingestion errors by behavior.
	ErrorType string
)

const (
	// StatusPending marks a job created but not started.
	StatusPending Status = "pending"

	// StatusRunning marks a job currently executing.
	StatusRunning Status = "running"

	// StatusCompleted marks a job that finished successfully.
	// Terminal state.
	StatusCompleted Status = "completed"

	// StatusFailed marks a job that failed with an error.
	// Terminal state.
	StatusFailed Status = "failed"

	// StatusCancelled marks a job cancelled before completion.
	// Terminal state.
	StatusCancelled Status = "cancelled"

	// StatusPartial marks a job that finished with some record failures.
	// Terminal state.
	StatusPartial Status = "partial"
)

const (
	// TriggerManual marks user-triggered jobs.
	TriggerManual Trigger = "manual"

	// TriggerScheduled marks scheduler-triggered jobs.
	TriggerScheduled Trigger = "scheduled"

	// TriggerAPI marks API-triggered jobs.
	TriggerAPI Trigger = "api"

	// TriggerWebhook marks webhook-triggered jobs.
	TriggerWebhook Trigger = "webhook"

	// TriggerRetry marks retries of failed jobs.
	TriggerRetry Trigger = "retry"
)

// Error types recorded on job errors. IsRecoverable treats timeout,
// rate_limit, temporary_failure, network_error and service_unavailable as
// recoverable; the rest are not.
const (
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeTemporaryFailure   ErrorType = "temporary_failure"
	ErrorTypeNetworkError       ErrorType = "network_error"
	ErrorTypeServiceUnavailable ErrorType = "service_unavailable"
	ErrorTypeParseError         ErrorType = "parse_error"
	ErrorTypeValidationError    ErrorType = "validation_error"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// ValidStatuses returns all job statuses.
func ValidStatuses() []Status {
	return []Status{
		StatusPending,
		StatusRunning,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		StatusPartial,
	}
}

// IsValid checks if the Status is a recognized job status.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}

	return false
}

// IsTerminal returns true for absorbing states. Once a job reaches a
// terminal state no further transitions are allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusPartial:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsRecoverable reports whether errors of this type may succeed on retry.
func (t ErrorType) IsRecoverable() bool {
	switch t {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeTemporaryFailure,
		ErrorTypeNetworkError, ErrorTypeServiceUnavailable:
		return true
	default:
		return false
	}
}

// JobMetrics carries performance and result counters for an ingestion job.
type JobMetrics struct {
	RecordsProcessed int
	RecordsFailed    int
	RecordsSkipped   int
	BytesProcessed   int64
	APICallsMade     int

	// DurationSeconds is set when the job completes.
	DurationSeconds *float64

	// RecordsPerSecond is derived from DurationSeconds; nil until computed.
	RecordsPerSecond *float64
}

// TotalRecords returns the number of records handled.
func (m JobMetrics) TotalRecords() int {
	return m.RecordsProcessed + m.RecordsFailed + m.RecordsSkipped
}

// SuccessRate returns processed/total in [0,1], or 0 when nothing was handled.
func (m JobMetrics) SuccessRate() float64 {
	total := m.TotalRecords()
	if total == 0 {
		return 0
	}

	return float64(m.RecordsProcessed) / float64(total)
}

// WithRate returns a copy with RecordsPerSecond derived from DurationSeconds.
// The rate stays unset until a positive duration is available.
func (m JobMetrics) WithRate() JobMetrics {
	derived := m

	if m.DurationSeconds != nil && *m.DurationSeconds > 0 {
		rate := float64(m.TotalRecords()) / *m.DurationSeconds
		derived.RecordsPerSecond = &rate
	}

	return derived
}

// IngestionError records one failure during an ingestion run.
// Errors are appended to jobs and never mutated.
type IngestionError struct {
	Type      ErrorType
	Message   string
	Details   map[string]any
	RecordID  string
	Timestamp time.Time
}

// NewIngestionError creates an error stamped with the current time.
func NewIngestionError(errorType ErrorType, message string) IngestionError {
	return IngestionError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// IsRecoverable reports whether the error may succeed on retry.
func (e IngestionError) IsRecoverable() bool {
	return e.Type.IsRecoverable()
}

// Job is the immutable ingestion job aggregate.
//
// All mutating methods return a new value; the receiver is never modified.
// Retries do not mutate a job either: they create a new job referencing the
// previous one via Metadata.
type Job struct {
	// Identity
	ID       uuid.UUID
	SourceID uuid.UUID

	// Execution details
	Trigger     Trigger
	TriggeredBy *uuid.UUID
	TriggeredAt time.Time

	// Status and progress
	Status      Status
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Results
	Metrics JobMetrics
	Errors  []IngestionError

	// Provenance and metadata
	Provenance provenance.Provenance
	Metadata   map[string]any

	// SourceConfigSnapshot is the source configuration at job time.
	SourceConfigSnapshot map[string]any
}

// NewJob creates a PENDING job triggered now.
func NewJob(sourceID uuid.UUID, trigger Trigger, prov provenance.Provenance) Job {
	return Job{
		ID:          uuid.New(),
		SourceID:    sourceID,
		Trigger:     trigger,
		TriggeredAt: time.Now().UTC(),
		Status:      StatusPending,
		Provenance:  prov,
	}
}

// StartExecution returns a RUNNING copy with StartedAt set.
func (j Job) StartExecution() Job {
	now := time.Now().UTC()

	derived := j.clone()
	derived.Status = StatusRunning
	derived.StartedAt = &now

	return derived
}

// CompleteSuccessfully returns a COMPLETED copy with final metrics and the
// processing rate recomputed.
func (j Job) CompleteSuccessfully(metrics JobMetrics) Job {
	now := time.Now().UTC()

	derived := j.clone()
	derived.Status = StatusCompleted
	derived.CompletedAt = &now
	derived.Metrics = metrics.WithRate()

	return derived
}

// Fail returns a FAILED copy with the error appended and CompletedAt set.
func (j Job) Fail(ingestionError IngestionError) Job {
	now := time.Now().UTC()

	derived := j.clone()
	derived.Status = StatusFailed
	derived.CompletedAt = &now
	derived.Errors = append(derived.Errors, ingestionError)

	return derived
}

// CompletePartially returns a PARTIAL copy: the run finished but some records
// failed.
func (j Job) CompletePartially(metrics JobMetrics) Job {
	now := time.Now().UTC()

	derived := j.clone()
	derived.Status = StatusPartial
	derived.CompletedAt = &now
	derived.Metrics = metrics.WithRate()

	return derived
}

// Cancel returns a CANCELLED copy with CompletedAt set.
func (j Job) Cancel() Job {
	now := time.Now().UTC()

	derived := j.clone()
	derived.Status = StatusCancelled
	derived.CompletedAt = &now

	return derived
}

// AddError returns a copy with the error appended. The status never advances.
func (j Job) AddError(ingestionError IngestionError) Job {
	derived := j.clone()
	derived.Errors = append(derived.Errors, ingestionError)

	return derived
}

// UpdateMetrics returns a copy with metrics replaced and the rate recomputed.
func (j Job) UpdateMetrics(metrics JobMetrics) Job {
	derived := j.clone()
	derived.Metrics = metrics.WithRate()

	return derived
}

// IsRunning reports whether the job is currently executing.
func (j Job) IsRunning() bool {
	return j.Status == StatusRunning
}

// IsFinished reports whether the job has reached a terminal state.
func (j Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// Duration returns CompletedAt − StartedAt when both are set.
func (j Job) Duration() (time.Duration, bool) {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0, false
	}

	return j.CompletedAt.Sub(*j.StartedAt), true
}

// HasErrors reports whether the job recorded any errors.
func (j Job) HasErrors() bool {
	return len(j.Errors) > 0
}

// SuccessRate returns the metrics success rate.
func (j Job) SuccessRate() float64 {
	return j.Metrics.SuccessRate()
}

// CanRetry reports whether the job may be retried: failed or partial with at
// least one recoverable error.
func (j Job) CanRetry() bool {
	if j.Status != StatusFailed && j.Status != StatusPartial {
		return false
	}

	for _, ingestionError := range j.Errors {
		if ingestionError.IsRecoverable() {
			return true
		}
	}

	return false
}

// PrimaryError returns the last appended error, or a synthetic unknown error
// when none was recorded.
func (j Job) PrimaryError() IngestionError {
	if len(j.Errors) == 0 {
		return IngestionError{Type: ErrorTypeUnknown, Message: "No error recorded"}
	}

	return j.Errors[len(j.Errors)-1]
}

// clone deep-copies the slices and maps so derived jobs never alias the
// original's backing storage.
func (j Job) clone() Job {
	derived := j

	if j.Errors != nil {
		derived.Errors = make([]IngestionError, len(j.Errors))
		copy(derived.Errors, j.Errors)
	}

	if j.Metadata != nil {
		derived.Metadata = make(map[string]any, len(j.Metadata))
		for key, value := range j.Metadata {
			derived.Metadata[key] = value
		}
	}

	if j.SourceConfigSnapshot != nil {
		derived.SourceConfigSnapshot = make(map[string]any, len(j.SourceConfigSnapshot))
		for key, value := range j.SourceConfigSnapshot {
			derived.SourceConfigSnapshot[key] = value
		}
	}

	if j.TriggeredBy != nil {
		id := *j.TriggeredBy
		derived.TriggeredBy = &id
	}

	if j.StartedAt != nil {
		startedAt := *j.StartedAt
		derived.StartedAt = &startedAt
	}

	if j.CompletedAt != nil {
		completedAt := *j.CompletedAt
		derived.CompletedAt = &completedAt
	}

	if j.Metrics.DurationSeconds != nil {
		duration := *j.Metrics.DurationSeconds
		derived.Metrics.DurationSeconds = &duration
	}

	if j.Metrics.RecordsPerSecond != nil {
		rate := *j.Metrics.RecordsPerSecond
		derived.Metrics.RecordsPerSecond = &rate
	}

	return derived
}
