package ingest

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/biolink-io/harvester/internal/provenance"
)

func newTestJob() Job {
	return NewJob(uuid.New(), TriggerManual, provenance.New(provenance.SourceClinVar, "test"))
}

func TestNewJobDefaults(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	job := newTestJob()

	if job.Status != StatusPending {
		t.Errorf("Status = %q, want pending", job.Status)
	}

	if job.ID == uuid.Nil {
		t.Error("ID not generated")
	}

	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Error("timestamps should start unset")
	}
}

func TestJobLifecycleTransitions(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	job := newTestJob()

	running := job.StartExecution()
	if running.Status != StatusRunning || running.StartedAt == nil {
		t.Fatalf("StartExecution: status=%q startedAt=%v", running.Status, running.StartedAt)
	}

	metrics := JobMetrics{RecordsProcessed: 90, RecordsFailed: 5, RecordsSkipped: 5}

	completed := running.CompleteSuccessfully(metrics)
	if completed.Status != StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("CompleteSuccessfully: status=%q", completed.Status)
	}

	if !completed.IsFinished() {
		t.Error("completed job should be finished")
	}

	failed := running.Fail(NewIngestionError(ErrorTypeTimeout, "upstream timed out"))
	if failed.Status != StatusFailed || len(failed.Errors) != 1 {
		t.Fatalf("Fail: status=%q errors=%d", failed.Status, len(failed.Errors))
	}

	cancelled := running.Cancel()
	if cancelled.Status != StatusCancelled || cancelled.CompletedAt == nil {
		t.Fatalf("Cancel: status=%q", cancelled.Status)
	}

	partial := running.CompletePartially(metrics)
	if partial.Status != StatusPartial {
		t.Fatalf("CompletePartially: status=%q", partial.Status)
	}
}

func TestJobImmutability(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	original := newTestJob()
	original.Metadata = map[string]any{"key": "value"}

	started := original.StartExecution()
	if original.Status != StatusPending || original.StartedAt != nil {
		t.Error("StartExecution mutated the original")
	}

	withError := started.AddError(NewIngestionError(ErrorTypeNetworkError, "boom"))
	if len(started.Errors) != 0 {
		t.Error("AddError mutated the receiver")
	}

	if withError.Status != started.Status {
		t.Error("AddError must never advance status")
	}

	withError.Metadata["key"] = "changed"

	if original.Metadata["key"] != "value" {
		t.Error("derived job aliases the original's metadata")
	}
}

func TestJobDuration(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	job := newTestJob()

	if _, ok := job.Duration(); ok {
		t.Error("Duration should be unavailable before start/complete")
	}

	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	job.StartedAt = &started
	job.CompletedAt = &completed

	duration, ok := job.Duration()
	if !ok || duration != 90*time.Second {
		t.Errorf("Duration = %v, %v", duration, ok)
	}

	if job.StartedAt.After(*job.CompletedAt) {
		t.Error("started_at must not exceed completed_at")
	}
}

func TestJobCanRetry(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	recoverable := NewIngestionError(ErrorTypeRateLimit, "slow down")
	permanent := NewIngestionError(ErrorTypeValidationError, "bad record")

	tests := []struct {
		name     string
		status   Status
		errors   []IngestionError
		expected bool
	}{
		{"failed with recoverable", StatusFailed, []IngestionError{recoverable}, true},
		{"partial with recoverable", StatusPartial, []IngestionError{permanent, recoverable}, true},
		{"failed without recoverable", StatusFailed, []IngestionError{permanent}, false},
		{"completed with recoverable", StatusCompleted, []IngestionError{recoverable}, false},
		{"running", StatusRunning, []IngestionError{recoverable}, false},
		{"failed without errors", StatusFailed, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newTestJob()
			job.Status = tt.status
			job.Errors = tt.errors

			if job.CanRetry() != tt.expected {
				t.Errorf("CanRetry() = %v, want %v", job.CanRetry(), tt.expected)
			}
		})
	}
}

func TestJobMetricsInvariants(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	metrics := JobMetrics{RecordsProcessed: 80, RecordsFailed: 15, RecordsSkipped: 5}

	if metrics.TotalRecords() != 100 {
		t.Errorf("TotalRecords = %d, want 100", metrics.TotalRecords())
	}

	rate := metrics.SuccessRate()
	if rate != 0.8 {
		t.Errorf("SuccessRate = %v, want 0.8", rate)
	}

	if rate < 0 || rate > 1 {
		t.Error("SuccessRate out of [0,1]")
	}

	empty := JobMetrics{}
	if empty.SuccessRate() != 0 {
		t.Errorf("empty SuccessRate = %v, want 0", empty.SuccessRate())
	}
}

func TestJobMetricsWithRate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	duration := 10.0
	metrics := JobMetrics{RecordsProcessed: 90, RecordsFailed: 10, DurationSeconds: &duration}

	derived := metrics.WithRate()
	if derived.RecordsPerSecond == nil || *derived.RecordsPerSecond != 10 {
		t.Errorf("RecordsPerSecond = %v, want 10", derived.RecordsPerSecond)
	}

	if metrics.RecordsPerSecond != nil {
		t.Error("WithRate mutated the receiver")
	}

	noDuration := JobMetrics{RecordsProcessed: 5}.WithRate()
	if noDuration.RecordsPerSecond != nil {
		t.Error("rate must stay unset without a duration")
	}
}

func TestIngestionErrorRecoverable(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	recoverableTypes := []ErrorType{
		ErrorTypeTimeout,
		ErrorTypeRateLimit,
		ErrorTypeTemporaryFailure,
		ErrorTypeNetworkError,
		ErrorTypeServiceUnavailable,
	}

	for _, errorType := range recoverableTypes {
		if !errorType.IsRecoverable() {
			t.Errorf("%q should be recoverable", errorType)
		}
	}

	for _, errorType := range []ErrorType{ErrorTypeParseError, ErrorTypeValidationError, ErrorTypeUnknown} {
		if errorType.IsRecoverable() {
			t.Errorf("%q should not be recoverable", errorType)
		}
	}
}

func TestJobPrimaryError(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	job := newTestJob()

	synthetic := job.PrimaryError()
	if synthetic.Type != ErrorTypeUnknown || synthetic.Message != "No error recorded" {
		t.Errorf("synthetic error = %+v", synthetic)
	}

	job = job.AddError(NewIngestionError(ErrorTypeTimeout, "first"))
	job = job.AddError(NewIngestionError(ErrorTypeNetworkError, "last"))

	primary := job.PrimaryError()
	if primary.Message != "last" {
		t.Errorf("PrimaryError = %q, want the last appended", primary.Message)
	}
}
