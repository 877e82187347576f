// Package ingest coordinates data acquisition from upstream biomedical sources.
//
// This file defines the JobStore interface which represents what the domain
// needs for job persistence. Concrete implementations (PostgreSQL, in-memory)
// live in the internal/storage package; the domain depends only on the
// contract.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobFailure pairs a failed job with its primary error for reporting.
type JobFailure struct {
	Job   Job
	Error IngestionError
}

// JobStatistics aggregates job counts and rates, optionally scoped to one source.
type JobStatistics struct {
	TotalJobs      int
	ByStatus       map[Status]int
	ByTrigger      map[Trigger]int
	TotalRecords   int
	TotalErrors    int
	AverageSeconds float64
}

// JobStore persists ingestion job aggregates.
//
// Persistence of a mutated job is a full record replacement, not a
// field-by-field merge: mutations create new immutable Job values, and the
// mutating operations (UpdateStatus, StartJob, FailJob, ...) apply them as a
// read-modify-write under a write lock. Save replaces the whole record.
// Queries returning lists are ordered by TriggeredAt descending.
type JobStore interface {
	// Save persists a job, replacing any existing record with the same id.
	Save(ctx context.Context, job Job) (Job, error)

	// FindByID returns the job, or (zero, false, nil) when absent.
	FindByID(ctx context.Context, jobID uuid.UUID) (Job, bool, error)

	// FindBySource pages through a source's jobs.
	FindBySource(ctx context.Context, sourceID uuid.UUID, skip, limit int) ([]Job, error)

	// FindByStatus pages through jobs with the given status.
	FindByStatus(ctx context.Context, status Status, skip, limit int) ([]Job, error)

	// FindByTrigger pages through jobs with the given trigger.
	FindByTrigger(ctx context.Context, trigger Trigger, skip, limit int) ([]Job, error)

	// FindRecentJobs returns jobs triggered within the last hoursBack hours.
	FindRecentJobs(ctx context.Context, hoursBack int, skip, limit int) ([]Job, error)

	// FindFailedJobs returns failed jobs, optionally only those completed
	// after since.
	FindFailedJobs(ctx context.Context, since *time.Time, skip, limit int) ([]Job, error)

	// FindRunningJobs returns jobs currently executing.
	FindRunningJobs(ctx context.Context, skip, limit int) ([]Job, error)

	// UpdateStatus transitions a job's status after validating the
	// transition. Returns the updated job, or (zero, false, nil) when absent.
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status Status) (Job, bool, error)

	// UpdateMetrics replaces a job's metrics.
	UpdateMetrics(ctx context.Context, jobID uuid.UUID, metrics JobMetrics) (Job, bool, error)

	// AddError appends an error to a job without advancing its status.
	AddError(ctx context.Context, jobID uuid.UUID, ingestionError IngestionError) (Job, bool, error)

	// StartJob marks a job RUNNING.
	StartJob(ctx context.Context, jobID uuid.UUID) (Job, bool, error)

	// CompleteJob marks a job COMPLETED with final metrics.
	CompleteJob(ctx context.Context, jobID uuid.UUID, metrics JobMetrics) (Job, bool, error)

	// FailJob marks a job FAILED with the given error.
	FailJob(ctx context.Context, jobID uuid.UUID, ingestionError IngestionError) (Job, bool, error)

	// CancelJob marks a job CANCELLED.
	CancelJob(ctx context.Context, jobID uuid.UUID) (Job, bool, error)

	// DeleteOldJobs removes jobs triggered more than days ago, returning the
	// number removed.
	DeleteOldJobs(ctx context.Context, days int) (int, error)

	// CountByStatus counts jobs with the given status.
	CountByStatus(ctx context.Context, status Status) (int, error)

	// CountBySource counts jobs for the given source.
	CountBySource(ctx context.Context, sourceID uuid.UUID) (int, error)

	// CountByTrigger counts jobs with the given trigger.
	CountByTrigger(ctx context.Context, trigger Trigger) (int, error)

	// Exists reports whether a job with the id is stored.
	Exists(ctx context.Context, jobID uuid.UUID) (bool, error)

	// GetJobStatistics aggregates stored jobs, optionally scoped to a source.
	GetJobStatistics(ctx context.Context, sourceID *uuid.UUID) (JobStatistics, error)

	// GetRecentFailures returns the most recent failed jobs paired with
	// their primary error.
	GetRecentFailures(ctx context.Context, limit int) ([]JobFailure, error)
}
