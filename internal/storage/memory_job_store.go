// Package storage provides ingestion job store implementations.
//
// Two implementations back the ingest.JobStore contract: a thread-safe
// in-memory store for tests and single-process runs, and a PostgreSQL store
// for durable deployments. Both apply mutations as full record replacements
// of immutable job values.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/biolink-io/harvester/internal/ingest"
)

// InMemoryJobStore provides thread-safe in-memory storage for ingestion jobs.
type InMemoryJobStore struct {
	// jobs maps job ids to stored job values.
	jobs map[uuid.UUID]ingest.Job

	// mutex protects concurrent access; mutations are read-modify-write
	// under the write lock.
	mutex sync.RWMutex
}

// NewInMemoryJobStore creates a new thread-safe in-memory job store.
func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{jobs: make(map[uuid.UUID]ingest.Job)}
}

// Save persists a job, replacing any existing record with the same id.
func (s *InMemoryJobStore) Save(_ context.Context, job ingest.Job) (ingest.Job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.jobs[job.ID] = job

	return job, nil
}

// FindByID retrieves a job by id.
func (s *InMemoryJobStore) FindByID(_ context.Context, jobID uuid.UUID) (ingest.Job, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, ok := s.jobs[jobID]

	return job, ok, nil
}

// FindBySource pages through a source's jobs, newest first.
func (s *InMemoryJobStore) FindBySource(_ context.Context, sourceID uuid.UUID, skip, limit int) ([]ingest.Job, error) {
	return s.filter(skip, limit, func(job ingest.Job) bool {
		return job.SourceID == sourceID
	}), nil
}

// FindByStatus pages through jobs with the given status, newest first.
func (s *InMemoryJobStore) FindByStatus(_ context.Context, status ingest.Status, skip, limit int) ([]ingest.Job, error) {
	return s.filter(skip, limit, func(job ingest.Job) bool {
		return job.Status == status
	}), nil
}

// FindByTrigger pages through jobs with the given trigger, newest first.
func (s *InMemoryJobStore) FindByTrigger(_ context.Context, trigger ingest.Trigger, skip, limit int) ([]ingest.Job, error) {
	return s.filter(skip, limit, func(job ingest.Job) bool {
		return job.Trigger == trigger
	}), nil
}

// FindRecentJobs returns jobs triggered within the last hoursBack hours.
func (s *InMemoryJobStore) FindRecentJobs(_ context.Context, hoursBack, skip, limit int) ([]ingest.Job, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	return s.filter(skip, limit, func(job ingest.Job) bool {
		return job.TriggeredAt.After(cutoff)
	}), nil
}

// FindFailedJobs returns failed jobs, optionally completed after since.
func (s *InMemoryJobStore) FindFailedJobs(_ context.Context, since *time.Time, skip, limit int) ([]ingest.Job, error) {
	return s.filter(skip, limit, func(job ingest.Job) bool {
		if job.Status != ingest.StatusFailed {
			return false
		}

		if since == nil {
			return true
		}

		return job.CompletedAt != nil && job.CompletedAt.After(*since)
	}), nil
}

// FindRunningJobs returns jobs currently executing.
func (s *InMemoryJobStore) FindRunningJobs(_ context.Context, skip, limit int) ([]ingest.Job, error) {
	return s.filter(skip, limit, func(job ingest.Job) bool {
		return job.Status == ingest.StatusRunning
	}), nil
}

// UpdateStatus transitions a job's status after validating the transition.
func (s *InMemoryJobStore) UpdateStatus(_ context.Context, jobID uuid.UUID, status ingest.Status) (ingest.Job, bool, error) {
	return s.mutate(jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, status); err != nil {
			return ingest.Job{}, err
		}

		updated := job
		updated.Status = status

		return updated, nil
	})
}

// UpdateMetrics replaces a job's metrics.
func (s *InMemoryJobStore) UpdateMetrics(_ context.Context, jobID uuid.UUID, metrics ingest.JobMetrics) (ingest.Job, bool, error) {
	return s.mutate(jobID, func(job ingest.Job) (ingest.Job, error) {
		return job.UpdateMetrics(metrics), nil
	})
}

// AddError appends an error to a job without advancing its status.
func (s *InMemoryJobStore) AddError(_ context.Context, jobID uuid.UUID, ingestionError ingest.IngestionError) (ingest.Job, bool, error) {
	return s.mutate(jobID, func(job ingest.Job) (ingest.Job, error) {
		return job.AddError(ingestionError), nil
	})
}

// StartJob marks a job RUNNING.
func (s *InMemoryJobStore) StartJob(_ context.Context, jobID uuid.UUID) (ingest.Job, bool, error) {
	return s.mutate(jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusRunning); err != nil {
			return ingest.Job{}, err
		}

		return job.StartExecution(), nil
	})
}

// CompleteJob marks a job COMPLETED with final metrics.
func (s *InMemoryJobStore) CompleteJob(_ context.Context, jobID uuid.UUID, metrics ingest.JobMetrics) (ingest.Job, bool, error) {
	return s.mutate(jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusCompleted); err != nil {
			return ingest.Job{}, err
		}

		return job.CompleteSuccessfully(metrics), nil
	})
}

// FailJob marks a job FAILED with the given error.
func (s *InMemoryJobStore) FailJob(_ context.Context, jobID uuid.UUID, ingestionError ingest.IngestionError) (ingest.Job, bool, error) {
	return s.mutate(jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusFailed); err != nil {
			return ingest.Job{}, err
		}

		return job.Fail(ingestionError), nil
	})
}

// CancelJob marks a job CANCELLED.
func (s *InMemoryJobStore) CancelJob(_ context.Context, jobID uuid.UUID) (ingest.Job, bool, error) {
	return s.mutate(jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusCancelled); err != nil {
			return ingest.Job{}, err
		}

		return job.Cancel(), nil
	})
}

// DeleteOldJobs removes jobs triggered more than days ago.
func (s *InMemoryJobStore) DeleteOldJobs(_ context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	deleted := 0

	for id, job := range s.jobs {
		if job.TriggeredAt.Before(cutoff) {
			delete(s.jobs, id)

			deleted++
		}
	}

	return deleted, nil
}

// CountByStatus counts jobs with the given status.
func (s *InMemoryJobStore) CountByStatus(_ context.Context, status ingest.Status) (int, error) {
	return s.count(func(job ingest.Job) bool { return job.Status == status }), nil
}

// CountBySource counts jobs for the given source.
func (s *InMemoryJobStore) CountBySource(_ context.Context, sourceID uuid.UUID) (int, error) {
	return s.count(func(job ingest.Job) bool { return job.SourceID == sourceID }), nil
}

// CountByTrigger counts jobs with the given trigger.
func (s *InMemoryJobStore) CountByTrigger(_ context.Context, trigger ingest.Trigger) (int, error) {
	return s.count(func(job ingest.Job) bool { return job.Trigger == trigger }), nil
}

// Exists reports whether a job with the id is stored.
func (s *InMemoryJobStore) Exists(_ context.Context, jobID uuid.UUID) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.jobs[jobID]

	return ok, nil
}

// GetJobStatistics aggregates stored jobs, optionally scoped to one source.
func (s *InMemoryJobStore) GetJobStatistics(_ context.Context, sourceID *uuid.UUID) (ingest.JobStatistics, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := ingest.JobStatistics{
		ByStatus:  make(map[ingest.Status]int),
		ByTrigger: make(map[ingest.Trigger]int),
	}

	totalSeconds := 0.0
	durationsSeen := 0

	for _, job := range s.jobs {
		if sourceID != nil && job.SourceID != *sourceID {
			continue
		}

		stats.TotalJobs++
		stats.ByStatus[job.Status]++
		stats.ByTrigger[job.Trigger]++
		stats.TotalRecords += job.Metrics.TotalRecords()
		stats.TotalErrors += len(job.Errors)

		if duration, ok := job.Duration(); ok {
			totalSeconds += duration.Seconds()
			durationsSeen++
		}
	}

	if durationsSeen > 0 {
		stats.AverageSeconds = totalSeconds / float64(durationsSeen)
	}

	return stats, nil
}

// GetRecentFailures returns the most recent failed jobs paired with their
// primary error.
func (s *InMemoryJobStore) GetRecentFailures(_ context.Context, limit int) ([]ingest.JobFailure, error) {
	failed := s.filter(0, limit, func(job ingest.Job) bool {
		return job.Status == ingest.StatusFailed
	})

	failures := make([]ingest.JobFailure, 0, len(failed))
	for _, job := range failed {
		failures = append(failures, ingest.JobFailure{Job: job, Error: job.PrimaryError()})
	}

	return failures, nil
}

// filter collects matching jobs ordered by TriggeredAt descending with
// skip/limit pagination. A limit <= 0 means no limit.
func (s *InMemoryJobStore) filter(skip, limit int, match func(ingest.Job) bool) []ingest.Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var matched []ingest.Job

	for _, job := range s.jobs {
		if match(job) {
			matched = append(matched, job)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TriggeredAt.After(matched[j].TriggeredAt)
	})

	if skip >= len(matched) {
		return nil
	}

	matched = matched[skip:]

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched
}

func (s *InMemoryJobStore) count(match func(ingest.Job) bool) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := 0

	for _, job := range s.jobs {
		if match(job) {
			total++
		}
	}

	return total
}

// mutate applies a read-modify-write under the write lock. Absent jobs
// return (zero, false, nil); transition failures surface as errors with the
// stored job left untouched.
func (s *InMemoryJobStore) mutate(jobID uuid.UUID, apply func(ingest.Job) (ingest.Job, error)) (ingest.Job, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ingest.Job{}, false, nil
	}

	updated, err := apply(job)
	if err != nil {
		return ingest.Job{}, false, err
	}

	s.jobs[jobID] = updated

	return updated, true, nil
}
