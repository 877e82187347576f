// Package storage provides ingestion job store implementations.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/biolink-io/harvester/internal/ingest"
	"github.com/biolink-io/harvester/internal/provenance"
)

// jobsSchema is the DDL applied at store construction. Schema migration
// tooling is an external collaborator; the store only guarantees its own
// table exists.
const jobsSchema = `
CREATE TABLE IF NOT EXISTS ingestion_jobs (
    id            UUID PRIMARY KEY,
    source_id     UUID        NOT NULL,
    trigger_type  TEXT        NOT NULL,
    triggered_by  UUID,
    triggered_at  TIMESTAMPTZ NOT NULL,
    status        TEXT        NOT NULL,
    started_at    TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ,
    payload       JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_source_id    ON ingestion_jobs (source_id, triggered_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status       ON ingestion_jobs (status, triggered_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_trigger      ON ingestion_jobs (trigger_type, triggered_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_triggered_at ON ingestion_jobs (triggered_at DESC);
`

const jobColumns = "id, source_id, trigger_type, triggered_by, triggered_at, status, started_at, completed_at, payload"

// ErrNilDB is returned when the store is constructed without a connection.
var ErrNilDB = errors.New("database connection cannot be nil")

// PostgresJobStore persists ingestion jobs in PostgreSQL.
//
// Mutations follow read-modify-write inside a transaction with a row-level
// lock (SELECT ... FOR UPDATE); persistence of a mutated job is a full record
// replacement, not a field-by-field merge.
type PostgresJobStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresJobStore creates a job store over an open connection and ensures
// the jobs table exists.
func NewPostgresJobStore(ctx context.Context, db *sql.DB, logger *slog.Logger) (*PostgresJobStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.ExecContext(ctx, jobsSchema); err != nil {
		return nil, fmt.Errorf("ensure ingestion_jobs schema: %w", err)
	}

	logger.Debug("ingestion_jobs schema ensured")

	return &PostgresJobStore{db: db, logger: logger}, nil
}

// Open connects using the supplied configuration and returns a ready store.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*PostgresJobStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewPostgresJobStore(ctx, db, logger)
}

// jobPayload is the JSONB document carrying the job fields that have no
// dedicated column.
type jobPayload struct {
	Metrics              metricsDoc       `json:"metrics"`
	Errors               []errorDoc       `json:"errors,omitempty"`
	Provenance           provenanceDoc    `json:"provenance"`
	Metadata             map[string]any   `json:"metadata,omitempty"`
	SourceConfigSnapshot map[string]any   `json:"source_config_snapshot,omitempty"`
}

type metricsDoc struct {
	RecordsProcessed int      `json:"records_processed"`
	RecordsFailed    int      `json:"records_failed"`
	RecordsSkipped   int      `json:"records_skipped"`
	BytesProcessed   int64    `json:"bytes_processed"`
	APICallsMade     int      `json:"api_calls_made"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
	RecordsPerSecond *float64 `json:"records_per_second,omitempty"`
}

type errorDoc struct {
	Type      string         `json:"error_type"`
	Message   string         `json:"error_message"`
	Details   map[string]any `json:"error_details,omitempty"`
	RecordID  string         `json:"record_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type provenanceDoc struct {
	Source           string         `json:"source"`
	SourceVersion    string         `json:"source_version,omitempty"`
	SourceURL        string         `json:"source_url,omitempty"`
	AcquiredAt       time.Time      `json:"acquired_at"`
	AcquiredBy       string         `json:"acquired_by"`
	ProcessingSteps  []string       `json:"processing_steps,omitempty"`
	QualityScore     *float64       `json:"quality_score,omitempty"`
	ValidationStatus string         `json:"validation_status"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Save persists a job, replacing any existing record with the same id.
func (s *PostgresJobStore) Save(ctx context.Context, job ingest.Job) (ingest.Job, error) {
	payload, err := marshalPayload(job)
	if err != nil {
		return ingest.Job{}, err
	}

	const query = `
		INSERT INTO ingestion_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			source_id    = EXCLUDED.source_id,
			trigger_type = EXCLUDED.trigger_type,
			triggered_by = EXCLUDED.triggered_by,
			triggered_at = EXCLUDED.triggered_at,
			status       = EXCLUDED.status,
			started_at   = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			payload      = EXCLUDED.payload`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.SourceID,
		string(job.Trigger),
		nullableUUID(job.TriggeredBy),
		job.TriggeredAt,
		string(job.Status),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		payload,
	)
	if err != nil {
		return ingest.Job{}, fmt.Errorf("save job %s: %w", job.ID, err)
	}

	return job, nil
}

// FindByID retrieves a job by id.
func (s *PostgresJobStore) FindByID(ctx context.Context, jobID uuid.UUID) (ingest.Job, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE id = $1", jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ingest.Job{}, false, nil
	}

	if err != nil {
		return ingest.Job{}, false, fmt.Errorf("find job %s: %w", jobID, err)
	}

	return job, true, nil
}

// FindBySource pages through a source's jobs, newest first.
func (s *PostgresJobStore) FindBySource(ctx context.Context, sourceID uuid.UUID, skip, limit int) ([]ingest.Job, error) {
	return s.query(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE source_id = $1 ORDER BY triggered_at DESC OFFSET $2 LIMIT $3",
		sourceID, skip, normalizeLimit(limit))
}

// FindByStatus pages through jobs with the given status, newest first.
func (s *PostgresJobStore) FindByStatus(ctx context.Context, status ingest.Status, skip, limit int) ([]ingest.Job, error) {
	return s.query(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE status = $1 ORDER BY triggered_at DESC OFFSET $2 LIMIT $3",
		string(status), skip, normalizeLimit(limit))
}

// FindByTrigger pages through jobs with the given trigger, newest first.
func (s *PostgresJobStore) FindByTrigger(ctx context.Context, trigger ingest.Trigger, skip, limit int) ([]ingest.Job, error) {
	return s.query(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE trigger_type = $1 ORDER BY triggered_at DESC OFFSET $2 LIMIT $3",
		string(trigger), skip, normalizeLimit(limit))
}

// FindRecentJobs returns jobs triggered within the last hoursBack hours.
func (s *PostgresJobStore) FindRecentJobs(ctx context.Context, hoursBack, skip, limit int) ([]ingest.Job, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	return s.query(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE triggered_at > $1 ORDER BY triggered_at DESC OFFSET $2 LIMIT $3",
		cutoff, skip, normalizeLimit(limit))
}

// FindFailedJobs returns failed jobs, optionally completed after since.
func (s *PostgresJobStore) FindFailedJobs(ctx context.Context, since *time.Time, skip, limit int) ([]ingest.Job, error) {
	if since != nil {
		return s.query(ctx,
			"SELECT "+jobColumns+" FROM ingestion_jobs WHERE status = $1 AND completed_at > $2 ORDER BY triggered_at DESC OFFSET $3 LIMIT $4",
			string(ingest.StatusFailed), *since, skip, normalizeLimit(limit))
	}

	return s.FindByStatus(ctx, ingest.StatusFailed, skip, limit)
}

// FindRunningJobs returns jobs currently executing.
func (s *PostgresJobStore) FindRunningJobs(ctx context.Context, skip, limit int) ([]ingest.Job, error) {
	return s.FindByStatus(ctx, ingest.StatusRunning, skip, limit)
}

// UpdateStatus transitions a job's status after validating the transition.
func (s *PostgresJobStore) UpdateStatus(ctx context.Context, jobID uuid.UUID, status ingest.Status) (ingest.Job, bool, error) {
	return s.mutate(ctx, jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, status); err != nil {
			return ingest.Job{}, err
		}

		updated := job
		updated.Status = status

		return updated, nil
	})
}

// UpdateMetrics replaces a job's metrics.
func (s *PostgresJobStore) UpdateMetrics(ctx context.Context, jobID uuid.UUID, metrics ingest.JobMetrics) (ingest.Job, bool, error) {
	return s.mutate(ctx, jobID, func(job ingest.Job) (ingest.Job, error) {
		return job.UpdateMetrics(metrics), nil
	})
}

// AddError appends an error to a job without advancing its status.
func (s *PostgresJobStore) AddError(ctx context.Context, jobID uuid.UUID, ingestionError ingest.IngestionError) (ingest.Job, bool, error) {
	return s.mutate(ctx, jobID, func(job ingest.Job) (ingest.Job, error) {
		return job.AddError(ingestionError), nil
	})
}

// StartJob marks a job RUNNING.
func (s *PostgresJobStore) StartJob(ctx context.Context, jobID uuid.UUID) (ingest.Job, bool, error) {
	return s.mutate(ctx, jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusRunning); err != nil {
			return ingest.Job{}, err
		}

		return job.StartExecution(), nil
	})
}

// CompleteJob marks a job COMPLETED with final metrics.
func (s *PostgresJobStore) CompleteJob(ctx context.Context, jobID uuid.UUID, metrics ingest.JobMetrics) (ingest.Job, bool, error) {
	return s.mutate(ctx, jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusCompleted); err != nil {
			return ingest.Job{}, err
		}

		return job.CompleteSuccessfully(metrics), nil
	})
}

// FailJob marks a job FAILED with the given error.
func (s *PostgresJobStore) FailJob(ctx context.Context, jobID uuid.UUID, ingestionError ingest.IngestionError) (ingest.Job, bool, error) {
	return s.mutate(ctx, jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusFailed); err != nil {
			return ingest.Job{}, err
		}

		return job.Fail(ingestionError), nil
	})
}

// CancelJob marks a job CANCELLED.
func (s *PostgresJobStore) CancelJob(ctx context.Context, jobID uuid.UUID) (ingest.Job, bool, error) {
	return s.mutate(ctx, jobID, func(job ingest.Job) (ingest.Job, error) {
		if err := ingest.ValidateStatusTransition(job.Status, ingest.StatusCancelled); err != nil {
			return ingest.Job{}, err
		}

		return job.Cancel(), nil
	})
}

// DeleteOldJobs removes jobs triggered more than days ago.
func (s *PostgresJobStore) DeleteOldJobs(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.ExecContext(ctx, "DELETE FROM ingestion_jobs WHERE triggered_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}

	return int(affected), nil
}

// CountByStatus counts jobs with the given status.
func (s *PostgresJobStore) CountByStatus(ctx context.Context, status ingest.Status) (int, error) {
	return s.countWhere(ctx, "status = $1", string(status))
}

// CountBySource counts jobs for the given source.
func (s *PostgresJobStore) CountBySource(ctx context.Context, sourceID uuid.UUID) (int, error) {
	return s.countWhere(ctx, "source_id = $1", sourceID)
}

// CountByTrigger counts jobs with the given trigger.
func (s *PostgresJobStore) CountByTrigger(ctx context.Context, trigger ingest.Trigger) (int, error) {
	return s.countWhere(ctx, "trigger_type = $1", string(trigger))
}

// Exists reports whether a job with the id is stored.
func (s *PostgresJobStore) Exists(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var exists bool

	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM ingestion_jobs WHERE id = $1)", jobID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check job existence: %w", err)
	}

	return exists, nil
}

// GetJobStatistics aggregates stored jobs, optionally scoped to one source.
func (s *PostgresJobStore) GetJobStatistics(ctx context.Context, sourceID *uuid.UUID) (ingest.JobStatistics, error) {
	query := "SELECT " + jobColumns + " FROM ingestion_jobs"

	var (
		rows *sql.Rows
		err  error
	)

	if sourceID != nil {
		rows, err = s.db.QueryContext(ctx, query+" WHERE source_id = $1", *sourceID)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}

	if err != nil {
		return ingest.JobStatistics{}, fmt.Errorf("job statistics: %w", err)
	}
	defer rows.Close()

	stats := ingest.JobStatistics{
		ByStatus:  make(map[ingest.Status]int),
		ByTrigger: make(map[ingest.Trigger]int),
	}

	totalSeconds := 0.0
	durationsSeen := 0

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return ingest.JobStatistics{}, fmt.Errorf("job statistics: %w", err)
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

	if err := rows.Err(); err != nil {
		return ingest.JobStatistics{}, fmt.Errorf("job statistics: %w", err)
	}

	if durationsSeen > 0 {
		stats.AverageSeconds = totalSeconds / float64(durationsSeen)
	}

	return stats, nil
}

// GetRecentFailures returns the most recent failed jobs paired with their
// primary error.
func (s *PostgresJobStore) GetRecentFailures(ctx context.Context, limit int) ([]ingest.JobFailure, error) {
	jobs, err := s.FindByStatus(ctx, ingest.StatusFailed, 0, limit)
	if err != nil {
		return nil, err
	}

	failures := make([]ingest.JobFailure, 0, len(jobs))
	for _, job := range jobs {
		failures = append(failures, ingest.JobFailure{Job: job, Error: job.PrimaryError()})
	}

	return failures, nil
}

// mutate performs read-modify-write inside a transaction with a row lock.
func (s *PostgresJobStore) mutate(
	ctx context.Context,
	jobID uuid.UUID,
	apply func(ingest.Job) (ingest.Job, error),
) (ingest.Job, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ingest.Job{}, false, fmt.Errorf("begin job mutation: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE id = $1 FOR UPDATE", jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ingest.Job{}, false, nil
	}

	if err != nil {
		return ingest.Job{}, false, fmt.Errorf("lock job %s: %w", jobID, err)
	}

	updated, err := apply(job)
	if err != nil {
		return ingest.Job{}, false, err
	}

	payload, err := marshalPayload(updated)
	if err != nil {
		return ingest.Job{}, false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ingestion_jobs SET
			status       = $2,
			started_at   = $3,
			completed_at = $4,
			payload      = $5
		WHERE id = $1`,
		updated.ID,
		string(updated.Status),
		nullableTime(updated.StartedAt),
		nullableTime(updated.CompletedAt),
		payload,
	)
	if err != nil {
		return ingest.Job{}, false, fmt.Errorf("update job %s: %w", jobID, err)
	}

	if err := tx.Commit(); err != nil {
		return ingest.Job{}, false, fmt.Errorf("commit job %s: %w", jobID, err)
	}

	return updated, true, nil
}

func (s *PostgresJobStore) query(ctx context.Context, query string, args ...any) ([]ingest.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ingest.Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

func (s *PostgresJobStore) countWhere(ctx context.Context, where string, arg any) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ingestion_jobs WHERE "+where, arg).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}

	return count, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (ingest.Job, error) {
	var (
		job         ingest.Job
		trigger     string
		status      string
		triggeredBy sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
		payload     []byte
	)

	err := scanner.Scan(
		&job.ID,
		&job.SourceID,
		&trigger,
		&triggeredBy,
		&job.TriggeredAt,
		&status,
		&startedAt,
		&completedAt,
		&payload,
	)
	if err != nil {
		return ingest.Job{}, err
	}

	job.Trigger = ingest.Trigger(trigger)
	job.Status = ingest.Status(status)

	if triggeredBy.Valid {
		id, err := uuid.Parse(triggeredBy.String)
		if err != nil {
			return ingest.Job{}, fmt.Errorf("parse triggered_by: %w", err)
		}

		job.TriggeredBy = &id
	}

	if startedAt.Valid {
		value := startedAt.Time.UTC()
		job.StartedAt = &value
	}

	if completedAt.Valid {
		value := completedAt.Time.UTC()
		job.CompletedAt = &value
	}

	var document jobPayload
	if err := json.Unmarshal(payload, &document); err != nil {
		return ingest.Job{}, fmt.Errorf("decode job payload: %w", err)
	}

	job.Metrics = ingest.JobMetrics{
		RecordsProcessed: document.Metrics.RecordsProcessed,
		RecordsFailed:    document.Metrics.RecordsFailed,
		RecordsSkipped:   document.Metrics.RecordsSkipped,
		BytesProcessed:   document.Metrics.BytesProcessed,
		APICallsMade:     document.Metrics.APICallsMade,
		DurationSeconds:  document.Metrics.DurationSeconds,
		RecordsPerSecond: document.Metrics.RecordsPerSecond,
	}

	for _, doc := range document.Errors {
		job.Errors = append(job.Errors, ingest.IngestionError{
			Type:      ingest.ErrorType(doc.Type),
			Message:   doc.Message,
			Details:   doc.Details,
			RecordID:  doc.RecordID,
			Timestamp: doc.Timestamp,
		})
	}

	job.Provenance = provenance.Provenance{
		Source:           provenance.Source(document.Provenance.Source),
		SourceVersion:    document.Provenance.SourceVersion,
		SourceURL:        document.Provenance.SourceURL,
		AcquiredAt:       document.Provenance.AcquiredAt,
		AcquiredBy:       document.Provenance.AcquiredBy,
		ProcessingSteps:  document.Provenance.ProcessingSteps,
		QualityScore:     document.Provenance.QualityScore,
		ValidationStatus: document.Provenance.ValidationStatus,
		Metadata:         document.Provenance.Metadata,
	}

	job.Metadata = document.Metadata
	job.SourceConfigSnapshot = document.SourceConfigSnapshot

	return job, nil
}

func marshalPayload(job ingest.Job) ([]byte, error) {
	document := jobPayload{
		Metrics: metricsDoc{
			RecordsProcessed: job.Metrics.RecordsProcessed,
			RecordsFailed:    job.Metrics.RecordsFailed,
			RecordsSkipped:   job.Metrics.RecordsSkipped,
			BytesProcessed:   job.Metrics.BytesProcessed,
			APICallsMade:     job.Metrics.APICallsMade,
			DurationSeconds:  job.Metrics.DurationSeconds,
			RecordsPerSecond: job.Metrics.RecordsPerSecond,
		},
		Provenance: provenanceDoc{
			Source:           job.Provenance.Source.String(),
			SourceVersion:    job.Provenance.SourceVersion,
			SourceURL:        job.Provenance.SourceURL,
			AcquiredAt:       job.Provenance.AcquiredAt,
			AcquiredBy:       job.Provenance.AcquiredBy,
			ProcessingSteps:  job.Provenance.ProcessingSteps,
			QualityScore:     job.Provenance.QualityScore,
			ValidationStatus: job.Provenance.ValidationStatus,
			Metadata:         job.Provenance.Metadata,
		},
		Metadata:             job.Metadata,
		SourceConfigSnapshot: job.SourceConfigSnapshot,
	}

	for _, ingestionError := range job.Errors {
		document.Errors = append(document.Errors, errorDoc{
			Type:      string(ingestionError.Type),
			Message:   ingestionError.Message,
			Details:   ingestionError.Details,
			RecordID:  ingestionError.RecordID,
			Timestamp: ingestionError.Timestamp,
		})
	}

	payload, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}

	return payload, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}

	return limit
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}

	return *value
}

func nullableUUID(value *uuid.UUID) any {
	if value == nil {
		return nil
	}

	return *value
}
