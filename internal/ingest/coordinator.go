// Package ingest coordinates data acquisition from upstream biomedical sources.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/biolink-io/harvester/internal/config"
	"github.com/biolink-io/harvester/internal/provenance"
	"github.com/biolink-io/harvester/internal/source"
)

// defaultMaxConcurrentWorkers bounds parallel worker execution.
const defaultMaxConcurrentWorkers = 4

// Task describes one source ingestion to execute.
type Task struct {
	// Source names the upstream source; it keys the result map.
	Source string

	// Factory produces the worker instance. Acquisition is scoped to the
	// task execution and the worker is released on all exit paths.
	Factory IngestorFactory

	// Parameters are merged over the coordinator-wide parameters.
	Parameters Params

	// Priority orders execution; lower values run first within a
	// concurrency window.
	Priority int
}

// ProgressFunc receives coordination progress as (source, phase, percent).
type ProgressFunc func(sourceName string, phase Phase, percent float64)

// CoordinatorConfig controls coordination behavior.
type CoordinatorConfig struct {
	MaxConcurrentWorkers int
	EnableParallel       bool
	Progress             ProgressFunc
}

// LoadCoordinatorConfig loads coordinator configuration from environment
// variables with fallback to defaults.
func LoadCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxConcurrentWorkers: config.GetEnvInt("HARVESTER_MAX_CONCURRENT_WORKERS", defaultMaxConcurrentWorkers),
		EnableParallel:       config.GetEnvBool("HARVESTER_PARALLEL_INGEST", true),
	}
}

// Coordinator executes a batch of ingestion tasks with bounded concurrency
// and aggregates per-source outcomes.
//
// The results map is owned by the coordinator during a run and guarded by its
// own lock; workers never write it directly, they return values.
type Coordinator struct {
	config    CoordinatorConfig
	logger    *slog.Logger
	publisher EventPublisher

	// store, when attached, persists one job aggregate per task execution.
	store JobStore

	// factories provides the built-in task set for IngestAll/RetryFailed.
	factories map[string]IngestorFactory

	mu      sync.Mutex
	results map[string]IngestionResult
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithEventPublisher attaches a lifecycle event publisher.
func WithEventPublisher(publisher EventPublisher) CoordinatorOption {
	return func(c *Coordinator) {
		c.publisher = publisher
	}
}

// WithJobStore attaches a job store; every task execution then persists a
// job aggregate through its lifecycle.
func WithJobStore(store JobStore) CoordinatorOption {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithFactories registers worker factories for the built-in sources, used by
// IngestAll and RetryFailed to reconstruct tasks.
func WithFactories(factories map[string]IngestorFactory) CoordinatorOption {
	return func(c *Coordinator) {
		for name, factory := range factories {
			c.factories[name] = factory
		}
	}
}

// NewCoordinator creates a coordinator. A nil logger defaults to slog's
// default logger.
func NewCoordinator(cfg CoordinatorConfig, logger *slog.Logger, options ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.MaxConcurrentWorkers < 1 {
		cfg.MaxConcurrentWorkers = defaultMaxConcurrentWorkers
	}

	coordinator := &Coordinator{
		config:    cfg,
		logger:    logger,
		factories: make(map[string]IngestorFactory),
		results:   make(map[string]IngestionResult),
	}

	for _, option := range options {
		option(coordinator)
	}

	return coordinator
}

// Coordinate executes tasks sorted stably by priority ascending, in parallel
// or sequentially per configuration, and aggregates their outcomes.
//
// A worker failure never aborts peers: each task's outcome is independent. If
// coordination itself fails before workers complete, the result carries
// phase FAILED with one error counted.
func (c *Coordinator) Coordinate(ctx context.Context, tasks []Task, globalParams Params) CoordinatorResult {
	startTime := time.Now().UTC()

	c.notify("all", PhaseInitializing, 0)

	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	var (
		results []IngestionResult
		runErr  error
	)

	if c.config.EnableParallel {
		results, runErr = c.executeParallel(ctx, sorted, globalParams)
	} else {
		results, runErr = c.executeSequential(ctx, sorted, globalParams)
	}

	if runErr != nil {
		c.logger.Error("ingestion coordination failed", "error", runErr)

		endTime := time.Now().UTC()

		return CoordinatorResult{
			TotalSources:  len(tasks),
			FailedSources: len(tasks),
			TotalErrors:   1,
			StartTime:     startTime,
			EndTime:       endTime,
			Duration:      endTime.Sub(startTime),
			SourceResults: map[string]IngestionResult{},
			Phase:         PhaseFailed,
		}
	}

	result := c.aggregate(results, startTime)
	c.notify("all", PhaseCompleted, 100)

	return result
}

// IngestAll builds the canonical task set for the four built-in sources and
// coordinates them.
func (c *Coordinator) IngestAll(ctx context.Context, geneSymbol string, globalParams Params) CoordinatorResult {
	return c.Coordinate(ctx, c.builtinTasks(geneSymbol, allSources()), globalParams)
}

// IngestCriticalSources coordinates only the high-priority sources (ClinVar
// and UniProt) for faster execution.
func (c *Coordinator) IngestCriticalSources(ctx context.Context, geneSymbol string, globalParams Params) CoordinatorResult {
	return c.Coordinate(ctx, c.builtinTasks(geneSymbol, []string{source.NameClinVar, source.NameUniProt}), globalParams)
}

// RetryFailed constructs tasks only for sources whose previous status is
// FAILED and coordinates them. When nothing failed, the previous result is
// returned unchanged.
func (c *Coordinator) RetryFailed(ctx context.Context, previous CoordinatorResult, retryParams Params) CoordinatorResult {
	var failedSources []string

	for name, result := range previous.SourceResults {
		if result.Status == StatusFailed {
			failedSources = append(failedSources, name)
		}
	}

	if len(failedSources) == 0 {
		return previous
	}

	sort.Strings(failedSources)
	c.logger.Info("retrying failed sources", "count", len(failedSources))

	var tasks []Task

	for _, name := range failedSources {
		factory, ok := c.factories[name]
		if !ok {
			continue
		}

		tasks = append(tasks, Task{
			Source:     name,
			Factory:    factory,
			Parameters: Params{},
			Priority:   builtinPriority(name),
		})
	}

	return c.Coordinate(ctx, tasks, retryParams)
}

// executeParallel runs tasks under a weighted semaphore with
// MaxConcurrentWorkers permits. Results arrive in completion order, and the
// progress callback fires as each worker finishes.
func (c *Coordinator) executeParallel(ctx context.Context, tasks []Task, globalParams Params) ([]IngestionResult, error) {
	sem := semaphore.NewWeighted(int64(c.config.MaxConcurrentWorkers))
	resultCh := make(chan IngestionResult, len(tasks))

	// The collector appends results in completion order and reports
	// progress as each worker finishes.
	results := make([]IngestionResult, 0, len(tasks))
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)

		for result := range resultCh {
			results = append(results, result)
			progress := float64(len(results)) / float64(len(tasks)) * 100
			c.notify("all", PhaseIngesting, progress)
		}
	}()

	var (
		wg         sync.WaitGroup
		acquireErr error
	)

	for _, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = fmt.Errorf("acquire worker slot: %w", err)

			break
		}

		wg.Add(1)

		go func(task Task) {
			defer wg.Done()
			defer sem.Release(1)

			resultCh <- c.executeSingleTask(ctx, task, globalParams)
		}(task)
	}

	wg.Wait()
	close(resultCh)
	<-collectorDone

	if acquireErr != nil {
		return nil, acquireErr
	}

	return results, nil
}

// executeSequential runs tasks strictly in priority order.
func (c *Coordinator) executeSequential(ctx context.Context, tasks []Task, globalParams Params) ([]IngestionResult, error) {
	results := make([]IngestionResult, 0, len(tasks))

	for i, task := range tasks {
		results = append(results, c.executeSingleTask(ctx, task, globalParams))

		progress := float64(i+1) / float64(len(tasks)) * 100
		c.notify("all", PhaseIngesting, progress)
	}

	return results, nil
}

// executeSingleTask acquires a worker from the task's factory, runs it, and
// converts any failure into a synthetic FAILED result carrying a failure
// provenance record. The worker is released on all exit paths.
func (c *Coordinator) executeSingleTask(ctx context.Context, task Task, globalParams Params) IngestionResult {
	c.logger.Info("starting ingestion", "source", task.Source)
	c.publishEvent(ctx, task.Source, StatusRunning)

	job := c.openJob(ctx, task)

	result, err := c.runWorker(ctx, task, globalParams)
	if err != nil {
		c.logger.Error("ingestion failed", "source", task.Source, "error", err)
		c.publishEvent(ctx, task.Source, StatusFailed)

		failure := c.syntheticFailure(task.Source, err)
		c.closeJob(ctx, job, failure)

		return failure
	}

	c.logger.Info("completed ingestion",
		"source", task.Source,
		"records_processed", result.RecordsProcessed,
		"records_failed", result.RecordsFailed,
	)
	c.publishEvent(ctx, task.Source, result.Status)
	c.closeJob(ctx, job, *result)

	c.mu.Lock()
	c.results[task.Source] = *result
	c.mu.Unlock()

	return *result
}

// openJob persists a RUNNING job aggregate for the task when a store is
// attached. Store failures are logged; the task proceeds regardless.
func (c *Coordinator) openJob(ctx context.Context, task Task) *Job {
	if c.store == nil {
		return nil
	}

	sourceID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(task.Source))
	job := NewJob(sourceID, TriggerManual, provenance.New(provenance.Source(task.Source), "harvester-coordinator"))
	job.SourceConfigSnapshot = map[string]any(task.Parameters)

	if _, err := c.store.Save(ctx, job); err != nil {
		c.logger.Warn("job save failed", "source", task.Source, "error", err)

		return nil
	}

	started, ok, err := c.store.StartJob(ctx, job.ID)
	if err != nil || !ok {
		c.logger.Warn("job start failed", "source", task.Source, "error", err)

		return nil
	}

	return &started
}

// closeJob records the task outcome on the persisted job aggregate.
func (c *Coordinator) closeJob(ctx context.Context, job *Job, result IngestionResult) {
	if c.store == nil || job == nil {
		return
	}

	var err error

	switch result.Status {
	case StatusCompleted:
		_, _, err = c.store.CompleteJob(ctx, job.ID, result.Metrics)
	case StatusPartial:
		updated := job.CompletePartially(result.Metrics)
		for _, ingestionError := range result.Errors {
			updated = updated.AddError(ingestionError)
		}

		_, err = c.store.Save(ctx, updated)
	default:
		primary := IngestionError{Type: ErrorTypeUnknown, Message: "ingestion failed"}
		if len(result.Errors) > 0 {
			primary = result.Errors[0]
		}

		_, _, err = c.store.FailJob(ctx, job.ID, primary)
	}

	if err != nil {
		c.logger.Warn("job finalize failed", "source", result.Source, "error", err)
	}
}

// runWorker isolates the scoped worker acquisition so release happens on all
// exit paths.
func (c *Coordinator) runWorker(ctx context.Context, task Task, globalParams Params) (*IngestionResult, error) {
	if task.Factory == nil {
		return nil, fmt.Errorf("no worker factory for source %s", task.Source)
	}

	worker, err := task.Factory()
	if err != nil {
		return nil, fmt.Errorf("acquire worker: %w", err)
	}

	defer func() {
		if closeErr := worker.Close(); closeErr != nil {
			c.logger.Warn("worker close failed", "source", task.Source, "error", closeErr)
		}
	}()

	merged := globalParams.Merge(task.Parameters)

	result, err := worker.Ingest(ctx, merged)
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, fmt.Errorf("worker for source %s returned no result", task.Source)
	}

	return result, nil
}

// syntheticFailure builds the FAILED result recorded when a worker errors.
func (c *Coordinator) syntheticFailure(sourceName string, err error) IngestionResult {
	failedProvenance := provenance.New(provenance.Source(sourceName), "harvester-coordinator")
	failedProvenance = failedProvenance.WithStep(fmt.Sprintf("Failed ingestion: %s", err))
	failedProvenance = failedProvenance.WithQualityScore(0)
	failedProvenance = failedProvenance.MarkValidated(provenance.StatusFailed)

	return IngestionResult{
		Source:           sourceName,
		Status:           StatusFailed,
		RecordsProcessed: 0,
		RecordsFailed:    1,
		Provenance:       failedProvenance,
		Errors:           []IngestionError{classifyFetchError(err)},
		Timestamp:        time.Now().UTC(),
	}
}

// aggregate folds worker results into a CoordinatorResult.
func (c *Coordinator) aggregate(results []IngestionResult, startTime time.Time) CoordinatorResult {
	endTime := time.Now().UTC()

	completed := 0
	totalRecords := 0
	totalErrors := 0
	sourceResults := make(map[string]IngestionResult, len(results))

	for _, result := range results {
		if result.Status == StatusCompleted {
			completed++
		}

		totalRecords += result.RecordsProcessed
		totalErrors += len(result.Errors)
		sourceResults[result.Source] = result
	}

	return CoordinatorResult{
		TotalSources:     len(results),
		CompletedSources: completed,
		FailedSources:    len(results) - completed,
		TotalRecords:     totalRecords,
		TotalErrors:      totalErrors,
		StartTime:        startTime,
		EndTime:          endTime,
		Duration:         endTime.Sub(startTime),
		SourceResults:    sourceResults,
		Phase:            PhaseCompleted,
	}
}

// builtinTasks constructs tasks for the named built-in sources using the
// registered factories.
func (c *Coordinator) builtinTasks(geneSymbol string, names []string) []Task {
	var tasks []Task

	for _, name := range names {
		factory, ok := c.factories[name]
		if !ok {
			c.logger.Warn("no factory registered for source", "source", name)

			continue
		}

		parameters := Params{}

		switch name {
		case source.NameClinVar:
			parameters["gene_symbol"] = geneSymbol
		case source.NamePubMed, source.NameUniProt:
			parameters["query"] = geneSymbol
		case source.NameHPO:
			parameters["gene_only"] = true
		}

		tasks = append(tasks, Task{
			Source:     name,
			Factory:    factory,
			Parameters: parameters,
			Priority:   builtinPriority(name),
		})
	}

	return tasks
}

func allSources() []string {
	return []string{source.NameClinVar, source.NamePubMed, source.NameHPO, source.NameUniProt}
}

// builtinPriority orders the built-in sources: variant and protein data rank
// highest, literature next, the (large) ontology last.
func builtinPriority(name string) int {
	switch name {
	case source.NameClinVar, source.NameUniProt:
		return 1
	case source.NamePubMed:
		return 2
	case source.NameHPO:
		return 3
	default:
		return 5
	}
}

// notify invokes the progress callback, logging and swallowing panics.
func (c *Coordinator) notify(sourceName string, phase Phase, percent float64) {
	if c.config.Progress == nil {
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error("progress callback failed", "error", recovered)
		}
	}()

	c.config.Progress(sourceName, phase, percent)
}

// publishEvent emits a job lifecycle event when a publisher is attached.
// Publishing is best-effort; failures are logged, never propagated.
func (c *Coordinator) publishEvent(ctx context.Context, sourceName string, status Status) {
	if c.publisher == nil {
		return
	}

	event := JobEvent{
		Source:    sourceName,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}

	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("job event publish failed", "source", sourceName, "error", err)
	}
}
