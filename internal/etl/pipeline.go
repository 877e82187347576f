// Package etl runs the parse/normalize/map/validate/export transformation pipeline.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/biolink-io/harvester/internal/config"
	"github.com/biolink-io/harvester/internal/normalize"
	"github.com/biolink-io/harvester/internal/source"
)

// Mode selects the pipeline execution strategy.
type Mode string

const (
	// ModeSequential runs the five stages strictly in order.
	ModeSequential Mode = "sequential"

	// ModeParallel is recognized but currently falls back to sequential.
	ModeParallel Mode = "parallel"

	// ModeIncremental is recognized but currently falls back to sequential.
	ModeIncremental Mode = "incremental"
)

// ProgressFunc receives progress notifications as (message, percentComplete).
// Callbacks are best-effort; panics are logged and swallowed.
type ProgressFunc func(message string, percent float64)

// PipelineConfig controls one pipeline's execution.
type PipelineConfig struct {
	Mode                 Mode
	MaxConcurrentSources int
	BatchSize            int
	EnableValidation     bool
	EnableMetrics        bool
	OutputDir            string
	Progress             ProgressFunc
}

// LoadPipelineConfig loads pipeline configuration from environment variables
// with fallback to defaults.
func LoadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Mode:                 Mode(config.GetEnvStr("HARVESTER_PIPELINE_MODE", string(ModeSequential))),
		MaxConcurrentSources: config.GetEnvInt("HARVESTER_PIPELINE_MAX_CONCURRENT_SOURCES", 2),
		BatchSize:            config.GetEnvInt("HARVESTER_PIPELINE_BATCH_SIZE", 1000),
		EnableValidation:     config.GetEnvBool("HARVESTER_PIPELINE_VALIDATION", true),
		EnableMetrics:        config.GetEnvBool("HARVESTER_PIPELINE_METRICS", true),
		OutputDir:            config.GetEnvStr("HARVESTER_OUTPUT_DIR", "data/transformed"),
	}
}

// Validate checks the pipeline configuration.
func (c PipelineConfig) Validate() []string {
	var issues []string

	if c.MaxConcurrentSources < 1 {
		issues = append(issues, "max concurrent sources must be >= 1")
	}

	if c.BatchSize < 1 {
		issues = append(issues, "batch size must be >= 1")
	}

	return issues
}

// Result is the outcome of one pipeline execution.
type Result struct {
	Success bool

	Parsed     *ParsedBundle
	Normalized *NormalizedBundle
	Mapped     *MappedBundle
	Validation *ValidationSummary
	Export     *ExportReport

	// StageResults holds each executed stage's outcome.
	StageResults map[Stage]StageResult

	// Errors aggregates every stage's error list for reporting.
	Errors []string

	ExecutionTime   time.Duration
	StagesCompleted []Stage
}

// Pipeline composes the five stage runners over typed bundles.
//
// A pipeline value is good for any number of sequential runs; normalizer
// caches are rebuilt per invocation and never shared across concurrent runs.
type Pipeline struct {
	config  PipelineConfig
	parsers Parsers
	logger  *slog.Logger
	tracker *MetricsTracker
}

// NewPipeline creates a pipeline with the supplied configuration.
// A nil logger defaults to slog's default logger.
func NewPipeline(cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Mode == "" {
		cfg.Mode = ModeSequential
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "data/transformed"
	}

	return &Pipeline{
		config: cfg,
		parsers: Parsers{
			ClinVar: source.NewClinVarParser(logger),
			PubMed:  source.NewPubMedParser(logger),
			HPO:     source.NewHPOParser(logger),
			UniProt: source.NewUniProtParser(logger),
		},
		logger:  logger,
		tracker: NewMetricsTracker(),
	}
}

// Metrics returns the pipeline's metrics tracker.
func (p *Pipeline) Metrics() *MetricsTracker {
	return p.tracker
}

// Execute runs the pipeline over raw records grouped by source name.
//
// PARALLEL and INCREMENTAL modes are recognized tags that currently fall back
// to SEQUENTIAL; the fallback is logged and preserves the same contract.
func (p *Pipeline) Execute(ctx context.Context, raw map[string][]source.RawRecord) (*Result, error) {
	start := time.Now()

	switch p.config.Mode {
	case ModeSequential:
	case ModeParallel:
		p.logger.Warn("parallel mode not yet implemented, falling back to sequential")
	case ModeIncremental:
		p.logger.Warn("incremental mode not yet implemented, falling back to sequential")
	default:
		return nil, fmt.Errorf("unknown pipeline mode: %q", p.config.Mode)
	}

	if err := os.MkdirAll(p.config.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	totalInput := 0
	for _, records := range raw {
		totalInput += len(records)
	}

	p.tracker.SetTotalInputRecords(totalInput)

	result := &Result{
		StageResults: make(map[Stage]StageResult),
	}

	normalizers := Normalizers{
		Gene:        normalize.NewGeneNormalizer(),
		Variant:     normalize.NewVariantNormalizer(),
		Phenotype:   normalize.NewPhenotypeNormalizer(),
		Publication: normalize.NewPublicationNormalizer(),
	}

	p.notify("Starting transformation", 0)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, parseResult := runParsingStage(p.parsers, raw)
	p.record(result, parseResult)
	result.Parsed = parsed
	p.notify("Parsing completed", 20)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized, normalizeResult := runNormalizationStage(normalizers, parsed)
	p.record(result, normalizeResult)
	result.Normalized = normalized
	p.notify("Normalization completed", 40)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mapped, mapResult := runMappingStage(normalized)
	p.record(result, mapResult)
	result.Mapped = mapped
	p.notify("Mapping completed", 60)

	if p.config.EnableValidation {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		validation, validateResult := runValidationStage(mapped)
		p.record(result, validateResult)
		result.Validation = validation
		p.notify("Validation completed", 80)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	export, exportResult := runExportStage(p.config.OutputDir, normalized, mapped)
	p.record(result, exportResult)
	result.Export = export
	p.notify("Transformation completed", 100)

	result.ExecutionTime = time.Since(start)
	result.Success = exportResult.Status != StatusFailed

	if p.config.EnableMetrics {
		p.tracker.Update(parsed, normalized, mapped, result.Validation, result.ExecutionTime, result.StageResults)
		observeRun()
	}

	p.logger.Info("pipeline completed",
		"duration", result.ExecutionTime,
		"stages", len(result.StagesCompleted),
		"errors", len(result.Errors),
	)

	return result, nil
}

// record stores a stage result and folds its errors into the aggregate list.
func (p *Pipeline) record(result *Result, stageResult StageResult) {
	result.StageResults[stageResult.Stage] = stageResult
	result.StagesCompleted = append(result.StagesCompleted, stageResult.Stage)
	result.Errors = append(result.Errors, stageResult.Errors...)

	p.logger.Debug("stage finished",
		"stage", stageResult.Stage,
		"status", stageResult.Status,
		"processed", stageResult.RecordsProcessed,
		"failed", stageResult.RecordsFailed,
		"duration", stageResult.Duration,
	)
}

// notify invokes the progress callback, logging and swallowing panics.
func (p *Pipeline) notify(message string, percent float64) {
	if p.config.Progress == nil {
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error("progress callback failed", "error", recovered)
		}
	}()

	p.config.Progress(message, percent)
}
