// Package main provides the biomedical data-harvesting engine CLI.
//
// The harvester ingests records from upstream biomedical sources, runs the
// transformation pipeline over them, and packages the validated artifacts as
// a versioned Research Object with an embedded license manifest and
// provenance ledger.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/biolink-io/harvester/internal/config"
	"github.com/biolink-io/harvester/internal/etl"
	"github.com/biolink-io/harvester/internal/ingest"
	"github.com/biolink-io/harvester/internal/license"
	"github.com/biolink-io/harvester/internal/provenance"
	"github.com/biolink-io/harvester/internal/rocrate"
	"github.com/biolink-io/harvester/internal/source"
	"github.com/biolink-io/harvester/internal/storage"
)

// Version information
const (
	version = "1.0.0-dev"
	name    = "harvester"
)

// sourceLicenses maps the built-in sources to their published license terms.
var sourceLicenses = map[string]string{
	source.NameClinVar: "CC0-1.0",
	source.NamePubMed:  "CC0-1.0",
	source.NameHPO:     "CC-BY-4.0",
	source.NameUniProt: "CC-BY-4.0",
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	inputDir := flag.String("input", "data/raw", "directory holding <source>.json raw record snapshots")
	outputDir := flag.String("output", "", "transformed artifact directory (default from HARVESTER_OUTPUT_DIR)")
	storageDir := flag.String("storage", "data/packages", "archive storage base directory")
	geneSymbol := flag.String("gene", "MED13", "gene symbol to harvest")
	packageName := flag.String("package", "harvest-dataset", "package name for the research object")
	packageVersion := flag.String("package-version", "1.0.0", "package version for the research object")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("HARVESTER_LOG_LEVEL", slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger, *inputDir, *outputDir, *storageDir, *geneSymbol, *packageName, *packageVersion); err != nil {
		logger.Error("harvest failed", "error", err)
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	logger *slog.Logger,
	inputDir, outputDir, storageDir, geneSymbol, packageName, packageVersion string,
) error {
	// Ingest: one worker per source, reading the local record snapshots.
	coordinatorCfg := ingest.LoadCoordinatorConfig()
	coordinatorCfg.Progress = func(_ string, phase ingest.Phase, percent float64) {
		logger.Debug("ingestion progress", "phase", phase, "percent", percent)
	}

	options := []ingest.CoordinatorOption{
		ingest.WithFactories(snapshotFactories(inputDir)),
	}

	// Job persistence: Postgres when DATABASE_URL is set, in-memory otherwise.
	storageCfg := storage.LoadConfig()
	if storageCfg.Validate() == nil {
		store, err := storage.Open(ctx, storageCfg, logger)
		if err != nil {
			return fmt.Errorf("open job store: %w", err)
		}

		logger.Info("job store connected", "database", storageCfg.MaskDatabaseURL())
		options = append(options, ingest.WithJobStore(store))
	} else {
		options = append(options, ingest.WithJobStore(storage.NewInMemoryJobStore()))
	}

	eventsCfg := ingest.LoadEventsConfig()
	if len(eventsCfg.Brokers) > 0 {
		publisher, err := ingest.NewKafkaEventPublisher(eventsCfg, logger)
		if err != nil {
			return fmt.Errorf("configure event publisher: %w", err)
		}
		defer publisher.Close()

		options = append(options, ingest.WithEventPublisher(publisher))
	}

	coordinator := ingest.NewCoordinator(coordinatorCfg, logger, options...)

	result := coordinator.IngestAll(ctx, geneSymbol, nil)

	summary := ingest.Summarize(result)
	logger.Info("ingestion finished",
		"completed", summary.CompletedSources,
		"failed", summary.FailedSources,
		"records", summary.TotalRecords,
		"records_per_second", summary.RecordsPerSecond,
	)

	if result.Phase == ingest.PhaseFailed {
		return fmt.Errorf("ingestion coordination failed")
	}

	// Transform: run the pipeline over the ingested bundles.
	pipelineCfg := etl.LoadPipelineConfig()
	if outputDir != "" {
		pipelineCfg.OutputDir = outputDir
	}

	pipelineCfg.Progress = func(message string, percent float64) {
		logger.Debug("pipeline progress", "message", message, "percent", percent)
	}

	raw := make(map[string][]source.RawRecord, len(result.SourceResults))
	for sourceName, sourceResult := range result.SourceResults {
		raw[sourceName] = sourceResult.Data
	}

	pipeline := etl.NewPipeline(pipelineCfg, logger)

	pipelineResult, err := pipeline.Execute(ctx, raw)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	if !pipelineResult.Success {
		return fmt.Errorf("pipeline failed with %d errors", len(pipelineResult.Errors))
	}

	// Package: license manifest, crate, provenance, archive.
	packageDir := filepath.Join(pipelineCfg.OutputDir, packageName)

	var provenanceRecords []provenance.Provenance
	for _, sourceResult := range result.SourceResults {
		provenanceRecords = append(provenanceRecords, sourceResult.Provenance)
	}

	dataFiles := make([]rocrate.DataFile, 0, len(pipelineResult.Export.FilesCreated))
	for _, path := range pipelineResult.Export.FilesCreated {
		dataFiles = append(dataFiles, rocrate.DataFile{SourcePath: path})
	}

	serialized := provenance.Serialize(provenanceRecords)
	downloads, _ := serialized["sources"].([]provenance.DataDownload)

	provenanceSources := make([]map[string]any, 0, len(downloads))
	for _, entry := range downloads {
		provenanceSources = append(provenanceSources, map[string]any(entry))
	}

	builder := rocrate.NewBuilder(packageDir, packageName, rocrate.WithVersion(packageVersion))

	cratePath, err := builder.Build(dataFiles, provenanceSources)
	if err != nil {
		return fmt.Errorf("build research object: %w", err)
	}

	var licenses []license.SourceLicense
	for sourceName := range result.SourceResults {
		licenses = append(licenses, license.NewSourceLicense(sourceName, sourceLicenses[sourceName], "", ""))
	}

	manifest, err := license.GenerateManifest(licenses, "", filepath.Join(cratePath, "license-manifest.yml"))
	if err != nil {
		return fmt.Errorf("generate license manifest: %w", err)
	}

	if manifest.Compliance.Status != license.StatusCompliant {
		logger.Warn("package is not license-compliant", "issues", manifest.Compliance.Issues)
	}

	if err := provenance.WriteLedger(provenanceRecords, filepath.Join(cratePath, "provenance.json")); err != nil {
		return fmt.Errorf("write provenance ledger: %w", err)
	}

	report := rocrate.NewValidator(cratePath).Validate()
	if !report.Valid {
		return fmt.Errorf("built crate failed validation: %v", report.Metadata.Errors)
	}

	packageStorage, err := rocrate.NewStorage(storageDir)
	if err != nil {
		return fmt.Errorf("open package storage: %w", err)
	}

	archivedPath, err := packageStorage.ArchivePackage(cratePath, packageVersion, packageName)
	if err != nil {
		return fmt.Errorf("archive package: %w", err)
	}

	zipPath, err := packageStorage.CreateZipArchive(cratePath, packageVersion, packageName)
	if err != nil {
		return fmt.Errorf("zip package: %w", err)
	}

	logger.Info("harvest complete",
		"crate", cratePath,
		"archive", archivedPath,
		"zip", zipPath,
		"compliance", manifest.Compliance.Status,
	)

	return nil
}

// snapshotFactories builds worker factories that read raw records from
// <inputDir>/<source>.json. Live upstream acquisition is an external
// collaborator; the engine consumes whatever snapshots the acquirers left.
func snapshotFactories(inputDir string) map[string]ingest.IngestorFactory {
	factories := make(map[string]ingest.IngestorFactory)

	for _, sourceName := range []string{source.NameClinVar, source.NamePubMed, source.NameHPO, source.NameUniProt} {
		sourceName := sourceName
		factories[sourceName] = func() (ingest.Ingestor, error) {
			fetcher := &snapshotFetcher{path: filepath.Join(inputDir, sourceName+".json")}

			return ingest.NewSourceWorker(sourceName, fetcher), nil
		}
	}

	return factories
}

// snapshotFetcher serves one source's records from a local JSON snapshot as a
// single batch.
type snapshotFetcher struct {
	path  string
	drain bool
}

func (f *snapshotFetcher) FetchBatch(_ context.Context, _ ingest.Params) ([]source.RawRecord, error) {
	if f.drain {
		return nil, nil
	}

	f.drain = true

	payload, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.path, err)
	}

	var records []source.RawRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}

	return records, nil
}
