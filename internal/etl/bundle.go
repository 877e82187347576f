// Package etl runs the parse/normalize/map/validate/export transformation
// pipeline over ingested source records.
//
// Each stage consumes the typed bundle produced by the previous stage and
// appends a StageResult describing its outcome. Bundles are owned by the
// running pipeline invocation; downstream readers receive snapshots.
package etl

import (
	"time"

	"github.com/biolink-io/harvester/internal/mapping"
	"github.com/biolink-io/harvester/internal/normalize"
	"github.com/biolink-io/harvester/internal/source"
)

// Stage identifies one of the five pipeline stages.
type Stage string

const (
	// StageParsing converts raw records to typed source records.
	StageParsing Stage = "parsing"

	// StageNormalization converts typed records to canonical entities.
	StageNormalization Stage = "normalization"

	// StageMapping builds cross-references between canonical entities.
	StageMapping Stage = "mapping"

	// StageValidation checks mapped links for structural quality.
	StageValidation Stage = "validation"

	// StageExport writes normalized artifacts to disk.
	StageExport Stage = "export"
)

// StageStatus describes the outcome of a stage run.
type StageStatus string

const (
	// StatusPending marks a stage that has not started.
	StatusPending StageStatus = "pending"

	// StatusRunning marks a stage in progress.
	StatusRunning StageStatus = "running"

	// StatusCompleted marks a stage that finished without errors.
	StatusCompleted StageStatus = "completed"

	// StatusFailed marks a stage that could not produce its artifact.
	StatusFailed StageStatus = "failed"

	// StatusPartial marks a stage that finished with recorded errors.
	StatusPartial StageStatus = "partial"
)

// StageResult records the outcome of one stage run.
type StageResult struct {
	Stage            Stage
	Status           StageStatus
	RecordsProcessed int
	RecordsFailed    int
	DataSnapshot     map[string]any
	Errors           []string
	Duration         time.Duration
	Timestamp        time.Time
}

// ParsedBundle holds typed source records grouped by source.
type ParsedBundle struct {
	ClinVar []source.ClinVarVariant
	PubMed  []source.PubMedPublication
	HPO     []source.HPOTerm
	UniProt []source.UniProtProtein

	// Extras holds records from sources without a dedicated collection.
	Extras map[string][]source.RawRecord
}

// NewParsedBundle creates an empty parsed bundle.
func NewParsedBundle() *ParsedBundle {
	return &ParsedBundle{Extras: make(map[string][]source.RawRecord)}
}

// TotalRecords counts all parsed records across sources.
func (b *ParsedBundle) TotalRecords() int {
	total := len(b.ClinVar) + len(b.PubMed) + len(b.HPO) + len(b.UniProt)
	for _, records := range b.Extras {
		total += len(records)
	}

	return total
}

// Snapshot summarizes the bundle as per-source record counts.
func (b *ParsedBundle) Snapshot() map[string]any {
	snapshot := map[string]any{
		source.NameClinVar: len(b.ClinVar),
		source.NamePubMed:  len(b.PubMed),
		source.NameHPO:     len(b.HPO),
		source.NameUniProt: len(b.UniProt),
	}

	for name, records := range b.Extras {
		snapshot[name] = len(records)
	}

	return snapshot
}

// NormalizedBundle holds canonical entities plus per-record normalization errors.
type NormalizedBundle struct {
	Genes        []normalize.Gene
	Variants     []normalize.Variant
	Phenotypes   []normalize.Phenotype
	Publications []normalize.Publication
	Errors       []string
}

// TotalRecords counts all normalized entities.
func (b *NormalizedBundle) TotalRecords() int {
	return len(b.Genes) + len(b.Variants) + len(b.Phenotypes) + len(b.Publications)
}

// Snapshot summarizes the bundle as per-kind entity counts.
func (b *NormalizedBundle) Snapshot() map[string]any {
	return map[string]any{
		"genes":        len(b.Genes),
		"variants":     len(b.Variants),
		"phenotypes":   len(b.Phenotypes),
		"publications": len(b.Publications),
	}
}

// MappedBundle holds relationship mapping outputs. The mappers are retained
// so the validation stage can reuse their link validators.
type MappedBundle struct {
	GeneVariantLinks      []mapping.GeneVariantLink
	VariantPhenotypeLinks []mapping.VariantPhenotypeLink

	// Networks maps gene id to the ids it directly references.
	Networks map[string][]string

	GeneVariantMapper      *mapping.GeneVariantMapper
	VariantPhenotypeMapper *mapping.VariantPhenotypeMapper
}

// RelationshipCount counts all recorded links.
func (b *MappedBundle) RelationshipCount() int {
	return len(b.GeneVariantLinks) + len(b.VariantPhenotypeLinks)
}

// Snapshot summarizes the bundle as link and network counts.
func (b *MappedBundle) Snapshot() map[string]any {
	return map[string]any{
		"gene_variant_links":      len(b.GeneVariantLinks),
		"variant_phenotype_links": len(b.VariantPhenotypeLinks),
		"networks":                len(b.Networks),
	}
}

// ValidationSummary aggregates link validation outcomes.
type ValidationSummary struct {
	Passed int
	Failed int
	Errors []string
}

// RecordSuccess counts one passing link.
func (s *ValidationSummary) RecordSuccess() {
	s.Passed++
}

// RecordFailure counts one failing link and retains its issues.
func (s *ValidationSummary) RecordFailure(issues []string) {
	s.Failed++
	s.Errors = append(s.Errors, issues...)
}

// Snapshot summarizes the validation outcome.
func (s *ValidationSummary) Snapshot() map[string]any {
	return map[string]any{
		"passed": s.Passed,
		"failed": s.Failed,
		"errors": len(s.Errors),
	}
}

// ExportReport lists the artifacts written by the export stage.
type ExportReport struct {
	FilesCreated []string
	Errors       []string
}

// Snapshot summarizes the export outcome.
func (r *ExportReport) Snapshot() map[string]any {
	return map[string]any{
		"files_created": len(r.FilesCreated),
		"errors":        len(r.Errors),
	}
}
