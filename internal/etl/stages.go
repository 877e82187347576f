// Package etl runs the parse/normalize/map/validate/export transformation pipeline.
package etl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biolink-io/harvester/internal/mapping"
	"github.com/biolink-io/harvester/internal/normalize"
	"github.com/biolink-io/harvester/internal/source"
)

// Parsers bundles the per-source parsers used by the parsing stage.
// A nil parser means the source has no parser available.
type Parsers struct {
	ClinVar *source.ClinVarParser
	PubMed  *source.PubMedParser
	HPO     *source.HPOParser
	UniProt *source.UniProtParser
}

// Normalizers bundles the per-entity normalizers used by the normalization stage.
type Normalizers struct {
	Gene        *normalize.GeneNormalizer
	Variant     *normalize.VariantNormalizer
	Phenotype   *normalize.PhenotypeNormalizer
	Publication *normalize.PublicationNormalizer
}

// runParsingStage converts raw records into typed source records.
//
// Sources without a parser contribute a "No parser available" error and are
// skipped. Per-record validation issues accumulate on the stage error list.
// The stage completes with PARTIAL status when any errors were recorded.
func runParsingStage(parsers Parsers, raw map[string][]source.RawRecord) (*ParsedBundle, StageResult) {
	start := time.Now()
	bundle := NewParsedBundle()

	var errors []string

	processed := 0

	for sourceName, records := range raw {
		switch sourceName {
		case source.NameClinVar:
			if parsers.ClinVar == nil {
				errors = append(errors, noParserError(sourceName))

				continue
			}

			bundle.ClinVar = parsers.ClinVar.ParseBatch(records)
			processed += len(bundle.ClinVar)

			for _, variant := range bundle.ClinVar {
				errors = append(errors, parsers.ClinVar.Validate(variant)...)
			}

		case source.NamePubMed:
			if parsers.PubMed == nil {
				errors = append(errors, noParserError(sourceName))

				continue
			}

			bundle.PubMed = parsers.PubMed.ParseBatch(records)
			processed += len(bundle.PubMed)

			for _, publication := range bundle.PubMed {
				errors = append(errors, parsers.PubMed.Validate(publication)...)
			}

		case source.NameHPO:
			if parsers.HPO == nil {
				errors = append(errors, noParserError(sourceName))

				continue
			}

			bundle.HPO = parsers.HPO.ParseBatch(records)
			processed += len(bundle.HPO)

			for _, term := range bundle.HPO {
				errors = append(errors, parsers.HPO.Validate(term)...)
			}

		case source.NameUniProt:
			if parsers.UniProt == nil {
				errors = append(errors, noParserError(sourceName))

				continue
			}

			bundle.UniProt = parsers.UniProt.ParseBatch(records)
			processed += len(bundle.UniProt)

			for _, protein := range bundle.UniProt {
				errors = append(errors, parsers.UniProt.Validate(protein)...)
			}

		default:
			errors = append(errors, noParserError(sourceName))
		}
	}

	return bundle, StageResult{
		Stage:            StageParsing,
		Status:           statusFromErrors(errors, StatusPartial),
		RecordsProcessed: processed,
		RecordsFailed:    len(errors),
		DataSnapshot:     bundle.Snapshot(),
		Errors:           errors,
		Duration:         time.Since(start),
		Timestamp:        time.Now().UTC(),
	}
}

// runNormalizationStage converts typed source records into canonical entities.
//
// Order matters: UniProt genes seed the seen-gene set before ClinVar genes so
// overlapping contributions stay idempotent, then variants, phenotypes, HPO
// terms, and publications follow.
func runNormalizationStage(normalizers Normalizers, parsed *ParsedBundle) (*NormalizedBundle, StageResult) {
	start := time.Now()
	bundle := &NormalizedBundle{}
	seenGenes := make(map[string]bool)

	// UniProt genes.
	for _, protein := range parsed.UniProt {
		for _, gene := range protein.Genes {
			normalized := normalizers.Gene.FromUniProt(gene, protein.PrimaryAccession)
			addGeneIfUnique(bundle, seenGenes, normalized, fmt.Sprintf("Failed to normalize UniProt gene: %s", gene.Name))
		}
	}

	// ClinVar genes, skipping identities already registered.
	for _, variant := range parsed.ClinVar {
		normalized := normalizers.Gene.FromClinVar(variant)

		errorMessage := ""
		if variant.GeneSymbol != "" {
			errorMessage = fmt.Sprintf("Failed to normalize ClinVar gene: %s", variant.GeneSymbol)
		}

		addGeneIfUnique(bundle, seenGenes, normalized, errorMessage)
	}

	// ClinVar variants.
	for _, variant := range parsed.ClinVar {
		if normalized := normalizers.Variant.FromClinVar(variant); normalized != nil {
			bundle.Variants = append(bundle.Variants, *normalized)
		} else {
			bundle.Errors = append(bundle.Errors, fmt.Sprintf("Failed to normalize ClinVar variant: %s", variant.ClinVarID))
		}
	}

	// ClinVar phenotypes, one per phenotype name on each variant.
	for _, variant := range parsed.ClinVar {
		for _, name := range variant.Phenotypes {
			if normalized := normalizers.Phenotype.FromClinVarName(name); normalized != nil {
				bundle.Phenotypes = append(bundle.Phenotypes, *normalized)
			} else {
				bundle.Errors = append(bundle.Errors, fmt.Sprintf("Failed to normalize ClinVar phenotype: %s", name))
			}
		}
	}

	// HPO terms.
	for _, term := range parsed.HPO {
		if normalized := normalizers.Phenotype.FromHPO(term); normalized != nil {
			bundle.Phenotypes = append(bundle.Phenotypes, *normalized)
		} else {
			bundle.Errors = append(bundle.Errors, fmt.Sprintf("Failed to normalize HPO term: %s", term.HPOID))
		}
	}

	// PubMed publications.
	for _, article := range parsed.PubMed {
		if normalized := normalizers.Publication.FromPubMed(article); normalized != nil {
			bundle.Publications = append(bundle.Publications, *normalized)
		} else {
			bundle.Errors = append(bundle.Errors, fmt.Sprintf("Failed to normalize PubMed publication: %s", article.PubMedID))
		}
	}

	// UniProt publications; silent skip on failure.
	for _, protein := range parsed.UniProt {
		for _, reference := range protein.References {
			if normalized := normalizers.Publication.FromUniProtReference(reference); normalized != nil {
				bundle.Publications = append(bundle.Publications, *normalized)
			}
		}
	}

	return bundle, StageResult{
		Stage:            StageNormalization,
		Status:           statusFromErrors(bundle.Errors, StatusPartial),
		RecordsProcessed: bundle.TotalRecords(),
		RecordsFailed:    len(bundle.Errors),
		DataSnapshot:     bundle.Snapshot(),
		Errors:           bundle.Errors,
		Duration:         time.Since(start),
		Timestamp:        time.Now().UTC(),
	}
}

// runMappingStage builds gene/variant and variant/phenotype links plus the
// cross-reference network per gene.
func runMappingStage(normalized *NormalizedBundle) (*MappedBundle, StageResult) {
	start := time.Now()

	geneMapper := mapping.NewGeneVariantMapper()
	variantMapper := mapping.NewVariantPhenotypeMapper()
	crossMapper := mapping.NewCrossReferenceMapper()

	bundle := &MappedBundle{
		Networks:               make(map[string][]string),
		GeneVariantMapper:      geneMapper,
		VariantPhenotypeMapper: variantMapper,
	}

	var errors []string

	// Lookup by lowercased primary id, then by lowercased symbol.
	geneLookup := make(map[string]normalize.Gene, len(normalized.Genes))
	for _, gene := range normalized.Genes {
		geneLookup[strings.ToLower(gene.PrimaryID)] = gene
	}

	for _, gene := range normalized.Genes {
		if gene.Symbol != "" {
			geneLookup[strings.ToLower(gene.Symbol)] = gene
		}
	}

	for _, variant := range normalized.Variants {
		if variant.GeneSymbol == "" {
			continue
		}

		gene, ok := geneLookup[strings.ToLower(variant.GeneSymbol)]
		if !ok {
			continue
		}

		if location := variant.GenomicLocation; location != nil && location.Position != nil && location.Chromosome != "" {
			geneMapper.AddGeneCoordinates(gene.PrimaryID, location.Chromosome, *location.Position, *location.Position)
		}

		if link := geneMapper.Map(gene, variant); link != nil {
			bundle.GeneVariantLinks = append(bundle.GeneVariantLinks, *link)
			crossMapper.AddReference(gene.PrimaryID, variant.PrimaryID)
		}
	}

	for _, variant := range normalized.Variants {
		for _, phenotype := range normalized.Phenotypes {
			if link := variantMapper.Map(variant, phenotype, nil); link != nil {
				bundle.VariantPhenotypeLinks = append(bundle.VariantPhenotypeLinks, *link)
				crossMapper.AddReference(variant.PrimaryID, phenotype.PrimaryID)
			}
		}
	}

	for _, gene := range normalized.Genes {
		network := crossMapper.Network(gene.PrimaryID)
		bundle.Networks[gene.PrimaryID] = network[gene.PrimaryID]
	}

	return bundle, StageResult{
		Stage:            StageMapping,
		Status:           statusFromErrors(errors, StatusPartial),
		RecordsProcessed: bundle.RelationshipCount(),
		RecordsFailed:    len(errors),
		DataSnapshot:     bundle.Snapshot(),
		Errors:           errors,
		Duration:         time.Since(start),
		Timestamp:        time.Now().UTC(),
	}
}

// runValidationStage validates every mapped link.
func runValidationStage(mapped *MappedBundle) (*ValidationSummary, StageResult) {
	start := time.Now()
	summary := &ValidationSummary{}

	if mapped.GeneVariantMapper != nil {
		for _, link := range mapped.GeneVariantLinks {
			if issues := mapped.GeneVariantMapper.ValidateMapping(link); len(issues) > 0 {
				summary.RecordFailure(issues)
			} else {
				summary.RecordSuccess()
			}
		}
	}

	if mapped.VariantPhenotypeMapper != nil {
		for _, link := range mapped.VariantPhenotypeLinks {
			if issues := mapped.VariantPhenotypeMapper.ValidateMapping(link); len(issues) > 0 {
				summary.RecordFailure(issues)
			} else {
				summary.RecordSuccess()
			}
		}
	}

	status := StatusCompleted
	if summary.Failed > 0 {
		status = StatusPartial
	}

	return summary, StageResult{
		Stage:            StageValidation,
		Status:           status,
		RecordsProcessed: summary.Passed + summary.Failed,
		RecordsFailed:    summary.Failed,
		DataSnapshot:     summary.Snapshot(),
		Errors:           append([]string(nil), summary.Errors...),
		Duration:         time.Since(start),
		Timestamp:        time.Now().UTC(),
	}
}

// exportEntry is the on-disk shape of one exported entity.
type exportEntry struct {
	PrimaryID       string   `json:"primary_id"`
	DisplayName     *string  `json:"display_name"`
	Source          string   `json:"source"`
	ConfidenceScore *float64 `json:"confidence_score"`
}

// runExportStage writes <kind>_normalized.json for each non-empty collection
// plus entity_mappings.json with relationship counts. Any I/O failure marks
// the stage FAILED; prior artifacts stay valid.
func runExportStage(outputDir string, normalized *NormalizedBundle, mapped *MappedBundle) (*ExportReport, StageResult) {
	start := time.Now()
	report := &ExportReport{}

	writeCollection := func(kind string, entries []exportEntry) {
		if len(entries) == 0 || len(report.Errors) > 0 {
			return
		}

		path := filepath.Join(outputDir, kind+"_normalized.json")

		payload, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Export failed: %v", err))

			return
		}

		if err := os.WriteFile(path, payload, 0o600); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Export failed: %v", err))

			return
		}

		report.FilesCreated = append(report.FilesCreated, path)
	}

	writeCollection("genes", geneEntries(normalized.Genes))
	writeCollection("variants", variantEntries(normalized.Variants))
	writeCollection("phenotypes", phenotypeEntries(normalized.Phenotypes))
	writeCollection("publications", publicationEntries(normalized.Publications))

	if len(report.Errors) == 0 {
		mappingSummary := map[string]int{
			"gene_variant_count":      len(mapped.GeneVariantLinks),
			"variant_phenotype_count": len(mapped.VariantPhenotypeLinks),
			"networks_count":          len(mapped.Networks),
		}

		path := filepath.Join(outputDir, "entity_mappings.json")

		payload, err := json.MarshalIndent(mappingSummary, "", "  ")
		if err == nil {
			err = os.WriteFile(path, payload, 0o600)
		}

		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Export failed: %v", err))
		} else {
			report.FilesCreated = append(report.FilesCreated, path)
		}
	}

	status := StatusCompleted
	if len(report.Errors) > 0 {
		status = StatusFailed
	}

	return report, StageResult{
		Stage:            StageExport,
		Status:           status,
		RecordsProcessed: len(report.FilesCreated),
		RecordsFailed:    len(report.Errors),
		DataSnapshot:     report.Snapshot(),
		Errors:           append([]string(nil), report.Errors...),
		Duration:         time.Since(start),
		Timestamp:        time.Now().UTC(),
	}
}

func geneEntries(genes []normalize.Gene) []exportEntry {
	entries := make([]exportEntry, 0, len(genes))
	for _, gene := range genes {
		entries = append(entries, exportEntry{
			PrimaryID:       gene.PrimaryID,
			DisplayName:     optionalString(gene.Name),
			Source:          gene.Source,
			ConfidenceScore: optionalFloat(gene.Confidence),
		})
	}

	return entries
}

func variantEntries(variants []normalize.Variant) []exportEntry {
	entries := make([]exportEntry, 0, len(variants))
	for _, variant := range variants {
		entries = append(entries, exportEntry{
			PrimaryID:       variant.PrimaryID,
			Source:          variant.Source,
			ConfidenceScore: optionalFloat(variant.Confidence),
		})
	}

	return entries
}

func phenotypeEntries(phenotypes []normalize.Phenotype) []exportEntry {
	entries := make([]exportEntry, 0, len(phenotypes))
	for _, phenotype := range phenotypes {
		entries = append(entries, exportEntry{
			PrimaryID:       phenotype.PrimaryID,
			DisplayName:     optionalString(phenotype.Name),
			Source:          phenotype.Source,
			ConfidenceScore: optionalFloat(phenotype.Confidence),
		})
	}

	return entries
}

func publicationEntries(publications []normalize.Publication) []exportEntry {
	entries := make([]exportEntry, 0, len(publications))
	for _, publication := range publications {
		entries = append(entries, exportEntry{
			PrimaryID:       publication.PrimaryID,
			DisplayName:     optionalString(publication.Title),
			Source:          publication.Source,
			ConfidenceScore: optionalFloat(publication.Confidence),
		})
	}

	return entries
}

func addGeneIfUnique(bundle *NormalizedBundle, seen map[string]bool, gene *normalize.Gene, errorMessage string) {
	if gene != nil {
		if gene.PrimaryID != "" && !seen[gene.PrimaryID] {
			bundle.Genes = append(bundle.Genes, *gene)
			seen[gene.PrimaryID] = true
		}

		return
	}

	if errorMessage != "" {
		bundle.Errors = append(bundle.Errors, errorMessage)
	}
}

func noParserError(sourceName string) string {
	return fmt.Sprintf("No parser available for source: %s", sourceName)
}

func statusFromErrors(errors []string, degraded StageStatus) StageStatus {
	if len(errors) == 0 {
		return StatusCompleted
	}

	return degraded
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}

func optionalFloat(value float64) *float64 {
	return &value
}
