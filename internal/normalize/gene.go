// Package normalize converts parsed source records into canonical entities.
//
// Each normalizer takes typed source records (or schema-loose raw records)
// and produces canonical entities carrying a confidence score and a
// cross-reference map. Normalizer caches are per-pipeline-invocation and are
// not safe for use across concurrent runs.
package normalize

import (
	"errors"
	"regexp"
	"strings"

	"github.com/biolink-io/harvester/internal/source"
)

// GeneIDType identifies the namespace of a gene's primary identifier.
type GeneIDType string

const (
	// GeneIDSymbol is an HGNC-style gene symbol.
	GeneIDSymbol GeneIDType = "symbol"

	// GeneIDNCBI is an NCBI Gene identifier.
	GeneIDNCBI GeneIDType = "ncbi_gene_id"

	// GeneIDHGNC is an HGNC identifier.
	GeneIDHGNC GeneIDType = "hgnc_id"

	// GeneIDEnsembl is an Ensembl gene identifier.
	GeneIDEnsembl GeneIDType = "ensembl_id"

	// GeneIDUniProt is a UniProt accession.
	GeneIDUniProt GeneIDType = "uniprot_id"

	// GeneIDOther covers unrecognized identifier layouts.
	GeneIDOther GeneIDType = "other"
)

// SourceMerged tags entities produced by merging records from several sources.
const SourceMerged = "merged"

// mergeConfidenceBoost is added to the best input's confidence when merging.
const mergeConfidenceBoost = 0.1

// ErrNothingToMerge is returned when a merge is requested over no entities.
var ErrNothingToMerge = errors.New("nothing to merge")

// geneSymbolPattern validates normalized gene symbols.
var geneSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_-]*$`)

// Gene is a canonical gene entity.
type Gene struct {
	PrimaryID  string
	IDType     GeneIDType
	Symbol     string
	Name       string
	Synonyms   []string
	CrossRefs  map[string][]string
	Source     string
	Confidence float64
}

// GeneNormalizer standardizes gene identifiers from different sources.
//
// The cache is keyed by primary id and scoped to one pipeline invocation.
type GeneNormalizer struct {
	cache map[string]*Gene
}

// NewGeneNormalizer creates a gene normalizer with an empty cache.
func NewGeneNormalizer() *GeneNormalizer {
	return &GeneNormalizer{cache: make(map[string]*Gene)}
}

// FromClinVar builds a canonical gene from a ClinVar variant's gene block.
// Returns nil when the variant carries neither a symbol nor a gene id.
func (n *GeneNormalizer) FromClinVar(variant source.ClinVarVariant) *Gene {
	if variant.GeneSymbol == "" && variant.GeneID == "" {
		return nil
	}

	primaryID := variant.GeneSymbol
	idType := GeneIDSymbol

	if primaryID == "" {
		primaryID = "NCBIGENE:" + variant.GeneID
		idType = GeneIDNCBI
	}

	crossRefs := map[string][]string{}
	if variant.GeneID != "" {
		crossRefs["NCBI"] = []string{variant.GeneID}
	}

	if variant.GeneSymbol != "" {
		crossRefs["SYMBOL"] = []string{variant.GeneSymbol}
	}

	gene := &Gene{
		PrimaryID:  primaryID,
		IDType:     idType,
		Symbol:     variant.GeneSymbol,
		Name:       variant.GeneName,
		CrossRefs:  crossRefs,
		Source:     source.NameClinVar,
		Confidence: 0.9,
	}

	n.cache[gene.PrimaryID] = gene

	return gene
}

// FromUniProt builds a canonical gene from a UniProt gene block.
// Returns nil when the gene has no name.
func (n *GeneNormalizer) FromUniProt(gene source.UniProtGene, accession string) *Gene {
	if gene.Name == "" {
		return nil
	}

	symbol := n.NormalizeSymbol(gene.Name)

	crossRefs := map[string][]string{
		"SYMBOL": {gene.Name},
	}
	if accession != "" {
		crossRefs["UNIPROT"] = []string{accession}
	}

	normalized := &Gene{
		PrimaryID:  symbol,
		IDType:     GeneIDSymbol,
		Symbol:     symbol,
		Synonyms:   append([]string(nil), gene.Synonyms...),
		CrossRefs:  crossRefs,
		Source:     source.NameUniProt,
		Confidence: 0.8,
	}

	n.cache[normalized.PrimaryID] = normalized

	return normalized
}

// FromRecord builds a canonical gene from a schema-loose record.
// Returns nil when the record has neither a symbol nor an id.
func (n *GeneNormalizer) FromRecord(record source.RawRecord, src string) *Gene {
	symbol := record.Str("symbol")
	if symbol == "" {
		symbol = record.Str("name")
	}

	geneID := record.Str("id")
	if geneID == "" {
		geneID = record.Str("gene_id")
	}

	name := record.Str("full_name")
	if name == "" {
		name = record.Str("description")
	}

	if symbol == "" && geneID == "" {
		return nil
	}

	gene := &Gene{
		Name:       name,
		Synonyms:   record.Strings("synonyms"),
		CrossRefs:  map[string][]string{},
		Source:     src,
		Confidence: 0.5,
	}

	if symbol != "" {
		gene.Symbol = n.NormalizeSymbol(symbol)
		gene.PrimaryID = gene.Symbol
		gene.IDType = GeneIDSymbol
	} else {
		gene.PrimaryID = geneID
		gene.IDType = GeneIDOther
	}

	n.cache[gene.PrimaryID] = gene

	return gene
}

// NormalizeSymbol uppercases and trims a gene symbol.
func (n *GeneNormalizer) NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Merge combines multiple records for the same gene into one. The
// highest-confidence record is the base; synonyms and cross-references are
// unioned and the confidence is boosted by 0.1 capped at 1.0.
func (n *GeneNormalizer) Merge(genes []Gene) (Gene, error) {
	if len(genes) == 0 {
		return Gene{}, ErrNothingToMerge
	}

	if len(genes) == 1 {
		return genes[0], nil
	}

	base := genes[0]
	for _, gene := range genes[1:] {
		if gene.Confidence > base.Confidence {
			base = gene
		}
	}

	merged := base
	merged.CrossRefs = mergeCrossRefs(crossRefSets(genes))
	merged.Synonyms = unionStrings(synonymSets(genes))
	merged.Source = SourceMerged
	merged.Confidence = capConfidence(base.Confidence + mergeConfidenceBoost)

	return merged, nil
}

// Validate checks a canonical gene for structural validity.
func (n *GeneNormalizer) Validate(gene Gene) []string {
	var issues []string

	if gene.PrimaryID == "" {
		issues = append(issues, "Missing primary ID")
	}

	if gene.IDType == GeneIDSymbol && gene.Symbol == "" {
		issues = append(issues, "Symbol type gene missing symbol field")
	}

	if gene.Confidence < 0 || gene.Confidence > 1 {
		issues = append(issues, "Confidence score out of range [0,1]")
	}

	if gene.Symbol != "" && !geneSymbolPattern.MatchString(gene.Symbol) {
		issues = append(issues, "Invalid gene symbol format")
	}

	return issues
}

// ByID returns a cached gene by primary id.
func (n *GeneNormalizer) ByID(geneID string) (*Gene, bool) {
	gene, ok := n.cache[geneID]

	return gene, ok
}

// BySymbol returns a cached gene by (normalized) symbol.
func (n *GeneNormalizer) BySymbol(symbol string) (*Gene, bool) {
	gene, ok := n.cache[n.NormalizeSymbol(symbol)]

	return gene, ok
}

// Shared merge helpers used by all entity normalizers.

func crossRefSets(genes []Gene) []map[string][]string {
	sets := make([]map[string][]string, 0, len(genes))
	for _, gene := range genes {
		sets = append(sets, gene.CrossRefs)
	}

	return sets
}

func synonymSets(genes []Gene) [][]string {
	sets := make([][]string, 0, len(genes))
	for _, gene := range genes {
		sets = append(sets, gene.Synonyms)
	}

	return sets
}

// mergeCrossRefs unions cross-reference maps, de-duplicating ids per type
// while preserving first-seen order.
func mergeCrossRefs(sets []map[string][]string) map[string][]string {
	merged := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	for _, refs := range sets {
		for refType, ids := range refs {
			if seen[refType] == nil {
				seen[refType] = make(map[string]bool)
			}

			for _, id := range ids {
				if seen[refType][id] {
					continue
				}

				seen[refType][id] = true
				merged[refType] = append(merged[refType], id)
			}
		}
	}

	return merged
}

// unionStrings de-duplicates string slices preserving first-seen order.
func unionStrings(sets [][]string) []string {
	var union []string

	seen := make(map[string]bool)

	for _, set := range sets {
		for _, value := range set {
			if seen[value] {
				continue
			}

			seen[value] = true
			union = append(union, value)
		}
	}

	return union
}

func capConfidence(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}

	return score
}
