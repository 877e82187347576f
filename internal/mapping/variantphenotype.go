// Package mapping builds cross-references between normalized entities.
package mapping

import (
	"encoding/json"
	"strings"

	"github.com/biolink-io/harvester/internal/normalize"
	"github.com/biolink-io/harvester/internal/source"
)

// VariantPhenotypeRelationship classifies how a variant relates to a phenotype.
type VariantPhenotypeRelationship string

const (
	// RelationshipCausative marks variants that cause the phenotype.
	RelationshipCausative VariantPhenotypeRelationship = "causative"

	// RelationshipAssociated marks variants associated with the phenotype.
	RelationshipAssociated VariantPhenotypeRelationship = "associated"

	// RelationshipProtective marks variants protecting against the phenotype.
	RelationshipProtective VariantPhenotypeRelationship = "protective"

	// RelationshipModifier marks variants modifying phenotype severity.
	RelationshipModifier VariantPhenotypeRelationship = "modifier"

	// RelationshipRiskFactor marks variants increasing risk.
	RelationshipRiskFactor VariantPhenotypeRelationship = "risk_factor"

	// RelationshipUncertain marks relationships of uncertain significance.
	RelationshipUncertain VariantPhenotypeRelationship = "uncertain"
)

// Confidence scoring increments for variant/phenotype links.
const (
	baseLinkConfidence          = 0.3
	bothClinVarBoost            = 0.4
	pathogenicBoost             = 0.2
	likelyPathogenicBoost       = 0.1
	additionalEvidenceBoost     = 0.1
	hpoTypedPhenotypeBoost      = 0.1
	highConfidenceThreshold     = 0.8
	mediumConfidenceThreshold   = 0.5
	defaultEvidenceMissingLabel = "unknown"
)

// Evidence carries optional supporting evidence supplied by a caller.
type Evidence struct {
	// EvidenceType hints at the relationship (e.g. "causative", "association").
	EvidenceType string

	// Sources lists additional evidence source tags.
	Sources []string
}

// VariantPhenotypeLink connects a variant to a phenotype.
type VariantPhenotypeLink struct {
	VariantID            string
	PhenotypeID          string
	RelationshipType     VariantPhenotypeRelationship
	Confidence           float64
	EvidenceSources      []string
	ClinicalSignificance string
	InheritancePattern   string
	Penetrance           string
}

// RelationshipStatistics aggregates the mapper's recorded links.
type RelationshipStatistics struct {
	TotalRelationships     int
	VariantsWithPhenotypes int
	PhenotypesWithVariants int
	RelationshipTypes      map[string]int
	ConfidenceDistribution map[string]int
}

// VariantPhenotypeMapper maps variants to phenotypes driven by clinical
// significance. Not safe for concurrent use; the mapping stage is the single
// writer.
type VariantPhenotypeMapper struct {
	links               []VariantPhenotypeLink
	variantToPhenotypes map[string][]int
	phenotypeToVariants map[string][]int
}

// NewVariantPhenotypeMapper creates an empty variant/phenotype mapper.
func NewVariantPhenotypeMapper() *VariantPhenotypeMapper {
	return &VariantPhenotypeMapper{
		variantToPhenotypes: make(map[string][]int),
		phenotypeToVariants: make(map[string][]int),
	}
}

// Map determines the relationship between a variant and a phenotype and
// records a link when one exists. Returns nil when no relationship can be
// established.
func (m *VariantPhenotypeMapper) Map(
	variant normalize.Variant,
	phenotype normalize.Phenotype,
	evidence *Evidence,
) *VariantPhenotypeLink {
	relationship := classifyRelationship(variant, phenotype, evidence)
	if relationship == "" {
		return nil
	}

	link := VariantPhenotypeLink{
		VariantID:            variant.PrimaryID,
		PhenotypeID:          phenotype.PrimaryID,
		RelationshipType:     relationship,
		Confidence:           linkConfidence(variant, phenotype, evidence),
		EvidenceSources:      collectEvidenceSources(variant, phenotype, evidence),
		ClinicalSignificance: variant.ClinicalSignificance,
	}

	index := len(m.links)
	m.links = append(m.links, link)
	m.variantToPhenotypes[link.VariantID] = append(m.variantToPhenotypes[link.VariantID], index)
	m.phenotypeToVariants[link.PhenotypeID] = append(m.phenotypeToVariants[link.PhenotypeID], index)

	return &m.links[index]
}

// PhenotypesForVariant returns all links recorded for a variant.
func (m *VariantPhenotypeMapper) PhenotypesForVariant(variantID string) []VariantPhenotypeLink {
	return m.collect(m.variantToPhenotypes[variantID])
}

// VariantsForPhenotype returns all links recorded for a phenotype.
func (m *VariantPhenotypeMapper) VariantsForPhenotype(phenotypeID string) []VariantPhenotypeLink {
	return m.collect(m.phenotypeToVariants[phenotypeID])
}

// PathogenicVariantsForPhenotype returns causative and associated links for a
// phenotype.
func (m *VariantPhenotypeMapper) PathogenicVariantsForPhenotype(phenotypeID string) []VariantPhenotypeLink {
	var pathogenic []VariantPhenotypeLink

	for _, link := range m.VariantsForPhenotype(phenotypeID) {
		if link.RelationshipType == RelationshipCausative || link.RelationshipType == RelationshipAssociated {
			pathogenic = append(pathogenic, link)
		}
	}

	return pathogenic
}

// Links returns a copy of every recorded link.
func (m *VariantPhenotypeMapper) Links() []VariantPhenotypeLink {
	return append([]VariantPhenotypeLink(nil), m.links...)
}

// Statistics aggregates recorded links by type and confidence band.
func (m *VariantPhenotypeMapper) Statistics() RelationshipStatistics {
	stats := RelationshipStatistics{
		TotalRelationships:     len(m.links),
		VariantsWithPhenotypes: len(m.variantToPhenotypes),
		PhenotypesWithVariants: len(m.phenotypeToVariants),
		RelationshipTypes:      make(map[string]int),
		ConfidenceDistribution: map[string]int{"high": 0, "medium": 0, "low": 0},
	}

	for _, link := range m.links {
		stats.RelationshipTypes[string(link.RelationshipType)]++

		switch {
		case link.Confidence >= highConfidenceThreshold:
			stats.ConfidenceDistribution["high"]++
		case link.Confidence >= mediumConfidenceThreshold:
			stats.ConfidenceDistribution["medium"]++
		default:
			stats.ConfidenceDistribution["low"]++
		}
	}

	return stats
}

// ValidateMapping checks a link for structural validity.
func (m *VariantPhenotypeMapper) ValidateMapping(link VariantPhenotypeLink) []string {
	var issues []string

	if link.VariantID == "" {
		issues = append(issues, "Missing variant ID")
	}

	if link.PhenotypeID == "" {
		issues = append(issues, "Missing phenotype ID")
	}

	if link.Confidence < 0 || link.Confidence > 1 {
		issues = append(issues, "Invalid confidence score")
	}

	if len(link.EvidenceSources) == 0 {
		issues = append(issues, "No evidence sources provided")
	}

	return issues
}

// ExportMappings serializes all links grouped by variant id as JSON.
func (m *VariantPhenotypeMapper) ExportMappings() ([]byte, error) {
	grouped := make(map[string][]VariantPhenotypeLink, len(m.variantToPhenotypes))
	for variantID, indices := range m.variantToPhenotypes {
		grouped[variantID] = m.collect(indices)
	}

	return json.MarshalIndent(map[string]any{"variant_to_phenotypes": grouped}, "", "  ")
}

func (m *VariantPhenotypeMapper) collect(indices []int) []VariantPhenotypeLink {
	links := make([]VariantPhenotypeLink, 0, len(indices))
	for _, index := range indices {
		links = append(links, m.links[index])
	}

	return links
}

// classifyRelationship derives the relationship type from the variant's
// clinical significance, then supplied evidence, then a ClinVar/ClinVar
// default.
func classifyRelationship(
	variant normalize.Variant,
	phenotype normalize.Phenotype,
	evidence *Evidence,
) VariantPhenotypeRelationship {
	if significance := strings.ToLower(variant.ClinicalSignificance); significance != "" {
		switch {
		case strings.Contains(significance, "pathogenic"):
			// Covers both "pathogenic" and "likely pathogenic".
			return RelationshipCausative
		case strings.Contains(significance, "benign"):
			return RelationshipProtective
		case strings.Contains(significance, "uncertain"):
			return RelationshipUncertain
		case strings.Contains(significance, "risk"):
			return RelationshipRiskFactor
		}
	}

	if evidence != nil {
		evidenceType := strings.ToLower(evidence.EvidenceType)

		switch {
		case strings.Contains(evidenceType, "causative"), strings.Contains(evidenceType, "pathogenic"):
			return RelationshipCausative
		case strings.Contains(evidenceType, "association"):
			return RelationshipAssociated
		case strings.Contains(evidenceType, "protective"):
			return RelationshipProtective
		case strings.Contains(evidenceType, "modifier"):
			return RelationshipModifier
		}
	}

	if variant.Source == source.NameClinVar && phenotype.Source == source.NameClinVar {
		return RelationshipAssociated
	}

	return ""
}

// linkConfidence applies the additive scoring model, capped at 1.0.
func linkConfidence(variant normalize.Variant, phenotype normalize.Phenotype, evidence *Evidence) float64 {
	confidence := baseLinkConfidence

	if variant.Source == source.NameClinVar && phenotype.Source == source.NameClinVar {
		confidence += bothClinVarBoost
	}

	if significance := strings.ToLower(variant.ClinicalSignificance); significance != "" {
		if strings.Contains(significance, "likely pathogenic") {
			confidence += likelyPathogenicBoost
		} else if strings.Contains(significance, "pathogenic") {
			confidence += pathogenicBoost
		}
	}

	if evidence != nil {
		confidence += additionalEvidenceBoost
	}

	if phenotype.IDType == normalize.PhenotypeIDHPO {
		confidence += hpoTypedPhenotypeBoost
	}

	if confidence > 1.0 {
		return 1.0
	}

	return confidence
}

// collectEvidenceSources de-duplicates the variant, phenotype, and supplied
// evidence source tags preserving first-seen order.
func collectEvidenceSources(variant normalize.Variant, phenotype normalize.Phenotype, evidence *Evidence) []string {
	sources := []string{variant.Source, phenotype.Source}
	if evidence != nil {
		sources = append(sources, evidence.Sources...)
	}

	var unique []string

	seen := make(map[string]bool)

	for _, tag := range sources {
		if tag == "" {
			tag = defaultEvidenceMissingLabel
		}

		if seen[tag] {
			continue
		}

		seen[tag] = true
		unique = append(unique, tag)
	}

	return unique
}
