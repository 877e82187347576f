// Package mapping builds cross-references between normalized entities.
//
// Mappers store links in an arena indexed by integer position, with forward
// maps from entity id to link indices. Links never embed entity pointers, so
// the gene/variant/phenotype graphs stay acyclic at the representation level
// even though the domain relationships are bidirectional.
package mapping

import (
	"encoding/json"

	"github.com/biolink-io/harvester/internal/normalize"
)

// Positional classification constants for gene/variant relationships.
const (
	// upstreamPaddingBP extends the gene range upstream of the start.
	upstreamPaddingBP = 2000

	// downstreamPaddingBP extends the gene range downstream of the end.
	downstreamPaddingBP = 500

	// spliceBorderBP is the in-gene distance from either edge that
	// classifies a variant as a splice-site candidate.
	spliceBorderBP = 10
)

// GeneVariantRelationship classifies the position of a variant relative to a gene.
type GeneVariantRelationship string

const (
	// RelationshipWithinGene is reserved for future refinement; the
	// classifier never emits it.
	RelationshipWithinGene GeneVariantRelationship = "within_gene"

	// RelationshipUpstream marks variants within the upstream padding window.
	RelationshipUpstream GeneVariantRelationship = "upstream"

	// RelationshipDownstream marks variants within the downstream padding window.
	RelationshipDownstream GeneVariantRelationship = "downstream"

	// RelationshipSpliceSite marks in-gene variants near either gene edge.
	RelationshipSpliceSite GeneVariantRelationship = "splice_site"

	// RelationshipCoding marks in-gene variants away from the edges.
	RelationshipCoding GeneVariantRelationship = "coding"
)

// GeneVariantLink connects a gene and a variant by position.
type GeneVariantLink struct {
	GeneID           string
	VariantID        string
	RelationshipType GeneVariantRelationship
	Confidence       float64
	EvidenceSources  []string
	GenomicDistance  *int
	FunctionalImpact string
}

// geneCoordinates is a gene's registered genomic range.
type geneCoordinates struct {
	chromosome string
	start      int
	end        int
}

// GeneVariantMapper maps genes to variants using genomic coordinate
// arithmetic. Not safe for concurrent use; the mapping stage is the single
// writer.
type GeneVariantMapper struct {
	coordinates map[string]geneCoordinates

	// links is the arena; the maps below hold indices into it.
	links          []GeneVariantLink
	geneToVariants map[string][]int
	variantToGenes map[string][]int
}

// NewGeneVariantMapper creates an empty gene/variant mapper.
func NewGeneVariantMapper() *GeneVariantMapper {
	return &GeneVariantMapper{
		coordinates:    make(map[string]geneCoordinates),
		geneToVariants: make(map[string][]int),
		variantToGenes: make(map[string][]int),
	}
}

// AddGeneCoordinates registers or updates a gene's genomic range.
func (m *GeneVariantMapper) AddGeneCoordinates(geneID, chromosome string, start, end int) {
	m.coordinates[geneID] = geneCoordinates{chromosome: chromosome, start: start, end: end}
}

// Map classifies the positional relationship between a gene and a variant and
// records a link when one exists. Returns nil when the gene has no registered
// coordinates, the variant has no usable location, or the variant falls
// outside the extended gene range.
func (m *GeneVariantMapper) Map(gene normalize.Gene, variant normalize.Variant) *GeneVariantLink {
	coords, ok := m.coordinates[gene.PrimaryID]
	if !ok || variant.GenomicLocation == nil {
		return nil
	}

	location := variant.GenomicLocation
	if location.Chromosome == "" || location.Position == nil {
		return nil
	}

	if location.Chromosome != coords.chromosome {
		return nil
	}

	relationship := classifyPosition(coords.start, coords.end, *location.Position)
	if relationship == "" {
		return nil
	}

	evidence := variant.Source
	if evidence == "" {
		evidence = "unknown"
	}

	distance := genomicDistance(coords.start, coords.end, *location.Position)
	link := GeneVariantLink{
		GeneID:           gene.PrimaryID,
		VariantID:        variant.PrimaryID,
		RelationshipType: relationship,
		Confidence:       0.8,
		EvidenceSources:  []string{evidence},
		GenomicDistance:  &distance,
	}

	index := len(m.links)
	m.links = append(m.links, link)
	m.geneToVariants[link.GeneID] = append(m.geneToVariants[link.GeneID], index)
	m.variantToGenes[link.VariantID] = append(m.variantToGenes[link.VariantID], index)

	return &m.links[index]
}

// VariantsForGene returns all links recorded for a gene.
func (m *GeneVariantMapper) VariantsForGene(geneID string) []GeneVariantLink {
	return m.collect(m.geneToVariants[geneID])
}

// GenesForVariant returns all links recorded for a variant.
func (m *GeneVariantMapper) GenesForVariant(variantID string) []GeneVariantLink {
	return m.collect(m.variantToGenes[variantID])
}

// Links returns a copy of every recorded link.
func (m *GeneVariantMapper) Links() []GeneVariantLink {
	return append([]GeneVariantLink(nil), m.links...)
}

// ValidateMapping checks a link for structural validity.
func (m *GeneVariantMapper) ValidateMapping(link GeneVariantLink) []string {
	var issues []string

	if link.GeneID == "" {
		issues = append(issues, "Missing gene ID")
	}

	if link.VariantID == "" {
		issues = append(issues, "Missing variant ID")
	}

	if link.Confidence < 0 || link.Confidence > 1 {
		issues = append(issues, "Invalid confidence score")
	}

	if link.GenomicDistance != nil && *link.GenomicDistance < 0 {
		issues = append(issues, "Invalid genomic distance")
	}

	return issues
}

// ExportMappings serializes all links grouped by gene id as JSON.
func (m *GeneVariantMapper) ExportMappings() ([]byte, error) {
	grouped := make(map[string][]GeneVariantLink, len(m.geneToVariants))
	for geneID, indices := range m.geneToVariants {
		grouped[geneID] = m.collect(indices)
	}

	return json.MarshalIndent(grouped, "", "  ")
}

func (m *GeneVariantMapper) collect(indices []int) []GeneVariantLink {
	links := make([]GeneVariantLink, 0, len(indices))
	for _, index := range indices {
		links = append(links, m.links[index])
	}

	return links
}

// classifyPosition implements the extended-range classifier:
//
//	[start, end]                 -> SPLICE_SITE within spliceBorderBP of either
//	                                edge, CODING otherwise
//	[start-2000, start)          -> UPSTREAM
//	(end, end+500]               -> DOWNSTREAM
//	elsewhere                    -> no relationship
func classifyPosition(geneStart, geneEnd, position int) GeneVariantRelationship {
	extendedStart := geneStart - upstreamPaddingBP
	extendedEnd := geneEnd + downstreamPaddingBP

	switch {
	case geneStart <= position && position <= geneEnd:
		if position-geneStart <= spliceBorderBP || geneEnd-position <= spliceBorderBP {
			return RelationshipSpliceSite
		}

		return RelationshipCoding
	case extendedStart <= position && position < geneStart:
		return RelationshipUpstream
	case geneEnd < position && position <= extendedEnd:
		return RelationshipDownstream
	default:
		return ""
	}
}

// genomicDistance is 0 inside the gene, otherwise the distance to the nearer edge.
func genomicDistance(geneStart, geneEnd, position int) int {
	if geneStart <= position && position <= geneEnd {
		return 0
	}

	if position < geneStart {
		return geneStart - position
	}

	return position - geneEnd
}
