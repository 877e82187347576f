// Package normalize converts parsed source records into canonical entities.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/biolink-io/harvester/internal/source"
)

// VariantIDType identifies the namespace of a variant's primary identifier.
type VariantIDType string

const (
	// VariantIDHGVSc is a coding-DNA HGVS notation.
	VariantIDHGVSc VariantIDType = "hgvs_c"

	// VariantIDHGVSp is a protein HGVS notation.
	VariantIDHGVSp VariantIDType = "hgvs_p"

	// VariantIDHGVSg is a genomic HGVS notation.
	VariantIDHGVSg VariantIDType = "hgvs_g"

	// VariantIDClinVarVCV is a ClinVar VCV accession.
	VariantIDClinVarVCV VariantIDType = "clinvar_vcv"

	// VariantIDDbSNP is a dbSNP rs identifier.
	VariantIDDbSNP VariantIDType = "dbsnp_rs"

	// VariantIDOther covers unrecognized identifier layouts.
	VariantIDOther VariantIDType = "other"
)

var (
	hgvsCodingPattern  = regexp.MustCompile(`^c\.\d+.*$`)
	hgvsProteinPattern = regexp.MustCompile(`^p\.\w+\d+\w+$`)
	hgvsGenomicPattern = regexp.MustCompile(`^g\.\d+.*$`)
	clinvarVCVPattern  = regexp.MustCompile(`^VCV\d+$`)
	dbsnpPattern       = regexp.MustCompile(`^rs\d+$`)
	chromosomePattern  = regexp.MustCompile(`(?i)^(chr)?[0-9XYM]+$`)

	// bareProteinShape and bareGenomicShape recognize unprefixed notations
	// so they can receive an inferred HGVS prefix.
	bareProteinShape = regexp.MustCompile(`^\w+\d+\w+$`)
	bareGenomicShape = regexp.MustCompile(`^\d+`)
)

// GenomicLocation is a normalized genomic coordinate.
type GenomicLocation struct {
	Chromosome      string
	Position        *int
	ReferenceAllele string
	AlternateAllele string
	Assembly        string
}

// Variant is a canonical variant entity.
type Variant struct {
	PrimaryID            string
	IDType               VariantIDType
	GenomicLocation      *GenomicLocation
	HGVSNotations        map[string]string
	ClinicalSignificance string
	GeneSymbol           string
	CrossRefs            map[string][]string
	Source               string
	Confidence           float64
}

// VariantNormalizer standardizes variant identifiers and coordinates.
//
// The cache is keyed by primary id and scoped to one pipeline invocation.
type VariantNormalizer struct {
	cache map[string]*Variant
}

// NewVariantNormalizer creates a variant normalizer with an empty cache.
func NewVariantNormalizer() *VariantNormalizer {
	return &VariantNormalizer{cache: make(map[string]*Variant)}
}

// FromClinVar builds a canonical variant from a parsed ClinVar record.
// Returns nil when the record carries no usable identifier.
func (n *VariantNormalizer) FromClinVar(variant source.ClinVarVariant) *Variant {
	primaryID, idType := variantIdentity(
		variant.ClinVarID,
		variant.VariantID,
		variant.Chromosome,
		variant.StartPosition,
		variant.ReferenceAllele,
		variant.AlternateAllele,
	)
	if primaryID == "" {
		return nil
	}

	location := locationFromClinVar(variant)

	hgvs := map[string]string{}
	if variant.VariationName != "" {
		switch {
		case hgvsCodingPattern.MatchString(variant.VariationName):
			hgvs["c"] = variant.VariationName
		case hgvsProteinPattern.MatchString(variant.VariationName):
			hgvs["p"] = variant.VariationName
		case hgvsGenomicPattern.MatchString(variant.VariationName):
			hgvs["g"] = variant.VariationName
		}
	}

	crossRefs := map[string][]string{}
	if variant.VariantID != "" {
		crossRefs["CLINVAR"] = []string{variant.VariantID}
	}

	if variant.VariationName != "" {
		crossRefs["VARIATION_NAME"] = []string{variant.VariationName}
	}

	normalized := &Variant{
		PrimaryID:            primaryID,
		IDType:               idType,
		GenomicLocation:      location,
		HGVSNotations:        hgvs,
		ClinicalSignificance: string(variant.ClinicalSignificance),
		GeneSymbol:           variant.GeneSymbol,
		CrossRefs:            crossRefs,
		Source:               source.NameClinVar,
		Confidence:           0.9,
	}

	n.cache[normalized.PrimaryID] = normalized

	return normalized
}

// FromRecord builds a canonical variant from a schema-loose record.
// Returns nil when the record has no identifier.
func (n *VariantNormalizer) FromRecord(record source.RawRecord, src string) *Variant {
	variantID := record.Str("id")
	if variantID == "" {
		variantID = record.Str("variant_id")
	}

	if variantID == "" {
		variantID = record.Str("identifier")
	}

	if variantID == "" {
		return nil
	}

	hgvs := map[string]string{}

	for key, notation := range map[string]string{
		"c": firstOf(record, "hgvs_c", "c_notation"),
		"p": firstOf(record, "hgvs_p", "p_notation"),
		"g": firstOf(record, "hgvs_g", "g_notation"),
	} {
		if notation != "" {
			hgvs[key] = notation
		}
	}

	variant := &Variant{
		PrimaryID:            variantID,
		IDType:               identifyVariantType(variantID),
		GenomicLocation:      locationFromRecord(record),
		HGVSNotations:        hgvs,
		ClinicalSignificance: record.Str("clinical_significance"),
		GeneSymbol:           record.Str("gene_symbol"),
		CrossRefs:            map[string][]string{},
		Source:               src,
		Confidence:           0.6,
	}

	n.cache[variant.PrimaryID] = variant

	return variant
}

// StandardizeHGVS trims a notation and adds an inferred prefix to unprefixed
// strings that match protein or genomic shapes.
func (n *VariantNormalizer) StandardizeHGVS(notation string) string {
	standardized := strings.TrimSpace(notation)
	if standardized == "" {
		return standardized
	}

	for _, prefix := range []string{"c.", "p.", "g.", "m.", "n.", "r."} {
		if strings.HasPrefix(standardized, prefix) {
			return standardized
		}
	}

	switch {
	case strings.Contains(standardized, "p.") || bareProteinShape.MatchString(standardized):
		return "p." + standardized
	case bareGenomicShape.MatchString(standardized):
		return "g." + standardized
	}

	return standardized
}

// Merge combines multiple records for the same variant into one.
func (n *VariantNormalizer) Merge(variants []Variant) (Variant, error) {
	if len(variants) == 0 {
		return Variant{}, ErrNothingToMerge
	}

	if len(variants) == 1 {
		return variants[0], nil
	}

	base := variants[0]
	for _, variant := range variants[1:] {
		if variant.Confidence > base.Confidence {
			base = variant
		}
	}

	refSets := make([]map[string][]string, 0, len(variants))
	for _, variant := range variants {
		refSets = append(refSets, variant.CrossRefs)
	}

	mergedHGVS := map[string]string{}
	for _, variant := range variants {
		for key, notation := range variant.HGVSNotations {
			mergedHGVS[key] = notation
		}
	}

	merged := base
	merged.CrossRefs = mergeCrossRefs(refSets)
	merged.HGVSNotations = mergedHGVS
	merged.Source = SourceMerged
	merged.Confidence = capConfidence(base.Confidence + mergeConfidenceBoost)

	return merged, nil
}

// Validate checks a canonical variant for structural validity.
func (n *VariantNormalizer) Validate(variant Variant) []string {
	var issues []string

	if variant.PrimaryID == "" {
		issues = append(issues, "Missing primary ID")
	}

	if variant.Confidence < 0 || variant.Confidence > 1 {
		issues = append(issues, "Confidence score out of range [0,1]")
	}

	if location := variant.GenomicLocation; location != nil {
		if location.Chromosome == "" {
			issues = append(issues, "Genomic location missing chromosome")
		} else if !chromosomePattern.MatchString(location.Chromosome) {
			issues = append(issues, "Invalid chromosome format")
		}
	}

	for notationType, notation := range variant.HGVSNotations {
		var pattern *regexp.Regexp

		switch notationType {
		case "c":
			pattern = hgvsCodingPattern
		case "p":
			pattern = hgvsProteinPattern
		case "g":
			pattern = hgvsGenomicPattern
		default:
			continue
		}

		if !pattern.MatchString(notation) {
			issues = append(issues, fmt.Sprintf("Invalid HGVS %s notation: %s", notationType, notation))
		}
	}

	return issues
}

// ByID returns a cached variant by primary id.
func (n *VariantNormalizer) ByID(variantID string) (*Variant, bool) {
	variant, ok := n.cache[variantID]

	return variant, ok
}

// variantIdentity resolves the primary id chain: ClinVar accession, then the
// numeric variation id, then a synthesized coordinate identity.
func variantIdentity(clinvarID, variantID, chromosome string, position *int, ref, alt string) (string, VariantIDType) {
	if clinvarID != "" {
		return clinvarID, VariantIDClinVarVCV
	}

	if variantID != "" {
		return variantID, VariantIDOther
	}

	if chromosome != "" && position != nil && ref != "" && alt != "" {
		return fmt.Sprintf("%s:%d:%s>%s", chromosome, *position, ref, alt), VariantIDOther
	}

	return "", VariantIDOther
}

func identifyVariantType(variantID string) VariantIDType {
	switch {
	case clinvarVCVPattern.MatchString(variantID):
		return VariantIDClinVarVCV
	case dbsnpPattern.MatchString(variantID):
		return VariantIDDbSNP
	case hgvsCodingPattern.MatchString(variantID):
		return VariantIDHGVSc
	case hgvsProteinPattern.MatchString(variantID):
		return VariantIDHGVSp
	case hgvsGenomicPattern.MatchString(variantID):
		return VariantIDHGVSg
	default:
		return VariantIDOther
	}
}

func locationFromClinVar(variant source.ClinVarVariant) *GenomicLocation {
	if variant.Chromosome == "" {
		return nil
	}

	return &GenomicLocation{
		Chromosome:      variant.Chromosome,
		Position:        variant.StartPosition,
		ReferenceAllele: variant.ReferenceAllele,
		AlternateAllele: variant.AlternateAllele,
		Assembly:        "GRCh38",
	}
}

func locationFromRecord(record source.RawRecord) *GenomicLocation {
	chromosome := record.Str("chromosome")
	if chromosome == "" {
		return nil
	}

	location := &GenomicLocation{
		Chromosome:      chromosome,
		ReferenceAllele: record.Str("reference_allele"),
		AlternateAllele: record.Str("alternate_allele"),
		Assembly:        "GRCh38",
	}

	if assembly := record.Str("assembly"); assembly != "" {
		location.Assembly = assembly
	}

	if position, ok := record.Int("start_position"); ok {
		location.Position = &position
	} else if position, ok := record.Int("position"); ok {
		location.Position = &position
	}

	return location
}

func firstOf(record source.RawRecord, keys ...string) string {
	for _, key := range keys {
		if value := record.Str(key); value != "" {
			return value
		}
	}

	return ""
}
