// Package source provides parsers for upstream biomedical data sources.
package source

import (
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

type (
	// VariantType categorizes a ClinVar variation.
	VariantType string

	// ClinicalSignificance is the asserted clinical interpretation of a variant.
	ClinicalSignificance string
)

const (
	// VariantTypeSNV is a single nucleotide variant.
	VariantTypeSNV VariantType = "single nucleotide variant"

	// VariantTypeDeletion is a deletion.
	VariantTypeDeletion VariantType = "deletion"

	// VariantTypeInsertion is an insertion.
	VariantTypeInsertion VariantType = "insertion"

	// VariantTypeDuplication is a duplication.
	VariantTypeDuplication VariantType = "duplication"

	// VariantTypeIndel is a combined insertion/deletion.
	VariantTypeIndel VariantType = "indel"

	// VariantTypeCopyNumberGain is a copy number gain.
	VariantTypeCopyNumberGain VariantType = "copy number gain"

	// VariantTypeCopyNumberLoss is a copy number loss.
	VariantTypeCopyNumberLoss VariantType = "copy number loss"

	// VariantTypeMicrosatellite is a microsatellite variation.
	VariantTypeMicrosatellite VariantType = "microsatellite"

	// VariantTypeOther covers unrecognized variation types.
	VariantTypeOther VariantType = "other"
)

const (
	// SignificancePathogenic marks disease-causing variants.
	SignificancePathogenic ClinicalSignificance = "Pathogenic"

	// SignificanceLikelyPathogenic marks probably disease-causing variants.
	SignificanceLikelyPathogenic ClinicalSignificance = "Likely pathogenic"

	// SignificanceBenign marks harmless variants.
	SignificanceBenign ClinicalSignificance = "Benign"

	// SignificanceLikelyBenign marks probably harmless variants.
	SignificanceLikelyBenign ClinicalSignificance = "Likely benign"

	// SignificanceUncertain marks variants of uncertain significance.
	SignificanceUncertain ClinicalSignificance = "Uncertain significance"

	// SignificanceConflicting marks conflicting interpretations.
	SignificanceConflicting ClinicalSignificance = "Conflicting interpretations of pathogenicity"

	// SignificanceRiskFactor marks risk-increasing variants.
	SignificanceRiskFactor ClinicalSignificance = "Risk factor"

	// SignificanceProtective marks risk-reducing variants.
	SignificanceProtective ClinicalSignificance = "Protective"

	// SignificanceOther covers unrecognized interpretations.
	SignificanceOther ClinicalSignificance = "Other"

	// SignificanceNotProvided marks variants without an interpretation.
	SignificanceNotProvided ClinicalSignificance = "Not provided"
)

// ClinVarVariant is the typed representation of one ClinVar variation record.
type ClinVarVariant struct {
	ClinVarID            string
	VariantID            string
	VariationName        string
	VariantType          VariantType
	ClinicalSignificance ClinicalSignificance

	// Gene association
	GeneSymbol string
	GeneID     string
	GeneName   string

	// Genomic location (GRCh38 assembly)
	Chromosome      string
	StartPosition   *int
	EndPosition     *int
	ReferenceAllele string
	AlternateAllele string

	// Clinical information
	Phenotypes   []string
	ReviewStatus string
	LastUpdated  string

	// RawXML preserves the original payload for audit.
	RawXML string
}

// ClinVarParser converts raw ClinVar records into ClinVarVariant values.
//
// Raw records carry a "clinvar_id" and the variation XML under "raw_xml".
// Records the parser cannot understand are skipped, never fatal.
type ClinVarParser struct {
	logger *slog.Logger
}

// NewClinVarParser creates a ClinVar parser. A nil logger disables debug output.
func NewClinVarParser(logger *slog.Logger) *ClinVarParser {
	return &ClinVarParser{logger: logger}
}

var clinvarKnownKeys = map[string]bool{
	"clinvar_id": true,
	"raw_xml":    true,
	"source":     true,
}

// Parse converts a single raw ClinVar record. Returns nil when the record is
// missing its identity or the XML payload cannot be decoded.
func (p *ClinVarParser) Parse(record RawRecord) *ClinVarVariant {
	logUnknownKeys(p.logger, NameClinVar, record, clinvarKnownKeys)

	clinvarID := record.Str("clinvar_id")
	rawXML := record.Str("raw_xml")

	if clinvarID == "" || rawXML == "" {
		return nil
	}

	variant := &ClinVarVariant{
		ClinVarID:            clinvarID,
		VariantType:          VariantTypeOther,
		ClinicalSignificance: SignificanceNotProvided,
		RawXML:               rawXML,
	}

	if err := p.extract(rawXML, variant); err != nil {
		if p.logger != nil {
			p.logger.Debug("failed to parse clinvar record", "clinvar_id", clinvarID, "error", err)
		}

		return nil
	}

	return variant
}

// ParseBatch converts multiple raw records, skipping any that fail to parse.
func (p *ClinVarParser) ParseBatch(records []RawRecord) []ClinVarVariant {
	variants := make([]ClinVarVariant, 0, len(records))

	for _, record := range records {
		if variant := p.Parse(record); variant != nil {
			variants = append(variants, *variant)
		}
	}

	return variants
}

// Validate checks a parsed variant for structural completeness.
func (p *ClinVarParser) Validate(variant ClinVarVariant) []string {
	var issues []string

	if variant.ClinVarID == "" {
		issues = append(issues, "Missing ClinVar ID")
	}

	if variant.VariantID == "" {
		issues = append(issues, "Missing variant ID")
	}

	if variant.GeneSymbol == "" {
		issues = append(issues, "Missing gene symbol")
	}

	return issues
}

// extract walks the variation XML and fills the typed record. The decoder
// matches elements by local name at any depth because ClinVar wraps the
// interesting elements at varying levels depending on the release.
func (p *ClinVarParser) extract(rawXML string, variant *ClinVarVariant) error {
	decoder := xml.NewDecoder(strings.NewReader(rawXML))

	var (
		path           []string
		locationDone   bool
		inSignificance bool
		preferredTrait bool
		currentText    strings.Builder
		captureText    bool
	)

	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return err
		}

		switch element := token.(type) {
		case xml.StartElement:
			path = append(path, element.Name.Local)

			switch element.Name.Local {
			case "VariationArchive":
				variant.VariantID = xmlAttr(element, "VariationID")
				variant.VariationName = xmlAttr(element, "VariationName")
				variant.VariantType = parseVariantType(xmlAttr(element, "VariationType"))
				variant.LastUpdated = xmlAttr(element, "DateLastUpdated")
			case "Gene":
				if variant.GeneSymbol == "" {
					variant.GeneSymbol = xmlAttr(element, "Symbol")
					variant.GeneID = xmlAttr(element, "GeneID")
					variant.GeneName = xmlAttr(element, "FullName")
				}
			case "SequenceLocation":
				if !locationDone && xmlAttr(element, "Assembly") == "GRCh38" {
					variant.Chromosome = xmlAttr(element, "Chr")
					variant.StartPosition = xmlAttrInt(element, "start")
					variant.EndPosition = xmlAttrInt(element, "stop")
					variant.ReferenceAllele = xmlAttr(element, "referenceAlleleVCF")
					variant.AlternateAllele = xmlAttr(element, "alternateAlleleVCF")
					locationDone = true
				}
			case "ClinicalSignificance":
				inSignificance = true
			case "Description", "ReviewStatus":
				if inSignificance {
					captureText = true
					currentText.Reset()
				}
			case "ElementValue":
				if pathContains(path, "Trait") && xmlAttr(element, "Type") == "Preferred" {
					preferredTrait = true
					captureText = true
					currentText.Reset()
				}
			}

		case xml.CharData:
			if captureText {
				currentText.Write(element)
			}

		case xml.EndElement:
			switch element.Name.Local {
			case "ClinicalSignificance":
				inSignificance = false
			case "Description":
				if captureText && inSignificance {
					variant.ClinicalSignificance = parseClinicalSignificance(strings.TrimSpace(currentText.String()))
				}

				captureText = false
			case "ReviewStatus":
				if captureText && inSignificance {
					variant.ReviewStatus = strings.TrimSpace(currentText.String())
				}

				captureText = false
			case "ElementValue":
				if preferredTrait {
					if name := strings.TrimSpace(currentText.String()); name != "" {
						variant.Phenotypes = append(variant.Phenotypes, name)
					}

					preferredTrait = false
				}

				captureText = false
			}

			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		}
	}

	return nil
}

func parseVariantType(value string) VariantType {
	if value == "" {
		return VariantTypeOther
	}

	normalized := strings.ToLower(strings.ReplaceAll(value, "_", " "))

	for _, variantType := range []VariantType{
		VariantTypeSNV,
		VariantTypeDeletion,
		VariantTypeInsertion,
		VariantTypeDuplication,
		VariantTypeIndel,
		VariantTypeCopyNumberGain,
		VariantTypeCopyNumberLoss,
		VariantTypeMicrosatellite,
	} {
		if string(variantType) == normalized {
			return variantType
		}
	}

	return VariantTypeOther
}

func parseClinicalSignificance(value string) ClinicalSignificance {
	if value == "" {
		return SignificanceNotProvided
	}

	normalized := strings.ToLower(strings.TrimSpace(value))

	for _, significance := range []ClinicalSignificance{
		SignificancePathogenic,
		SignificanceLikelyPathogenic,
		SignificanceBenign,
		SignificanceLikelyBenign,
		SignificanceUncertain,
		SignificanceConflicting,
		SignificanceRiskFactor,
		SignificanceProtective,
		SignificanceNotProvided,
	} {
		if strings.ToLower(string(significance)) == normalized {
			return significance
		}
	}

	return SignificanceOther
}

func xmlAttr(element xml.StartElement, name string) string {
	for _, attr := range element.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}

	return ""
}

func xmlAttrInt(element xml.StartElement, name string) *int {
	value := xmlAttr(element, name)
	if value == "" {
		return nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}

	return &parsed
}

func pathContains(path []string, name string) bool {
	for _, element := range path {
		if element == name {
			return true
		}
	}

	return false
}
