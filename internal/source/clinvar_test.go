package source

import (
	"testing"
)

const sampleClinVarXML = `<ClinVarResult>
  <VariationArchive VariationID="12345" VariationName="NM_000059.4(BRCA2):c.1310_1313del (p.Lys437fs)" VariationType="Deletion" DateLastUpdated="2025-01-15">
    <Gene Symbol="BRCA2" GeneID="675" FullName="BRCA2 DNA repair associated"/>
    <SequenceLocation Assembly="GRCh37" Chr="13" start="31800000" stop="31800004"/>
    <SequenceLocation Assembly="GRCh38" Chr="13" start="32316527" stop="32316531" referenceAlleleVCF="GACTT" alternateAlleleVCF="G"/>
    <ClinicalSignificance>
      <Description>Pathogenic</Description>
      <ReviewStatus>criteria provided, multiple submitters, no conflicts</ReviewStatus>
    </ClinicalSignificance>
    <TraitSet>
      <Trait>
        <Name><ElementValue Type="Preferred">Hereditary breast ovarian cancer syndrome</ElementValue></Name>
        <Name><ElementValue Type="Alternate">HBOC</ElementValue></Name>
      </Trait>
    </TraitSet>
  </VariationArchive>
</ClinVarResult>`

func TestClinVarParser_Parse(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewClinVarParser(nil)

	variant := parser.Parse(RawRecord{
		"clinvar_id": "VCV000012345",
		"raw_xml":    sampleClinVarXML,
	})
	if variant == nil {
		t.Fatal("Parse() returned nil for valid record")
	}

	if variant.ClinVarID != "VCV000012345" {
		t.Errorf("ClinVarID = %q", variant.ClinVarID)
	}

	if variant.VariantID != "12345" {
		t.Errorf("VariantID = %q, want 12345", variant.VariantID)
	}

	if variant.VariantType != VariantTypeDeletion {
		t.Errorf("VariantType = %q, want deletion", variant.VariantType)
	}

	if variant.GeneSymbol != "BRCA2" || variant.GeneID != "675" {
		t.Errorf("gene = %q/%q", variant.GeneSymbol, variant.GeneID)
	}

	// GRCh38 location wins over GRCh37.
	if variant.Chromosome != "13" {
		t.Errorf("Chromosome = %q", variant.Chromosome)
	}

	if variant.StartPosition == nil || *variant.StartPosition != 32316527 {
		t.Errorf("StartPosition = %v, want 32316527", variant.StartPosition)
	}

	if variant.ReferenceAllele != "GACTT" || variant.AlternateAllele != "G" {
		t.Errorf("alleles = %q>%q", variant.ReferenceAllele, variant.AlternateAllele)
	}

	if variant.ClinicalSignificance != SignificancePathogenic {
		t.Errorf("ClinicalSignificance = %q", variant.ClinicalSignificance)
	}

	if variant.ReviewStatus != "criteria provided, multiple submitters, no conflicts" {
		t.Errorf("ReviewStatus = %q", variant.ReviewStatus)
	}

	// Only the preferred trait name is a phenotype.
	if len(variant.Phenotypes) != 1 || variant.Phenotypes[0] != "Hereditary breast ovarian cancer syndrome" {
		t.Errorf("Phenotypes = %v", variant.Phenotypes)
	}
}

func TestClinVarParser_ParseMissingFields(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewClinVarParser(nil)

	tests := []struct {
		name   string
		record RawRecord
	}{
		{"missing clinvar_id", RawRecord{"raw_xml": sampleClinVarXML}},
		{"missing raw_xml", RawRecord{"clinvar_id": "VCV1"}},
		{"malformed xml", RawRecord{"clinvar_id": "VCV1", "raw_xml": "<unclosed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if variant := parser.Parse(tt.record); variant != nil {
				t.Errorf("Parse() = %+v, want nil", variant)
			}
		})
	}
}

func TestClinVarParser_ParseBatchSkipsBadRecords(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewClinVarParser(nil)

	variants := parser.ParseBatch([]RawRecord{
		{"clinvar_id": "VCV000012345", "raw_xml": sampleClinVarXML},
		{"clinvar_id": "VCV000099999"},
	})

	if len(variants) != 1 {
		t.Fatalf("ParseBatch() returned %d variants, want 1", len(variants))
	}
}

func TestClinVarParser_Validate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewClinVarParser(nil)

	complete := ClinVarVariant{ClinVarID: "VCV1", VariantID: "1", GeneSymbol: "BRCA2"}
	if issues := parser.Validate(complete); len(issues) != 0 {
		t.Errorf("Validate(complete) = %v", issues)
	}

	empty := ClinVarVariant{}
	issues := parser.Validate(empty)

	if len(issues) != 3 {
		t.Errorf("Validate(empty) = %v, want 3 issues", issues)
	}
}

func TestParseClinicalSignificance(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		input    string
		expected ClinicalSignificance
	}{
		{"Pathogenic", SignificancePathogenic},
		{"pathogenic", SignificancePathogenic},
		{"Likely benign", SignificanceLikelyBenign},
		{"Uncertain significance", SignificanceUncertain},
		{"", SignificanceNotProvided},
		{"something new", SignificanceOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseClinicalSignificance(tt.input); got != tt.expected {
				t.Errorf("parseClinicalSignificance(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseVariantType(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		input    string
		expected VariantType
	}{
		{"single_nucleotide_variant", VariantTypeSNV},
		{"Deletion", VariantTypeDeletion},
		{"copy number gain", VariantTypeCopyNumberGain},
		{"", VariantTypeOther},
		{"inversion", VariantTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseVariantType(tt.input); got != tt.expected {
				t.Errorf("parseVariantType(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
