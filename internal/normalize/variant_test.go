package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolink-io/harvester/internal/source"
)

func intPtr(v int) *int { return &v }

func TestVariantNormalizer_FromClinVar(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewVariantNormalizer()

	variant := normalizer.FromClinVar(source.ClinVarVariant{
		ClinVarID:            "VCV000012345",
		VariantID:            "12345",
		VariationName:        "c.100A>G",
		ClinicalSignificance: source.SignificancePathogenic,
		GeneSymbol:           "MED13",
		Chromosome:           "17",
		StartPosition:        intPtr(61986000),
		ReferenceAllele:      "A",
		AlternateAllele:      "G",
	})
	require.NotNil(t, variant)

	assert.Equal(t, "VCV000012345", variant.PrimaryID)
	assert.Equal(t, VariantIDClinVarVCV, variant.IDType)
	assert.Equal(t, "c.100A>G", variant.HGVSNotations["c"])
	assert.Equal(t, "Pathogenic", variant.ClinicalSignificance)
	assert.Equal(t, "MED13", variant.GeneSymbol)
	require.NotNil(t, variant.GenomicLocation)
	assert.Equal(t, "17", variant.GenomicLocation.Chromosome)
	assert.Equal(t, 61986000, *variant.GenomicLocation.Position)
	assert.Equal(t, "GRCh38", variant.GenomicLocation.Assembly)
	assert.InDelta(t, 0.9, variant.Confidence, 1e-9)
}

func TestVariantNormalizer_PrimaryIDFallbackChain(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewVariantNormalizer()

	// clinvar_id absent -> variant_id.
	byVariantID := normalizer.FromClinVar(source.ClinVarVariant{VariantID: "99"})
	require.NotNil(t, byVariantID)
	assert.Equal(t, "99", byVariantID.PrimaryID)
	assert.Equal(t, VariantIDOther, byVariantID.IDType)

	// Both ids absent -> synthesized coordinate identity.
	synthesized := normalizer.FromClinVar(source.ClinVarVariant{
		Chromosome:      "1",
		StartPosition:   intPtr(1500),
		ReferenceAllele: "A",
		AlternateAllele: "T",
	})
	require.NotNil(t, synthesized)
	assert.Equal(t, "1:1500:A>T", synthesized.PrimaryID)

	// Nothing usable -> nil.
	assert.Nil(t, normalizer.FromClinVar(source.ClinVarVariant{}))
}

func TestVariantNormalizer_StandardizeHGVS(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewVariantNormalizer()

	tests := []struct {
		input    string
		expected string
	}{
		{"c.100A>G", "c.100A>G"},
		{"p.Arg100Gly", "p.Arg100Gly"},
		{"m.8993T>G", "m.8993T>G"},
		{"n.100A>G", "n.100A>G"},
		{"r.100a>g", "r.100a>g"},
		{"Arg100Gly", "p.Arg100Gly"},
		{"12345A>G", "g.12345A>G"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizer.StandardizeHGVS(tt.input))
		})
	}
}

func TestIdentifyVariantType(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		input    string
		expected VariantIDType
	}{
		{"VCV000012345", VariantIDClinVarVCV},
		{"rs334", VariantIDDbSNP},
		{"c.100A>G", VariantIDHGVSc},
		{"p.Arg100Gly", VariantIDHGVSp},
		{"g.32316527del", VariantIDHGVSg},
		{"something", VariantIDOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, identifyVariantType(tt.input))
		})
	}
}

func TestVariantNormalizer_Validate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewVariantNormalizer()

	valid := Variant{
		PrimaryID:       "VCV1",
		GenomicLocation: &GenomicLocation{Chromosome: "chrX", Position: intPtr(100)},
		HGVSNotations:   map[string]string{"c": "c.100A>G"},
		Confidence:      0.9,
	}
	assert.Empty(t, normalizer.Validate(valid))

	badChromosome := Variant{
		PrimaryID:       "VCV1",
		GenomicLocation: &GenomicLocation{Chromosome: "chr99Q"},
		Confidence:      0.9,
	}
	assert.Contains(t, normalizer.Validate(badChromosome), "Invalid chromosome format")

	badHGVS := Variant{
		PrimaryID:     "VCV1",
		HGVSNotations: map[string]string{"p": "not-a-protein-notation!"},
		Confidence:    0.9,
	}
	issues := normalizer.Validate(badHGVS)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "Invalid HGVS p notation")
}

func TestVariantNormalizer_Merge(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewVariantNormalizer()

	a := Variant{
		PrimaryID:     "VCV1",
		HGVSNotations: map[string]string{"c": "c.100A>G"},
		CrossRefs:     map[string][]string{"CLINVAR": {"1"}},
		Confidence:    0.9,
	}
	b := Variant{
		PrimaryID:     "VCV1",
		HGVSNotations: map[string]string{"p": "p.Arg34Gly"},
		CrossRefs:     map[string][]string{"DBSNP": {"rs1"}},
		Confidence:    0.6,
	}

	merged, err := normalizer.Merge([]Variant{a, b})
	require.NoError(t, err)

	assert.Equal(t, SourceMerged, merged.Source)
	assert.InDelta(t, 1.0, merged.Confidence, 1e-9)
	assert.Equal(t, "c.100A>G", merged.HGVSNotations["c"])
	assert.Equal(t, "p.Arg34Gly", merged.HGVSNotations["p"])
	assert.Equal(t, []string{"1"}, merged.CrossRefs["CLINVAR"])
	assert.Equal(t, []string{"rs1"}, merged.CrossRefs["DBSNP"])
}
