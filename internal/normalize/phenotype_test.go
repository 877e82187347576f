package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolink-io/harvester/internal/source"
)

func TestPhenotypeNormalizer_FromHPO(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewPhenotypeNormalizer()

	phenotype := normalizer.FromHPO(source.HPOTerm{
		HPOID:      "HP:0001249",
		Name:       "Intellectual disability",
		Definition: "Subnormal intellectual functioning.",
		Synonyms:   []string{"Mental retardation"},
	})
	require.NotNil(t, phenotype)

	assert.Equal(t, "HP:0001249", phenotype.PrimaryID)
	assert.Equal(t, PhenotypeIDHPO, phenotype.IDType)
	assert.Equal(t, []string{"HP:0001249"}, phenotype.CrossRefs["HPO"])
	assert.Equal(t, "hpo", phenotype.Source)
	assert.InDelta(t, 0.95, phenotype.Confidence, 1e-9)
}

func TestPhenotypeNormalizer_FromHPORejectsBadIDs(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewPhenotypeNormalizer()

	assert.Nil(t, normalizer.FromHPO(source.HPOTerm{HPOID: "HP_0001249", Name: "Bad separator"}))
	assert.Nil(t, normalizer.FromHPO(source.HPOTerm{Name: "No id"}))
	assert.Nil(t, normalizer.FromHPO(source.HPOTerm{HPOID: "HP:0001249"}))
}

func TestPhenotypeNormalizer_FromClinVarName(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewPhenotypeNormalizer()

	phenotype := normalizer.FromClinVarName("Severe intellectual disability")
	require.NotNil(t, phenotype)

	assert.Equal(t, "Severe intellectual disability", phenotype.PrimaryID)
	assert.Equal(t, PhenotypeIDOther, phenotype.IDType)
	assert.Equal(t, []string{"HP:0001249"}, phenotype.CrossRefs["HPO"], "known names pick up HPO hints")
	assert.InDelta(t, 0.7, phenotype.Confidence, 1e-9)

	assert.Nil(t, normalizer.FromClinVarName("   "))
}

func TestPhenotypeNormalizer_NormalizeName(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewPhenotypeNormalizer()

	tests := []struct {
		input    string
		expected string
	}{
		{"intellectual disability", "Intellectual Disability"},
		{"severe ID", "Severe Intellectual Disability"},
		{"ASD with regression", "Autism Spectrum Disorder With Regression"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizer.NormalizeName(tt.input))
		})
	}
}

func TestPhenotypeNormalizer_ByName(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewPhenotypeNormalizer()
	require.NotNil(t, normalizer.FromHPO(source.HPOTerm{HPOID: "HP:0000729", Name: "Autistic behavior"}))

	found, ok := normalizer.ByName("autistic behavior")
	require.True(t, ok)
	assert.Equal(t, "HP:0000729", found.PrimaryID)

	_, ok = normalizer.ByName("unknown phenotype")
	assert.False(t, ok)
}

func TestPhenotypeNormalizer_MergeAndValidate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	normalizer := NewPhenotypeNormalizer()

	hpo := Phenotype{
		PrimaryID:  "HP:0001249",
		IDType:     PhenotypeIDHPO,
		Name:       "Intellectual disability",
		Synonyms:   []string{"Mental retardation"},
		CrossRefs:  map[string][]string{"HPO": {"HP:0001249"}},
		Confidence: 0.95,
	}
	clinvar := Phenotype{
		PrimaryID:  "Intellectual disability",
		IDType:     PhenotypeIDOther,
		Name:       "Intellectual disability",
		Synonyms:   []string{"ID"},
		CrossRefs:  map[string][]string{"HPO": {"HP:0001249"}, "NAME": {"Intellectual disability"}},
		Confidence: 0.7,
	}

	merged, err := normalizer.Merge([]Phenotype{clinvar, hpo})
	require.NoError(t, err)

	assert.Equal(t, "HP:0001249", merged.PrimaryID, "HPO record wins as base")
	assert.Equal(t, SourceMerged, merged.Source)
	assert.InDelta(t, 1.0, merged.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"Mental retardation", "ID"}, merged.Synonyms)
	assert.Equal(t, []string{"HP:0001249"}, merged.CrossRefs["HPO"])

	assert.Empty(t, normalizer.Validate(merged))

	invalid := Phenotype{IDType: PhenotypeIDHPO, Confidence: 2}
	assert.Len(t, normalizer.Validate(invalid), 4)
}

func TestIdentifyPhenotypeType(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		input    string
		expected PhenotypeIDType
	}{
		{"HP:0001249", PhenotypeIDHPO},
		{"607208", PhenotypeIDOMIM},
		{"ORPHA:778", PhenotypeIDOrpha},
		{"MONDO:0007926", PhenotypeIDMondo},
		{"some name", PhenotypeIDOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, identifyPhenotypeType(tt.input))
		})
	}
}
