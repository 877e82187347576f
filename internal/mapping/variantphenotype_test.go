package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolink-io/harvester/internal/normalize"
)

func clinvarVariant(id, significance string) normalize.Variant {
	return normalize.Variant{
		PrimaryID:            id,
		Source:               "clinvar",
		ClinicalSignificance: significance,
	}
}

func hpoPhenotype(id string) normalize.Phenotype {
	return normalize.Phenotype{
		PrimaryID: id,
		IDType:    normalize.PhenotypeIDHPO,
		Name:      "Phenotype " + id,
		Source:    "clinvar",
	}
}

func TestVariantPhenotypeMapper_CausativeConsensus(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewVariantPhenotypeMapper()

	link := mapper.Map(clinvarVariant("V", "Pathogenic"), hpoPhenotype("HP:0001249"), nil)
	require.NotNil(t, link)

	assert.Equal(t, RelationshipCausative, link.RelationshipType)

	// 0.3 base + 0.4 both clinvar + 0.2 pathogenic + 0.1 HPO-typed = 1.0.
	assert.InDelta(t, 1.0, link.Confidence, 1e-9)
	assert.Equal(t, "Pathogenic", link.ClinicalSignificance)
	assert.Equal(t, []string{"clinvar"}, link.EvidenceSources)
}

func TestVariantPhenotypeMapper_RelationshipClassification(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewVariantPhenotypeMapper()

	tests := []struct {
		significance string
		expected     VariantPhenotypeRelationship
	}{
		{"Pathogenic", RelationshipCausative},
		{"Likely pathogenic", RelationshipCausative},
		{"Benign", RelationshipProtective},
		{"Likely benign", RelationshipProtective},
		{"Uncertain significance", RelationshipUncertain},
		{"Risk factor", RelationshipRiskFactor},
	}

	for _, tt := range tests {
		t.Run(tt.significance, func(t *testing.T) {
			link := mapper.Map(clinvarVariant("V-"+tt.significance, tt.significance), hpoPhenotype("HP:1"), nil)
			require.NotNil(t, link)
			assert.Equal(t, tt.expected, link.RelationshipType)
		})
	}
}

func TestVariantPhenotypeMapper_ClinVarDefaultAssociation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewVariantPhenotypeMapper()

	// No significance, both sources clinvar: defaults to associated.
	link := mapper.Map(clinvarVariant("V", ""), hpoPhenotype("HP:1"), nil)
	require.NotNil(t, link)
	assert.Equal(t, RelationshipAssociated, link.RelationshipType)

	// No significance and mixed sources: no link.
	mixed := normalize.Phenotype{PrimaryID: "HP:2", Source: "hpo"}
	assert.Nil(t, mapper.Map(clinvarVariant("V2", ""), mixed, nil))
}

func TestVariantPhenotypeMapper_EvidenceClassification(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewVariantPhenotypeMapper()
	phenotype := normalize.Phenotype{PrimaryID: "HP:3", Source: "hpo"}

	link := mapper.Map(
		normalize.Variant{PrimaryID: "V", Source: "gwas"},
		phenotype,
		&Evidence{EvidenceType: "association study", Sources: []string{"gwas-catalog"}},
	)
	require.NotNil(t, link)

	assert.Equal(t, RelationshipAssociated, link.RelationshipType)
	assert.Equal(t, []string{"gwas", "hpo", "gwas-catalog"}, link.EvidenceSources)

	// 0.3 base + 0.1 evidence = 0.4 (phenotype not HPO-typed here).
	assert.InDelta(t, 0.4, link.Confidence, 1e-9)
}

func TestVariantPhenotypeMapper_LikelyPathogenicConfidence(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewVariantPhenotypeMapper()

	phenotype := normalize.Phenotype{PrimaryID: "P", Source: "clinvar"}
	link := mapper.Map(clinvarVariant("V", "Likely pathogenic"), phenotype, nil)
	require.NotNil(t, link)

	// 0.3 base + 0.4 both clinvar + 0.1 likely pathogenic = 0.8.
	assert.InDelta(t, 0.8, link.Confidence, 1e-9)
}

func TestVariantPhenotypeMapper_LookupsAndStatistics(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewVariantPhenotypeMapper()

	require.NotNil(t, mapper.Map(clinvarVariant("V1", "Pathogenic"), hpoPhenotype("HP:1"), nil))
	require.NotNil(t, mapper.Map(clinvarVariant("V1", "Benign"), hpoPhenotype("HP:2"), nil))
	require.NotNil(t, mapper.Map(clinvarVariant("V2", ""), hpoPhenotype("HP:1"), nil))

	assert.Len(t, mapper.PhenotypesForVariant("V1"), 2)
	assert.Len(t, mapper.VariantsForPhenotype("HP:1"), 2)

	pathogenic := mapper.PathogenicVariantsForPhenotype("HP:1")
	assert.Len(t, pathogenic, 2, "causative and associated links both count")

	stats := mapper.Statistics()
	assert.Equal(t, 3, stats.TotalRelationships)
	assert.Equal(t, 2, stats.VariantsWithPhenotypes)
	assert.Equal(t, 2, stats.PhenotypesWithVariants)
	assert.Equal(t, 1, stats.RelationshipTypes["causative"])
	assert.Equal(t, 1, stats.RelationshipTypes["protective"])
	assert.Equal(t, 1, stats.RelationshipTypes["associated"])
}

func TestVariantPhenotypeMapper_ValidateMapping(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewVariantPhenotypeMapper()

	valid := VariantPhenotypeLink{
		VariantID:       "V",
		PhenotypeID:     "P",
		Confidence:      0.5,
		EvidenceSources: []string{"clinvar"},
	}
	assert.Empty(t, mapper.ValidateMapping(valid))

	invalid := VariantPhenotypeLink{Confidence: -1}
	assert.Len(t, mapper.ValidateMapping(invalid), 4)
}

func TestCrossReferenceMapper(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	mapper := NewCrossReferenceMapper()

	mapper.AddReference("MED13", "VCV1")
	mapper.AddReference("MED13", "VCV2")
	mapper.AddReference("MED13", "VCV1") // duplicate, ignored
	mapper.AddReference("VCV1", "HP:0001249")

	network := mapper.Network("MED13")
	assert.Equal(t, map[string][]string{"MED13": {"VCV1", "VCV2"}}, network)

	assert.True(t, mapper.HasReferences("VCV1"))
	assert.False(t, mapper.HasReferences("HP:0001249"))

	empty := mapper.Network("UNKNOWN")
	assert.Equal(t, map[string][]string{"UNKNOWN": {}}, empty)
}
