package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hpoRecord(id, name string) RawRecord {
	return RawRecord{"hpo_id": id, "name": name}
}

func TestHPOParser_Parse(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewHPOParser(nil)

	term := parser.Parse(RawRecord{
		"hpo_id":     "HP:0001249",
		"name":       "Intellectual disability",
		"definition": "Subnormal intellectual functioning.",
		"synonyms":   []any{"Mental retardation", "Mental deficiency"},
		"xrefs":      []any{"UMLS:C3714756"},
	})
	require.NotNil(t, term)

	assert.Equal(t, "HP:0001249", term.HPOID)
	assert.Equal(t, "Intellectual disability", term.Name)
	assert.Equal(t, "Subnormal intellectual functioning.", term.Definition)
	assert.Len(t, term.Synonyms, 2)
	assert.Equal(t, []string{"UMLS:C3714756"}, term.Xrefs)
	assert.False(t, term.IsObsolete)
}

func TestHPOParser_ParseMissingFields(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewHPOParser(nil)

	assert.Nil(t, parser.Parse(RawRecord{"name": "No identifier"}))
	assert.Nil(t, parser.Parse(RawRecord{"hpo_id": "HP:0000001"}))
}

func TestHPOParser_Validate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewHPOParser(nil)

	valid := HPOTerm{HPOID: "HP:0000118", Name: "Phenotypic abnormality"}
	assert.Empty(t, parser.Validate(valid))

	badID := HPOTerm{HPOID: "XP:123", Name: "Bad prefix"}
	issues := parser.Validate(badID)
	assert.Contains(t, issues, "Invalid HPO ID format (should start with HP:)")

	obsolete := HPOTerm{HPOID: "HP:0000001", Name: "All", IsObsolete: true}
	issues = parser.Validate(obsolete)
	assert.Contains(t, issues, "Term is marked as obsolete")
}

func TestInferTermType(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name     string
		expected HPOTermType
	}{
		{"Abnormality of the nervous system", HPOTypePhenotypicAbnormality},
		{"Clinical course", HPOTypeClinicalCourse},
		{"Clinical modifier", HPOTypeClinicalModifier},
		{"Frequency", HPOTypeFrequency},
		{"Mode of inheritance", HPOTypeModeOfInheritance},
		{"Adult onset", HPOTypeOnset},
		{"Something else", HPOTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, inferTermType(tt.name))
		})
	}
}

func TestHPOParser_BuildHierarchyAndTraversal(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewHPOParser(nil)

	terms := parser.ParseBatch([]RawRecord{
		hpoRecord("HP:0000118", "Phenotypic abnormality"),
		hpoRecord("HP:0000707", "Abnormality of the nervous system"),
		hpoRecord("HP:0001249", "Abnormality of higher mental function"),
		hpoRecord("HP:0000005", "Mode of inheritance"),
	})
	require.Len(t, terms, 4)

	indexed := parser.BuildHierarchy(terms)
	require.Len(t, indexed, 4)

	root := indexed["HP:0000118"]
	require.NotNil(t, root)
	assert.Len(t, root.Children, 2, "both non-root abnormality terms hang off the root")

	child := indexed["HP:0000707"]
	require.Len(t, child.Parents, 1)
	assert.Equal(t, "HP:0000118", child.Parents[0].TermID)

	// Inheritance terms stay outside the abnormality hierarchy.
	assert.Empty(t, indexed["HP:0000005"].Parents)
}

func TestHPOParser_FindRelatedTermsUnknownID(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewHPOParser(nil)
	assert.Empty(t, parser.FindRelatedTerms("HP:9999999", "is_a", 3))
}
