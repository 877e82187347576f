package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUniProtRecord() RawRecord {
	return RawRecord{
		"primaryAccession": "Q9UHV7",
		"uniProtkbId":      "MED13_HUMAN",
		"proteinDescription": map[string]any{
			"recommendedName": map[string]any{
				"fullName": map[string]any{"value": "Mediator of RNA polymerase II transcription subunit 13"},
			},
		},
		"genes": []any{
			map[string]any{
				"geneName": map[string]any{"value": "MED13"},
				"synonyms": []any{
					map[string]any{"value": "HSPC221"},
					map[string]any{"value": "TRAP240"},
				},
			},
		},
		"organism": map[string]any{
			"scientificName": "Homo sapiens",
			"commonName":     "Human",
			"taxonId":        9606,
			"lineage":        []any{"Eukaryota", "Metazoa"},
		},
		"sequence": map[string]any{"length": 2174, "mass": 239256, "version": 2},
		"comments": []any{
			map[string]any{
				"commentType": "FUNCTION",
				"texts": []any{
					map[string]any{"value": "Component of the Mediator complex."},
				},
			},
			map[string]any{
				"commentType": "SUBCELLULAR LOCATION",
				"subcellularLocations": []any{
					map[string]any{"location": map[string]any{"value": "Nucleus"}},
				},
			},
		},
		"features": []any{
			map[string]any{"type": "Chain", "description": "Mediator subunit 13"},
		},
		"references": []any{
			map[string]any{
				"citation": map[string]any{
					"title":           "The human Mediator complex",
					"authors":         []any{"Doe J", "Roe R"},
					"publicationDate": map[string]any{"value": "2005"},
					"citationCrossReferences": []any{
						map[string]any{"database": "PubMed", "id": "15989967"},
						map[string]any{"database": "DOI", "id": "10.1016/j.cell.2005.05.002"},
					},
				},
			},
		},
		"dbReferences": []any{
			map[string]any{"type": "HGNC", "id": "HGNC:22474"},
			map[string]any{"type": "Ensembl", "id": "ENSG00000108510"},
			map[string]any{"type": "Ensembl", "id": "ENST00000397786"},
		},
	}
}

func TestUniProtParser_Parse(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewUniProtParser(nil)

	protein := parser.Parse(sampleUniProtRecord())
	require.NotNil(t, protein)

	assert.Equal(t, "Q9UHV7", protein.PrimaryAccession)
	assert.Equal(t, "MED13_HUMAN", protein.EntryName)
	assert.Equal(t, "Mediator of RNA polymerase II transcription subunit 13", protein.ProteinName)

	require.Len(t, protein.Genes, 1)
	assert.Equal(t, "MED13", protein.Genes[0].Name)
	assert.Equal(t, []string{"HSPC221", "TRAP240"}, protein.Genes[0].Synonyms)

	assert.Equal(t, "Homo sapiens", protein.Organism.ScientificName)
	assert.Equal(t, "9606", protein.Organism.TaxonID)

	assert.Equal(t, 2174, protein.Sequence.Length)
	assert.Equal(t, 239256, protein.Sequence.Mass)

	require.Len(t, protein.Functions, 1)
	assert.Equal(t, "Component of the Mediator complex.", protein.Functions[0].Description)

	assert.Equal(t, []string{"Nucleus"}, protein.SubcellularLocations)

	require.Len(t, protein.Features, 1)
	assert.Equal(t, "Chain", protein.Features[0].Type)

	require.Len(t, protein.References, 1)
	ref := protein.References[0]
	assert.Equal(t, "The human Mediator complex", ref.Title)
	assert.Equal(t, "15989967", ref.PubMedID)
	assert.Equal(t, "10.1016/j.cell.2005.05.002", ref.DOI)
	assert.Equal(t, "2005", ref.PublicationDate)

	assert.Equal(t, []string{"HGNC:22474"}, protein.DatabaseReferences["HGNC"])
	assert.Len(t, protein.DatabaseReferences["Ensembl"], 2)

	assert.Equal(t, []string{"Component of the Mediator complex."}, protein.CommentsByType["FUNCTION"])
}

func TestUniProtParser_ParseMissingAccession(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewUniProtParser(nil)
	assert.Nil(t, parser.Parse(RawRecord{"uniProtkbId": "NO_ACCESSION"}))
}

func TestUniProtParser_ParseDefaults(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewUniProtParser(nil)

	protein := parser.Parse(RawRecord{"primaryAccession": "P00000"})
	require.NotNil(t, protein)

	assert.Equal(t, "P00000", protein.EntryName, "entry name falls back to accession")
	assert.Equal(t, "Unknown Protein", protein.ProteinName)
	assert.Equal(t, "Unknown", protein.Organism.ScientificName)
	assert.Equal(t, 1, protein.Sequence.Version)
}

func TestUniProtParser_ValidateAndCache(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	parser := NewUniProtParser(nil)

	proteins := parser.ParseBatch([]RawRecord{sampleUniProtRecord()})
	require.Len(t, proteins, 1)

	assert.Empty(t, parser.Validate(proteins[0]))

	cached, ok := parser.Protein("Q9UHV7")
	require.True(t, ok)
	assert.Equal(t, "MED13_HUMAN", cached.EntryName)

	invalid := UniProtProtein{}
	issues := parser.Validate(invalid)
	assert.Len(t, issues, 4)
}
