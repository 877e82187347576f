package rocrate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolink-io/harvester/internal/provenance"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func readMetadata(t *testing.T, cratePath string) map[string]any {
	t.Helper()

	payload, err := os.ReadFile(filepath.Join(cratePath, MetadataFilename))
	require.NoError(t, err)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(payload, &metadata))

	return metadata
}

func TestBuilder_Build(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sourceDir := t.TempDir()
	genesPath := writeTestFile(t, sourceDir, "genes_normalized.json", `[{"primary_id":"MED13"}]`)
	notesPath := writeTestFile(t, sourceDir, "notes.txt", "free text notes")

	crateDir := filepath.Join(t.TempDir(), "crate")
	builder := NewBuilder(crateDir, "Harvest Dataset",
		WithVersion("2.1.0"),
		WithLicense("CC-BY-4.0"),
		WithAuthor("Biolink"),
		WithDescription("test crate"),
	)

	cratePath, err := builder.Build([]DataFile{
		{SourcePath: genesPath},
		{SourcePath: notesPath, Description: "curator notes"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, crateDir, cratePath)

	// Copied files exist under data/.
	_, err = os.Stat(filepath.Join(crateDir, "data", "genes_normalized.json"))
	require.NoError(t, err)

	metadata := readMetadata(t, crateDir)

	context := metadata["@context"].(map[string]any)
	assert.Equal(t, "https://schema.org/", context["@vocab"])
	assert.Equal(t, "https://w3id.org/ro/crate#", context["ro-crate"])

	graph := metadata["@graph"].([]any)
	require.Len(t, graph, 3, "root dataset plus two file entities")

	root := graph[0].(map[string]any)
	assert.Equal(t, "./", root["@id"])
	assert.Equal(t, "Dataset", root["@type"])
	assert.Equal(t, "Harvest Dataset", root["name"])
	assert.Equal(t, "2.1.0", root["version"])

	licenseEntity := root["license"].(map[string]any)
	assert.Equal(t, "https://spdx.org/licenses/CC-BY-4.0.html", licenseEntity["@id"])
	assert.Equal(t, "CreativeWork", licenseEntity["@type"])
	assert.Equal(t, "CC-BY-4.0", licenseEntity["name"])

	creator := root["creator"].(map[string]any)
	assert.Equal(t, "Organization", creator["@type"])
	assert.Equal(t, "Biolink", creator["name"])

	// File entities: @id under data/, inferred encoding formats, checksums.
	jsonEntity := graph[1].(map[string]any)
	assert.Equal(t, "data/genes_normalized.json", jsonEntity["@id"])
	assert.Equal(t, "File", jsonEntity["@type"])
	assert.Equal(t, "application/json", jsonEntity["encodingFormat"])
	assert.Contains(t, jsonEntity["contentChecksum"], "blake2b:")

	textEntity := graph[2].(map[string]any)
	assert.Equal(t, "text/plain", textEntity["encodingFormat"])
	assert.Equal(t, "curator notes", textEntity["description"])
}

func TestBuilder_RoundTripValidates(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sourceDir := t.TempDir()
	dataPath := writeTestFile(t, sourceDir, "variants_normalized.json", `[]`)

	crateDir := filepath.Join(t.TempDir(), "crate")
	builder := NewBuilder(crateDir, "Round Trip")

	_, err := builder.Build([]DataFile{{SourcePath: dataPath}}, nil)
	require.NoError(t, err)

	report := NewValidator(crateDir).Validate()
	assert.True(t, report.Valid)
	assert.Empty(t, report.Warnings)

	// The set of File entities matches the supplied data files by path.
	metadata := readMetadata(t, crateDir)
	graph := metadata["@graph"].([]any)

	var filePaths []string

	for _, raw := range graph {
		entity := raw.(map[string]any)
		if entity["@type"] == "File" {
			filePaths = append(filePaths, entity["@id"].(string))
		}
	}

	assert.Equal(t, []string{"data/variants_normalized.json"}, filePaths)
}

func TestBuilder_ProvenanceAttachment(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	crateDir := filepath.Join(t.TempDir(), "crate")
	builder := NewBuilder(crateDir, "With Provenance")

	records := []provenance.Provenance{provenance.New(provenance.SourceClinVar, "harvester")}
	serialized := provenance.Serialize(records)
	sources := serialized["sources"].([]provenance.DataDownload)

	provenanceSources := make([]map[string]any, 0, len(sources))
	for _, entry := range sources {
		provenanceSources = append(provenanceSources, map[string]any(entry))
	}

	_, err := builder.Build(nil, provenanceSources)
	require.NoError(t, err)

	metadata := readMetadata(t, crateDir)
	graph := metadata["@graph"].([]any)
	root := graph[0].(map[string]any)

	hasPart := root["hasPart"].([]any)
	require.Len(t, hasPart, 1)

	entry := hasPart[0].(map[string]any)
	assert.Equal(t, "DataDownload", entry["@type"])
	assert.Equal(t, "clinvar", entry["name"])
}

func TestValidator_MissingMetadata(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	report := NewValidator(t.TempDir()).Validate()

	assert.False(t, report.Valid)
	assert.Contains(t, report.Metadata.Errors, "Missing "+MetadataFilename)
	assert.Contains(t, report.Warnings, "Data directory does not exist")
}

func TestValidator_MalformedMetadata(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	crateDir := t.TempDir()
	writeTestFile(t, crateDir, MetadataFilename, "{not json")

	report := NewValidator(crateDir).Validate()

	assert.False(t, report.Valid)
	require.Len(t, report.Metadata.Errors, 1)
	assert.Contains(t, report.Metadata.Errors[0], "Invalid JSON in metadata")
}

func TestValidator_MissingGraphKeys(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	crateDir := t.TempDir()
	writeTestFile(t, crateDir, MetadataFilename, `{"name": "no graph"}`)

	report := NewValidator(crateDir).Validate()

	assert.False(t, report.Valid)
	assert.Contains(t, report.Metadata.Errors, "Missing @context in metadata")
	assert.Contains(t, report.Metadata.Errors, "Missing @graph in metadata")
}

func TestValidator_MissingRootDataset(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	crateDir := t.TempDir()
	writeTestFile(t, crateDir, MetadataFilename,
		`{"@context": {}, "@graph": [{"@id": "data/x.json", "@type": "File"}]}`)

	report := NewValidator(crateDir).Validate()

	assert.False(t, report.Valid)
	assert.Contains(t, report.Metadata.Errors, "Missing root dataset entity")
}

func TestValidator_FAIRSummary(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sourceDir := t.TempDir()
	dataPath := writeTestFile(t, sourceDir, "x.json", "{}")

	crateDir := filepath.Join(t.TempDir(), "crate")
	_, err := NewBuilder(crateDir, "FAIR").Build([]DataFile{{SourcePath: dataPath}}, nil)
	require.NoError(t, err)

	fair := NewValidator(crateDir).ValidateFAIR()

	assert.True(t, fair.Findable.Valid)
	assert.True(t, fair.Accessible.Valid)
	assert.True(t, fair.Interoperable.Valid)
	assert.True(t, fair.Reusable.Valid)
}
