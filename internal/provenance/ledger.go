// Package provenance provides immutable per-record lineage tracking.
package provenance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DataDownload is the JSON-LD serialization of a Provenance record.
//
// Each source serializes to a schema.org DataDownload entity which is either
// written standalone (provenance.json) or attached to a package metadata
// graph under the root dataset's hasPart list.
type DataDownload map[string]any

// Serialize converts provenance records to their DataDownload entities,
// wrapped in a {"sources": [...]} document.
func Serialize(records []Provenance) map[string]any {
	sources := make([]DataDownload, 0, len(records))

	for _, prov := range records {
		acquiredAt := prov.AcquiredAt
		if acquiredAt.IsZero() {
			acquiredAt = time.Now().UTC()
		}

		entity := DataDownload{
			"@type":         "DataDownload",
			"name":          prov.Source.String(),
			"datePublished": acquiredAt.UTC().Format(time.RFC3339),
		}

		if prov.SourceURL != "" {
			entity["url"] = prov.SourceURL
		}

		if prov.SourceVersion != "" {
			entity["version"] = prov.SourceVersion
		}

		if len(prov.ProcessingSteps) > 0 {
			entity["processingSteps"] = append([]string(nil), prov.ProcessingSteps...)
		}

		if prov.QualityScore != nil {
			entity["qualityScore"] = *prov.QualityScore
		}

		if prov.ValidationStatus != "" {
			entity["validationStatus"] = prov.ValidationStatus
		}

		sources = append(sources, entity)
	}

	return map[string]any{"sources": sources}
}

// EnrichWithProvenance attaches serialized sources to the root dataset entity
// (@id "./") of a metadata graph, creating its hasPart list if absent.
// Metadata without an @graph key is returned unchanged.
func EnrichWithProvenance(metadata map[string]any, records []Provenance) map[string]any {
	graph, ok := metadata["@graph"].([]any)
	if !ok {
		return metadata
	}

	serialized := Serialize(records)
	sources, _ := serialized["sources"].([]DataDownload)

	for _, raw := range graph {
		entity, ok := raw.(map[string]any)
		if !ok || entity["@id"] != "./" {
			continue
		}

		hasPart, _ := entity["hasPart"].([]any)
		for _, source := range sources {
			hasPart = append(hasPart, map[string]any(source))
		}

		entity["hasPart"] = hasPart

		break
	}

	return metadata
}

// WriteLedger writes the serialized provenance document to outputPath,
// creating parent directories as needed.
func WriteLedger(records []Provenance, outputPath string) error {
	document := Serialize(records)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("create provenance directory: %w", err)
	}

	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write provenance file: %w", err)
	}

	return nil
}
