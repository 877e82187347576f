// Package rocrate builds, validates, and archives Research Object Crates.
package rocrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SectionReport is the outcome of one validation aspect.
type SectionReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Report is the full validation outcome for an on-disk crate.
type Report struct {
	Valid    bool          `json:"valid"`
	Warnings []string      `json:"warnings"`
	Metadata SectionReport `json:"metadata"`
}

// FAIRReport summarizes findability, accessibility, interoperability, and
// reusability. The structural report backs findable; the metadata report
// backs the other three.
type FAIRReport struct {
	Findable      SectionReport `json:"findable"`
	Accessible    SectionReport `json:"accessible"`
	Interoperable SectionReport `json:"interoperable"`
	Reusable      SectionReport `json:"reusable"`
}

// Validator validates an RO-Crate directory on disk.
type Validator struct {
	cratePath string
}

// NewValidator creates a validator for the crate rooted at cratePath.
func NewValidator(cratePath string) *Validator {
	return &Validator{cratePath: cratePath}
}

// Validate checks the crate's structure and metadata.
//
// The crate is invalid when ro-crate-metadata.json is missing or malformed,
// when @context or @graph is absent, or when no graph entity is the root
// dataset (@id "./" with @type Dataset). A missing data/ directory is a
// warning, not an error.
func (v *Validator) Validate() Report {
	report := Report{Warnings: []string{}}

	report.Metadata = v.metadataReport()
	report.Valid = report.Metadata.Valid

	if info, err := os.Stat(filepath.Join(v.cratePath, "data")); err != nil || !info.IsDir() {
		report.Warnings = append(report.Warnings, "Data directory does not exist")
	}

	return report
}

// ValidateFAIR produces the four-part FAIR summary.
func (v *Validator) ValidateFAIR() FAIRReport {
	structure := v.structureReport()
	metadata := v.metadataReport()

	return FAIRReport{
		Findable:      structure,
		Accessible:    metadata,
		Interoperable: metadata,
		Reusable:      metadata,
	}
}

// structureReport checks the on-disk layout.
func (v *Validator) structureReport() SectionReport {
	var errors []string

	if _, err := os.Stat(v.cratePath); err != nil {
		errors = append(errors, "Crate path does not exist")
	}

	if _, err := os.Stat(filepath.Join(v.cratePath, MetadataFilename)); err != nil {
		errors = append(errors, "Missing "+MetadataFilename)
	}

	if _, err := os.Stat(filepath.Join(v.cratePath, "data")); err != nil {
		errors = append(errors, "Missing data directory")
	}

	return SectionReport{Valid: len(errors) == 0, Errors: normalizeErrors(errors)}
}

// metadataReport checks the manifest document.
func (v *Validator) metadataReport() SectionReport {
	var errors []string

	metadataPath := filepath.Join(v.cratePath, MetadataFilename)

	payload, err := os.ReadFile(metadataPath)
	if err != nil {
		return SectionReport{Valid: false, Errors: []string{"Missing " + MetadataFilename}}
	}

	var metadata map[string]any
	if err := json.Unmarshal(payload, &metadata); err != nil {
		return SectionReport{Valid: false, Errors: []string{fmt.Sprintf("Invalid JSON in metadata: %v", err)}}
	}

	if _, ok := metadata["@context"]; !ok {
		errors = append(errors, "Missing @context in metadata")
	}

	graph, ok := metadata["@graph"].([]any)
	if !ok {
		errors = append(errors, "Missing @graph in metadata")
	} else {
		rootFound := false

		for _, raw := range graph {
			entity, ok := raw.(map[string]any)
			if !ok {
				continue
			}

			if entity["@id"] == "./" && entity["@type"] == "Dataset" {
				rootFound = true

				break
			}
		}

		if !rootFound {
			errors = append(errors, "Missing root dataset entity")
		}
	}

	return SectionReport{Valid: len(errors) == 0, Errors: normalizeErrors(errors)}
}

func normalizeErrors(errors []string) []string {
	if errors == nil {
		return []string{}
	}

	return errors
}
