// Package license checks source-license compatibility and emits the package
// license manifest.
package license

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidationResult is the outcome of validating sources or a manifest file.
type ValidationResult struct {
	Valid    bool
	Issues   []string
	Warnings []string
}

// Validator validates source licenses against a configured package license.
type Validator struct {
	packageLicense string
}

// NewValidator creates a validator. An empty package license defaults to
// CC-BY-4.0.
func NewValidator(packageLicense string) *Validator {
	if packageLicense == "" {
		packageLicense = DefaultPackageLicense
	}

	return &Validator{packageLicense: packageLicense}
}

// ValidateSources checks each source license against the package license.
func (v *Validator) ValidateSources(sources []SourceLicense) ValidationResult {
	result := ValidationResult{Issues: []string{}, Warnings: []string{}}

	for _, sourceLicense := range sources {
		name := sourceLicense.Source
		if name == "" {
			name = "unknown"
		}

		switch CheckCompatibility(sourceLicense.License, v.packageLicense) {
		case Missing:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Missing license for source: %s", name))
		case Incompatible:
			result.Issues = append(result.Issues,
				fmt.Sprintf("Incompatible license '%s' from source '%s'", sourceLicense.License, name))
		case Compatible, Uncertain:
		}
	}

	result.Valid = len(result.Issues) == 0

	return result
}

// ValidateManifest validates a license manifest file.
//
// The manifest is invalid when the file is missing, the YAML is not a
// mapping, package_license is absent, sources is absent or not a list, or any
// source entry is not a mapping. Otherwise the sources are validated against
// the validator's package license.
func (v *Validator) ValidateManifest(manifestPath string) ValidationResult {
	payload, err := os.ReadFile(manifestPath)
	if err != nil {
		return invalidManifest("License manifest file not found")
	}

	var document map[string]any
	if err := yaml.Unmarshal(payload, &document); err != nil || document == nil {
		return invalidManifest(fmt.Sprintf("Error reading manifest: %v", err))
	}

	if _, ok := document["package_license"]; !ok {
		return invalidManifest("Missing package_license in manifest")
	}

	rawSources, ok := document["sources"]
	if !ok {
		return invalidManifest("Missing sources in manifest")
	}

	sourceList, ok := rawSources.([]any)
	if !ok {
		return invalidManifest("Manifest sources must be a list")
	}

	sources := make([]SourceLicense, 0, len(sourceList))

	for _, raw := range sourceList {
		entry, ok := raw.(map[string]any)
		if !ok {
			return invalidManifest("Manifest source entries must be mappings")
		}

		sources = append(sources, SourceLicense{
			Source:  stringValue(entry["source"]),
			License: stringValue(entry["license"]),
		})
	}

	return v.ValidateSources(sources)
}

func invalidManifest(issue string) ValidationResult {
	return ValidationResult{Valid: false, Issues: []string{issue}, Warnings: []string{}}
}

func stringValue(value any) string {
	s, _ := value.(string)

	return s
}
