// Package license checks source-license compatibility and emits the package
// license manifest.
//
// Compatibility is decided against a static matrix. Matching is case- and
// whitespace-sensitive: "cc-by-4.0" is not "CC-BY-4.0" and does not get a
// second chance.
package license

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Compatibility is the outcome of a pairwise license check.
type Compatibility string

const (
	// Compatible means the source license permits redistribution under the
	// package license.
	Compatible Compatibility = "compatible"

	// Incompatible means it does not.
	Incompatible Compatibility = "incompatible"

	// Uncertain is not returned by CheckCompatibility; licenses the matrix
	// does not cover are reported Incompatible.
	Uncertain Compatibility = "uncertain"

	// Missing means one side is empty or "unknown".
	Missing Compatibility = "missing"
)

// Compliance statuses carried by manifests.
const (
	StatusCompliant    = "compliant"
	StatusNonCompliant = "non-compliant"
)

// DefaultPackageLicense is used when no package license is supplied.
const DefaultPackageLicense = "CC-BY-4.0"

// compatibilityMatrix maps each known license to the licenses it is
// compatible with. Permissive licenses are mutually compatible; GPL-3.0 is
// isolated.
var compatibilityMatrix = map[string][]string{
	"CC-BY-4.0":  {"CC-BY-4.0", "CC0-1.0", "MIT", "Apache-2.0"},
	"CC0-1.0":    {"CC-BY-4.0", "CC0-1.0", "MIT", "Apache-2.0"},
	"MIT":        {"CC-BY-4.0", "CC0-1.0", "MIT", "Apache-2.0"},
	"Apache-2.0": {"CC-BY-4.0", "CC0-1.0", "MIT", "Apache-2.0"},
	"GPL-3.0":    {"GPL-3.0"},
}

// licenseURLs maps known license ids to their canonical URLs.
var licenseURLs = map[string]string{
	"CC-BY-4.0":  "https://creativecommons.org/licenses/by/4.0/",
	"CC0-1.0":    "https://creativecommons.org/publicdomain/zero/1.0/",
	"MIT":        "https://opensource.org/licenses/MIT",
	"Apache-2.0": "https://opensource.org/licenses/Apache-2.0",
	"GPL-3.0":    "https://www.gnu.org/licenses/gpl-3.0.html",
}

// SourceLicense describes one upstream source's license terms.
type SourceLicense struct {
	Source      string `yaml:"source" json:"source"`
	License     string `yaml:"license" json:"license"`
	LicenseURL  string `yaml:"license_url,omitempty" json:"license_url,omitempty"`
	Attribution string `yaml:"attribution,omitempty" json:"attribution,omitempty"`
}

// Compliance is the compliance block embedded in a manifest.
type Compliance struct {
	Status   string   `yaml:"status" json:"status"`
	Issues   []string `yaml:"issues" json:"issues"`
	Warnings []string `yaml:"warnings" json:"warnings"`
}

// Manifest is the license manifest emitted alongside each package.
type Manifest struct {
	PackageLicense string          `yaml:"package_license" json:"package_license"`
	Sources        []SourceLicense `yaml:"sources" json:"sources"`
	Compliance     Compliance      `yaml:"compliance" json:"compliance"`
}

// Info carries basic license information.
type Info struct {
	ID   string
	URL  string
	Name string
}

// CheckCompatibility checks one source license against a target license.
//
// Rules, in order: empty or "unknown" on either side is MISSING; exact string
// equality is COMPATIBLE; the target appearing in the source's matrix row is
// COMPATIBLE; everything else is INCOMPATIBLE.
func CheckCompatibility(sourceLicense, targetLicense string) Compatibility {
	if sourceLicense == "" || sourceLicense == "unknown" {
		return Missing
	}

	if targetLicense == "" || targetLicense == "unknown" {
		return Missing
	}

	if sourceLicense == targetLicense {
		return Compatible
	}

	for _, compatible := range compatibilityMatrix[sourceLicense] {
		if compatible == targetLicense {
			return Compatible
		}
	}

	return Incompatible
}

// ValidateLicense reports whether the identifier names a recognized license.
func ValidateLicense(licenseID string) (bool, string) {
	if _, ok := compatibilityMatrix[licenseID]; ok {
		return true, fmt.Sprintf("License '%s' is valid", licenseID)
	}

	return false, fmt.Sprintf("License '%s' is not recognized", licenseID)
}

// GetInfo returns basic information for a license identifier. Unknown
// identifiers get an empty URL.
func GetInfo(licenseID string) Info {
	return Info{
		ID:   licenseID,
		URL:  licenseURLs[licenseID],
		Name: licenseID,
	}
}

// NewSourceLicense builds a source license entry, defaulting the URL from the
// known-license table and the attribution to "Data from <source>".
func NewSourceLicense(sourceName, licenseID, licenseURL, attribution string) SourceLicense {
	if licenseURL == "" {
		licenseURL = licenseURLs[licenseID]
	}

	if attribution == "" {
		attribution = "Data from " + sourceName
	}

	return SourceLicense{
		Source:      sourceName,
		License:     licenseID,
		LicenseURL:  licenseURL,
		Attribution: attribution,
	}
}

// GenerateManifest checks every source against the package license and builds
// the manifest. An empty packageLicense defaults to CC-BY-4.0. When
// outputPath is non-empty the manifest is also written there as block-style
// YAML with keys in declaration order.
func GenerateManifest(sources []SourceLicense, packageLicense, outputPath string) (Manifest, error) {
	if packageLicense == "" {
		packageLicense = DefaultPackageLicense
	}

	manifest := Manifest{
		PackageLicense: packageLicense,
		Sources:        sources,
		Compliance: Compliance{
			Status:   StatusCompliant,
			Issues:   []string{},
			Warnings: []string{},
		},
	}

	for _, sourceLicense := range sources {
		name := sourceLicense.Source
		if name == "" {
			name = "unknown"
		}

		switch CheckCompatibility(sourceLicense.License, packageLicense) {
		case Missing:
			manifest.Compliance.Warnings = append(manifest.Compliance.Warnings,
				fmt.Sprintf("Missing license for source: %s", name))
		case Incompatible:
			manifest.Compliance.Status = StatusNonCompliant
			manifest.Compliance.Issues = append(manifest.Compliance.Issues,
				fmt.Sprintf("Incompatible license '%s' from source '%s'", sourceLicense.License, name))
		case Compatible, Uncertain:
		}
	}

	if outputPath != "" {
		if err := writeManifest(manifest, outputPath); err != nil {
			return manifest, err
		}
	}

	return manifest, nil
}

func writeManifest(manifest Manifest, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	payload, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal license manifest: %w", err)
	}

	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write license manifest: %w", err)
	}

	return nil
}
