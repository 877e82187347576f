package license

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCheckCompatibility(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name     string
		source   string
		target   string
		expected Compatibility
	}{
		{"same license", "MIT", "MIT", Compatible},
		{"permissive pair", "CC-BY-4.0", "MIT", Compatible},
		{"cc0 to apache", "CC0-1.0", "Apache-2.0", Compatible},
		{"gpl to itself", "GPL-3.0", "GPL-3.0", Compatible},
		{"gpl isolated", "GPL-3.0", "CC-BY-4.0", Incompatible},
		{"into gpl", "MIT", "GPL-3.0", Incompatible},
		{"unknown source", "unknown", "MIT", Missing},
		{"empty source", "", "MIT", Missing},
		{"unknown target", "MIT", "unknown", Missing},
		{"unrecognized license", "WTFPL", "MIT", Incompatible},
		{"case sensitive", "mit", "MIT", Incompatible},
		{"whitespace sensitive", "MIT ", "MIT", Incompatible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckCompatibility(tt.source, tt.target))
		})
	}
}

func TestCheckCompatibility_PermissiveSymmetry(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	permissive := []string{"CC-BY-4.0", "CC0-1.0", "MIT", "Apache-2.0"}

	for _, a := range permissive {
		for _, b := range permissive {
			forward := CheckCompatibility(a, b) == Compatible
			backward := CheckCompatibility(b, a) == Compatible
			assert.Equal(t, forward, backward, "%s vs %s must be symmetric", a, b)
			assert.True(t, forward, "%s vs %s should be compatible", a, b)
		}
	}
}

func TestGenerateManifest_Compliant(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sources := []SourceLicense{
		NewSourceLicense("clinvar", "CC0-1.0", "", ""),
		NewSourceLicense("hpo", "MIT", "", ""),
	}

	manifest, err := GenerateManifest(sources, "", "")
	require.NoError(t, err)

	assert.Equal(t, "CC-BY-4.0", manifest.PackageLicense, "default package license")
	assert.Equal(t, StatusCompliant, manifest.Compliance.Status)
	assert.Empty(t, manifest.Compliance.Issues)
	assert.Empty(t, manifest.Compliance.Warnings)

	// Attribution and URL defaults.
	assert.Equal(t, "Data from clinvar", manifest.Sources[0].Attribution)
	assert.Equal(t, "https://creativecommons.org/publicdomain/zero/1.0/", manifest.Sources[0].LicenseURL)
}

func TestGenerateManifest_EmptySources(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	manifest, err := GenerateManifest(nil, "CC-BY-4.0", "")
	require.NoError(t, err)

	assert.Equal(t, StatusCompliant, manifest.Compliance.Status)
	assert.Empty(t, manifest.Compliance.Issues)
	assert.Empty(t, manifest.Compliance.Warnings)
}

func TestGenerateManifest_NonCompliant(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sources := []SourceLicense{
		{Source: "clinvar", License: "CC0-1.0"},
		{Source: "proprietary-db", License: "GPL-3.0"},
	}

	manifest, err := GenerateManifest(sources, "CC-BY-4.0", "")
	require.NoError(t, err)

	assert.Equal(t, StatusNonCompliant, manifest.Compliance.Status)
	require.Len(t, manifest.Compliance.Issues, 1)
	assert.Equal(t, "Incompatible license 'GPL-3.0' from source 'proprietary-db'", manifest.Compliance.Issues[0])
}

func TestGenerateManifest_MissingLicenseWarns(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sources := []SourceLicense{
		{Source: "mystery", License: "unknown"},
	}

	manifest, err := GenerateManifest(sources, "CC-BY-4.0", "")
	require.NoError(t, err)

	assert.Equal(t, StatusCompliant, manifest.Compliance.Status, "missing licenses warn, not fail")
	require.Len(t, manifest.Compliance.Warnings, 1)
	assert.Equal(t, "Missing license for source: mystery", manifest.Compliance.Warnings[0])
}

func TestGenerateManifest_WritesYAML(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	outputPath := filepath.Join(t.TempDir(), "license-manifest.yml")

	sources := []SourceLicense{NewSourceLicense("pubmed", "CC-BY-4.0", "", "")}

	_, err := GenerateManifest(sources, "CC-BY-4.0", outputPath)
	require.NoError(t, err)

	payload, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var document map[string]any
	require.NoError(t, yaml.Unmarshal(payload, &document))

	assert.Equal(t, "CC-BY-4.0", document["package_license"])
	assert.NotContains(t, string(payload), "{", "block style, no flow")
}

func TestValidateLicense(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	valid, message := ValidateLicense("Apache-2.0")
	assert.True(t, valid)
	assert.Equal(t, "License 'Apache-2.0' is valid", message)

	invalid, message := ValidateLicense("WTFPL")
	assert.False(t, invalid)
	assert.Equal(t, "License 'WTFPL' is not recognized", message)
}

func TestGetInfo(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	info := GetInfo("MIT")
	assert.Equal(t, "MIT", info.ID)
	assert.Equal(t, "https://opensource.org/licenses/MIT", info.URL)

	unknown := GetInfo("WTFPL")
	assert.Empty(t, unknown.URL)
}

func TestValidator_ValidateSources(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	validator := NewValidator("CC-BY-4.0")

	result := validator.ValidateSources([]SourceLicense{
		{Source: "clinvar", License: "CC0-1.0"},
		{Source: "gpl-source", License: "GPL-3.0"},
		{Source: "mystery", License: ""},
	})

	assert.False(t, result.Valid)
	assert.Len(t, result.Issues, 1)
	assert.Len(t, result.Warnings, 1)
}

func TestValidator_ValidateManifest(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	validator := NewValidator("")
	dir := t.TempDir()

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		return path
	}

	t.Run("missing file", func(t *testing.T) {
		result := validator.ValidateManifest(filepath.Join(dir, "absent.yml"))
		assert.False(t, result.Valid)
		assert.Contains(t, result.Issues, "License manifest file not found")
	})

	t.Run("not a mapping", func(t *testing.T) {
		path := writeFile("list.yml", "- just\n- a\n- list\n")
		result := validator.ValidateManifest(path)
		assert.False(t, result.Valid)
	})

	t.Run("missing package license", func(t *testing.T) {
		path := writeFile("nopkg.yml", "sources: []\n")
		result := validator.ValidateManifest(path)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Issues, "Missing package_license in manifest")
	})

	t.Run("missing sources", func(t *testing.T) {
		path := writeFile("nosources.yml", "package_license: CC-BY-4.0\n")
		result := validator.ValidateManifest(path)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Issues, "Missing sources in manifest")
	})

	t.Run("sources not a list", func(t *testing.T) {
		path := writeFile("badsources.yml", "package_license: CC-BY-4.0\nsources: nope\n")
		result := validator.ValidateManifest(path)
		assert.False(t, result.Valid)
	})

	t.Run("valid manifest", func(t *testing.T) {
		path := writeFile("good.yml", `package_license: CC-BY-4.0
sources:
  - source: clinvar
    license: CC0-1.0
  - source: hpo
    license: MIT
`)
		result := validator.ValidateManifest(path)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Issues)
	})

	t.Run("incompatible manifest", func(t *testing.T) {
		path := writeFile("bad.yml", `package_license: CC-BY-4.0
sources:
  - source: gpl-db
    license: GPL-3.0
`)
		result := validator.ValidateManifest(path)
		assert.False(t, result.Valid)
		require.Len(t, result.Issues, 1)
		assert.Equal(t, "Incompatible license 'GPL-3.0' from source 'gpl-db'", result.Issues[0])
	})
}
