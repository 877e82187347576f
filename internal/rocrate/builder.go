// Package rocrate builds, validates, and archives Research Object Crates.
//
// An RO-Crate is a directory-based research object whose manifest is a
// JSON-LD graph rooted at a Dataset entity. See
// https://www.researchobject.org/ro-crate/ for the underlying convention.
package rocrate

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// MetadataFilename is the crate manifest written at the crate root.
const MetadataFilename = "ro-crate-metadata.json"

// encodingFormats maps file extensions to MIME types for File entities.
var encodingFormats = map[string]string{
	".json": "application/json",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".xml":  "application/xml",
	".txt":  "text/plain",
}

// DataFile describes one file to include in the crate.
type DataFile struct {
	// SourcePath is the file to copy into the crate's data directory.
	SourcePath string

	// TargetName overrides the filename inside data/; defaults to the
	// source basename.
	TargetName string

	// Description is attached to the File entity when set.
	Description string

	// EncodingFormat overrides the MIME type inferred from the extension.
	EncodingFormat string
}

// Builder assembles an RO-Crate directory with its metadata manifest.
type Builder struct {
	basePath    string
	name        string
	description string
	version     string
	license     string
	author      string
	crateID     string
	createdAt   time.Time
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithDescription overrides the dataset description.
func WithDescription(description string) BuilderOption {
	return func(b *Builder) { b.description = description }
}

// WithVersion overrides the dataset version.
func WithVersion(version string) BuilderOption {
	return func(b *Builder) { b.version = version }
}

// WithLicense overrides the package license identifier.
func WithLicense(license string) BuilderOption {
	return func(b *Builder) { b.license = license }
}

// WithAuthor overrides the creator organization name.
func WithAuthor(author string) BuilderOption {
	return func(b *Builder) { b.author = author }
}

// NewBuilder creates a builder rooted at basePath.
func NewBuilder(basePath, name string, options ...BuilderOption) *Builder {
	builder := &Builder{
		basePath:    basePath,
		name:        name,
		description: "Curated biomedical data for genetic variants, phenotypes, and supporting evidence",
		version:     "1.0.0",
		license:     "CC-BY-4.0",
		author:      "Biolink Research Data",
		crateID:     uuid.New().String(),
		createdAt:   time.Now().UTC(),
	}

	for _, option := range options {
		option(builder)
	}

	return builder
}

// BasePath returns the crate's root directory.
func (b *Builder) BasePath() string {
	return b.basePath
}

// CreateStructure creates the crate's data/ and metadata/ directories.
func (b *Builder) CreateStructure() error {
	for _, dir := range []string{
		filepath.Join(b.basePath, "data"),
		filepath.Join(b.basePath, "metadata"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create crate directory: %w", err)
		}
	}

	return nil
}

// AddDataFile copies a file into data/ and returns its crate-relative path.
func (b *Builder) AddDataFile(file DataFile) (string, error) {
	dataDir := filepath.Join(b.basePath, "data")
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	targetName := file.TargetName
	if targetName == "" {
		targetName = filepath.Base(file.SourcePath)
	}

	if err := copyFile(file.SourcePath, filepath.Join(dataDir, targetName)); err != nil {
		return "", err
	}

	return "data/" + targetName, nil
}

// Build assembles the full crate: directory structure, copied data files, and
// the metadata manifest. Provenance sources, when supplied, attach as
// DataDownload entries on the root dataset.
func (b *Builder) Build(files []DataFile, provenanceSources []map[string]any) (string, error) {
	if err := b.CreateStructure(); err != nil {
		return "", err
	}

	fileEntities := make([]map[string]any, 0, len(files))

	for _, file := range files {
		cratePath, err := b.AddDataFile(file)
		if err != nil {
			return "", err
		}

		entity, err := b.fileEntity(cratePath, file)
		if err != nil {
			return "", err
		}

		fileEntities = append(fileEntities, entity)
	}

	metadata := b.GenerateMetadata(fileEntities, provenanceSources)

	payload, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crate metadata: %w", err)
	}

	metadataPath := filepath.Join(b.basePath, MetadataFilename)
	if err := os.WriteFile(metadataPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("write crate metadata: %w", err)
	}

	return b.basePath, nil
}

// GenerateMetadata builds the JSON-LD document: an @context plus a @graph
// holding the root dataset followed by the file entities.
func (b *Builder) GenerateMetadata(fileEntities []map[string]any, provenanceSources []map[string]any) map[string]any {
	root := map[string]any{
		"@id":         "./",
		"@type":       "Dataset",
		"name":        b.name,
		"description": b.description,
		"version":     b.version,
		"license": map[string]any{
			"@id":   fmt.Sprintf("https://spdx.org/licenses/%s.html", b.license),
			"@type": "CreativeWork",
			"name":  b.license,
		},
		"creator": map[string]any{
			"@type": "Organization",
			"name":  b.author,
		},
		"datePublished": b.createdAt.Format(time.RFC3339),
		"keywords": []string{
			"genetics",
			"variants",
			"phenotypes",
			"biomedical data",
			"FAIR data",
		},
	}

	var hasPart []any

	for _, prov := range provenanceSources {
		hasPart = append(hasPart, prov)
	}

	for _, entity := range fileEntities {
		hasPart = append(hasPart, entity)
	}

	if len(hasPart) > 0 {
		root["hasPart"] = hasPart
	}

	graph := []any{root}
	for _, entity := range fileEntities {
		graph = append(graph, entity)
	}

	return map[string]any{
		"@context": map[string]any{
			"@vocab":   "https://schema.org/",
			"ro-crate": "https://w3id.org/ro/crate#",
		},
		"@graph": graph,
	}
}

// fileEntity builds a File entity with inferred encoding format and a
// content checksum.
func (b *Builder) fileEntity(cratePath string, file DataFile) (map[string]any, error) {
	entity := map[string]any{
		"@id":   cratePath,
		"@type": "File",
		"name":  filepath.Base(cratePath),
	}

	if file.Description != "" {
		entity["description"] = file.Description
	}

	format := file.EncodingFormat
	if format == "" {
		format = encodingFormats[strings.ToLower(filepath.Ext(cratePath))]
	}

	if format != "" {
		entity["encodingFormat"] = format
	}

	checksum, err := fileChecksum(filepath.Join(b.basePath, filepath.FromSlash(cratePath)))
	if err != nil {
		return nil, err
	}

	entity["contentChecksum"] = "blake2b:" + checksum

	return entity, nil
}

// fileChecksum returns the hex BLAKE2b-256 digest of a file's contents.
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer file.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init checksum: %w", err)
	}

	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("checksum file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func copyFile(sourcePath, targetPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer sourceFile.Close()

	targetFile, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("create target file: %w", err)
	}
	defer targetFile.Close()

	if _, err := io.Copy(targetFile, sourceFile); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}

	return nil
}
