// Package rocrate builds, validates, and archives Research Object Crates.
package rocrate

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// archiveMetadataFilename records provenance of an archived package version.
const archiveMetadataFilename = "archive_metadata.json"

// Storage manages versioned archival of built packages under a base
// directory.
//
// Layout:
//
//	<base>/<name>/<version>/<packageDir>/   archived copies
//	<base>/<name>/<version>/archive_metadata.json
//	<base>/<name>/<name>-v<version>.zip     zip archives
type Storage struct {
	basePath string
}

// NewStorage creates a storage manager rooted at basePath, creating it when
// absent.
func NewStorage(basePath string) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &Storage{basePath: basePath}, nil
}

// ArchivePackage copies a built package under <base>/<name>/<version>/ and
// writes archive metadata next to it. An empty name defaults to the package
// directory's basename. Returns the archived package path.
func (s *Storage) ArchivePackage(packagePath, version, name string) (string, error) {
	if name == "" {
		name = filepath.Base(packagePath)
	}

	archiveDir := filepath.Join(s.basePath, name, version)
	if err := os.MkdirAll(archiveDir, 0o750); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	archivePath := filepath.Join(archiveDir, filepath.Base(packagePath))
	if err := copyTree(packagePath, archivePath); err != nil {
		return "", err
	}

	metadata := map[string]any{
		"package_name": name,
		"version":      version,
		"archived_at":  time.Now().UTC().Format(time.RFC3339),
		"source_path":  packagePath,
	}

	payload, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal archive metadata: %w", err)
	}

	metadataPath := filepath.Join(archiveDir, archiveMetadataFilename)
	if err := os.WriteFile(metadataPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("write archive metadata: %w", err)
	}

	return archivePath, nil
}

// CreateZipArchive zips a package into <base>/<name>/<name>-v<version>.zip
// with entry paths relative to the package root.
func (s *Storage) CreateZipArchive(packagePath, version, name string) (string, error) {
	if name == "" {
		name = filepath.Base(packagePath)
	}

	archiveDir := filepath.Join(s.basePath, name)
	if err := os.MkdirAll(archiveDir, 0o750); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	zipPath := filepath.Join(archiveDir, fmt.Sprintf("%s-v%s.zip", name, version))

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create zip archive: %w", err)
	}
	defer zipFile.Close()

	writer := zip.NewWriter(zipFile)
	defer writer.Close()

	err = filepath.WalkDir(packagePath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(packagePath, path)
		if err != nil {
			return err
		}

		target, err := writer.Create(filepath.ToSlash(relative))
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(target, file)

		return err
	})
	if err != nil {
		return "", fmt.Errorf("zip package: %w", err)
	}

	return zipPath, nil
}

// ListVersions returns a package's archived versions sorted lexicographically.
// Unknown packages yield an empty list.
func (s *Storage) ListVersions(name string) []string {
	entries, err := os.ReadDir(filepath.Join(s.basePath, name))
	if err != nil {
		return []string{}
	}

	var versions []string

	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}

	sort.Strings(versions)

	return versions
}

// GetLatestVersion returns the lexicographically last version, or ("",
// false) for unknown packages.
func (s *Storage) GetLatestVersion(name string) (string, bool) {
	versions := s.ListVersions(name)
	if len(versions) == 0 {
		return "", false
	}

	return versions[len(versions)-1], true
}

// copyTree recursively copies a file or directory.
func copyTree(sourcePath, targetPath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		return copyFile(sourcePath, targetPath)
	}

	return filepath.WalkDir(sourcePath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relative, err := filepath.Rel(sourcePath, path)
		if err != nil {
			return err
		}

		target := filepath.Join(targetPath, relative)

		if entry.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		return copyFile(path, target)
	})
}
