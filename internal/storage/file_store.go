package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

// artifact extensions recognized by the file store, probed in order
var artifactExtensions = []struct {
	ext    string
	format Format
}{
	{".network", FormatNetwork},
	{".rules", FormatRules},
}

// FileStoreConfig contains configuration for the file-backed artifact store
type FileStoreConfig struct {
	BaseDir    string `json:"base_dir" yaml:"base_dir"`
	CreateDirs bool   `json:"create_dirs" yaml:"create_dirs"`
}

// FileStore implements ArtifactStore over a local directory laid out as
// <base>/<version>/<name>.<ext>.
type FileStore struct {
	config *FileStoreConfig
	logger *logrus.Logger
}

// NewFileStore creates a new file-backed artifact store
func NewFileStore(config *FileStoreConfig, logger *logrus.Logger) (*FileStore, error) {
	if config == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidConfiguration, "FileStoreConfig cannot be nil")
	}
	if config.BaseDir == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidConfiguration, "BaseDir is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	if config.CreateDirs {
		if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
				fmt.Sprintf("failed to create directory: %s", config.BaseDir))
		}
	}

	return &FileStore{config: config, logger: logger}, nil
}

// Resolve returns artifact bytes and format for a model version.
func (fs *FileStore) Resolve(name, version string) ([]byte, Format, error) {
	path, format, ok := fs.artifactPath(name, version)
	if !ok {
		return nil, "", errors.WrapError(errors.ErrArtifactMissing, errors.ErrorTypeLoading,
			errors.CodeArtifactMissing,
			fmt.Sprintf("no artifact for %s %s under %s", name, version, fs.config.BaseDir))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", errors.WrapError(errors.ErrArtifactMissing, errors.ErrorTypeLoading,
				errors.CodeArtifactMissing, fmt.Sprintf("artifact disappeared: %s", path))
		}
		return nil, "", errors.WrapError(err, errors.ErrorTypeLoading, errors.CodeModelLoadFailed,
			fmt.Sprintf("failed to read artifact: %s", path))
	}

	fs.logger.WithFields(logrus.Fields{
		"model":   name,
		"version": version,
		"format":  string(format),
		"bytes":   len(data),
	}).Debug("Resolved model artifact")

	return data, format, nil
}

// Exists reports whether an artifact exists for the model version.
func (fs *FileStore) Exists(name, version string) bool {
	_, _, ok := fs.artifactPath(name, version)
	return ok
}

// ListVersions enumerates version directories containing an artifact for
// the model, sorted ascending by numeric version suffix.
func (fs *FileStore) ListVersions(name string) ([]string, error) {
	entries, err := os.ReadDir(fs.config.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			fmt.Sprintf("failed to read models dir: %s", fs.config.BaseDir))
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "v") {
			continue
		}
		if _, _, ok := fs.artifactPath(name, entry.Name()); ok {
			versions = append(versions, entry.Name())
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) < 0
	})

	return versions, nil
}

// LoadMetadata reads the metadata file stored beside the artifact. A
// default document is returned when none exists.
func (fs *FileStore) LoadMetadata(name, version string) *models.ModelMetadata {
	path := fs.metadataPath(name, version)

	data, err := os.ReadFile(path)
	if err == nil {
		var meta models.ModelMetadata
		if err := json.Unmarshal(data, &meta); err == nil {
			return &meta
		}
		fs.logger.WithFields(logrus.Fields{"model": name, "version": version}).
			Warn("Failed to parse model metadata")
	}

	return &models.ModelMetadata{
		Name:      name,
		Version:   version,
		ModelType: "unknown",
	}
}

// SaveMetadata writes the metadata file beside the artifact.
func (fs *FileStore) SaveMetadata(name, version string, meta *models.ModelMetadata) error {
	path := fs.metadataPath(name, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			fmt.Sprintf("failed to create version dir for %s %s", name, version))
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"failed to marshal model metadata")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			fmt.Sprintf("failed to write metadata: %s", path))
	}

	fs.logger.WithFields(logrus.Fields{"model": name, "version": version}).
		Info("Saved model metadata")
	return nil
}

func (fs *FileStore) artifactPath(name, version string) (string, Format, bool) {
	for _, e := range artifactExtensions {
		path := filepath.Join(fs.config.BaseDir, version, name+e.ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, e.format, true
		}
	}
	return "", "", false
}

func (fs *FileStore) metadataPath(name, version string) string {
	return filepath.Join(fs.config.BaseDir, version, name+"_metadata.json")
}

// CompareVersions orders version tokens like "v1", "v2", "v10" by their
// numeric suffix, falling back to plain string comparison.
func CompareVersions(a, b string) int {
	na, aok := versionNumber(a)
	nb, bok := versionNumber(b)
	if aok && bok {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func versionNumber(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(v, "v"))
	if err != nil {
		return 0, false
	}
	return n, true
}
