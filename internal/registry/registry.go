package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/internal/storage"
	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

const activeVersionsFile = "active_versions.json"

// Config configures the version registry
type Config struct {
	// Dir is the directory holding model artifacts and the persisted
	// active-versions file.
	Dir string `json:"dir" yaml:"dir"`
	// DefaultVersion is returned for models without a stored entry.
	DefaultVersion string `json:"default_version" yaml:"default_version"`
	// PinnedVersion, when non-empty, overrides every stored entry. The
	// empty string means "not pinned" so an operator can pin to the
	// default version explicitly.
	PinnedVersion string `json:"pinned_version" yaml:"pinned_version"`
	// KnownModels seeds the registry on first initialization.
	KnownModels []string `json:"known_models" yaml:"known_models"`
}

// MetadataSource supplies stored metadata for model versions.
type MetadataSource interface {
	LoadMetadata(name, version string) *models.ModelMetadata
}

// Registry tracks the active version per model name, persisting every
// mutation write-through to a JSON file. All mutations are serialized
// against each other and against the persistence write.
type Registry struct {
	config   *Config
	store    storage.ArtifactStore
	metadata MetadataSource
	logger   *logrus.Logger

	mu     sync.Mutex
	active map[string]string
}

// New creates a version registry, loading the persisted mapping if present
// and seeding defaults otherwise.
func New(config *Config, store storage.ArtifactStore, metadata MetadataSource, logger *logrus.Logger) (*Registry, error) {
	if config == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidConfiguration, "registry Config cannot be nil")
	}
	if config.Dir == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidConfiguration, "registry Dir is required")
	}
	if config.DefaultVersion == "" {
		config.DefaultVersion = "v1"
	}
	if logger == nil {
		logger = logrus.New()
	}

	r := &Registry{
		config:   config,
		store:    store,
		metadata: metadata,
		logger:   logger,
		active:   make(map[string]string),
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// ActiveVersion returns the currently active version for a model. The
// pinned version takes precedence when set; unknown names fall back to the
// configured default.
func (r *Registry) ActiveVersion(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeVersionLocked(name)
}

func (r *Registry) activeVersionLocked(name string) string {
	if r.config.PinnedVersion != "" {
		return r.config.PinnedVersion
	}
	if v, ok := r.active[name]; ok {
		return v
	}
	return r.config.DefaultVersion
}

// SetActiveVersion unconditionally overwrites the stored version for a
// model and persists the full mapping before returning. Existence of the
// version in the artifact store is not checked at this layer.
func (r *Registry) SetActiveVersion(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.active[name]
	r.active[name] = version
	if err := r.saveLocked(); err != nil {
		r.active[name] = old
		if old == "" {
			delete(r.active, name)
		}
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"model": name,
		"from":  old,
		"to":    version,
	}).Info("Switched active model version")

	return nil
}

// AvailableVersions enumerates all versions present in the artifact store
// for a model, sorted ascending.
func (r *Registry) AvailableVersions(name string) ([]string, error) {
	return r.store.ListVersions(name)
}

// Rollback switches a model to the predecessor of its active version
// within the available-versions ordering, wrapping to the latest version
// when already on the earliest. Returns ok=false without changing state
// when fewer than two versions exist or the active version is not in the
// available set. The read-modify-persist runs in a single critical
// section so concurrent rollbacks and version switches serialize.
func (r *Registry) Rollback(name string) (string, bool, error) {
	available, err := r.store.ListVersions(name)
	if err != nil {
		return "", false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.activeVersionLocked(name)

	if len(available) < 2 {
		r.logger.WithField("model", name).Warn("Cannot rollback: insufficient versions")
		return "", false, nil
	}

	idx := -1
	for i, v := range available {
		if v == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.logger.WithFields(logrus.Fields{
			"model":   name,
			"version": current,
		}).Error("Active version not found among available versions")
		return "", false, nil
	}

	previous := available[len(available)-1]
	if idx > 0 {
		previous = available[idx-1]
	}

	old, had := r.active[name]
	r.active[name] = previous
	if err := r.saveLocked(); err != nil {
		if had {
			r.active[name] = old
		} else {
			delete(r.active, name)
		}
		return "", false, err
	}

	r.logger.WithFields(logrus.Fields{
		"model": name,
		"from":  current,
		"to":    previous,
	}).Info("Rolled back model version")

	return previous, true, nil
}

// IsKnown reports whether a model name is tracked by the registry.
func (r *Registry) IsKnown(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[name]
	return ok
}

// KnownModels returns the tracked model names.
func (r *Registry) KnownModels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.active))
	for name := range r.active {
		names = append(names, name)
	}
	return names
}

// ListModels returns the introspection view of every tracked model.
func (r *Registry) ListModels() []models.ModelInfo {
	names := r.KnownModels()

	infos := make([]models.ModelInfo, 0, len(names))
	for _, name := range names {
		version := r.ActiveVersion(name)
		available, err := r.store.ListVersions(name)
		if err != nil {
			r.logger.WithError(err).WithField("model", name).Warn("Failed to list versions")
		}

		info := models.ModelInfo{
			Name:              name,
			ActiveVersion:     version,
			AvailableVersions: available,
			Loaded:            r.store.Exists(name, version),
		}
		if r.metadata != nil {
			info.Metadata = r.metadata.LoadMetadata(name, version)
		}
		infos = append(infos, info)
	}
	return infos
}

func (r *Registry) versionsPath() string {
	return filepath.Join(r.config.Dir, activeVersionsFile)
}

func (r *Registry) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.versionsPath())
	if err == nil {
		if jsonErr := json.Unmarshal(data, &r.active); jsonErr != nil {
			return errors.WrapError(jsonErr, errors.ErrorTypeRegistry, errors.CodeInternalError,
				fmt.Sprintf("corrupt active versions file: %s", r.versionsPath()))
		}
		r.logger.WithField("versions", r.active).Info("Loaded active model versions")
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.WrapError(err, errors.ErrorTypeRegistry, errors.CodeInternalError,
			fmt.Sprintf("failed to read active versions file: %s", r.versionsPath()))
	}

	// First start: seed every known model at the default version.
	for _, name := range r.config.KnownModels {
		r.active[name] = r.config.DefaultVersion
	}
	if err := r.saveLocked(); err != nil {
		return err
	}

	r.logger.WithField("models", len(r.active)).Info("Seeded default model versions")
	return nil
}

// saveLocked persists the mapping with a temp-file-then-rename replace so
// concurrent readers never observe a partial write. Callers hold r.mu.
func (r *Registry) saveLocked() error {
	if err := os.MkdirAll(r.config.Dir, 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeRegistry, errors.CodeInternalError,
			fmt.Sprintf("failed to create models dir: %s", r.config.Dir))
	}

	data, err := json.MarshalIndent(r.active, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeRegistry, errors.CodeInternalError,
			"failed to marshal active versions")
	}

	tmp, err := os.CreateTemp(r.config.Dir, activeVersionsFile+".tmp-*")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeRegistry, errors.CodeInternalError,
			"failed to create temp versions file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapError(err, errors.ErrorTypeRegistry, errors.CodeInternalError,
			"failed to write temp versions file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapError(err, errors.ErrorTypeRegistry, errors.CodeInternalError,
			"failed to close temp versions file")
	}

	if err := os.Rename(tmpName, r.versionsPath()); err != nil {
		os.Remove(tmpName)
		return errors.WrapError(err, errors.ErrorTypeRegistry, errors.CodeInternalError,
			fmt.Sprintf("failed to replace versions file: %s", r.versionsPath()))
	}

	return nil
}
