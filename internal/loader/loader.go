package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/openhealth/modelserve/internal/calculators"
	"github.com/openhealth/modelserve/internal/storage"
	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

// Model is the opaque capability a loaded artifact exposes.
type Model interface {
	Predict(ctx context.Context, features map[string]float64) (*models.Prediction, error)
}

// Decoder turns artifact bytes into a Model.
type Decoder func(data []byte) (Model, error)

// VersionResolver resolves a model name to its active version.
type VersionResolver interface {
	ActiveVersion(name string) string
}

// Entry is one cached, loaded model.
type Entry struct {
	Model    Model
	Name     string
	Version  string
	Format   storage.Format
	LoadedAt time.Time
}

// Cache memoizes loaded models keyed by name:version. The cache is
// unbounded: entries are evicted only by explicit Reload or Clear, never
// by size pressure. Concurrent misses for the same key share one load.
type Cache struct {
	resolver VersionResolver
	store    storage.ArtifactStore
	decoders map[storage.Format]Decoder
	logger   *logrus.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
	gens    map[string]uint64
	group   singleflight.Group
}

// NewCache creates a model cache with the built-in decoders registered.
func NewCache(resolver VersionResolver, store storage.ArtifactStore, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}

	c := &Cache{
		resolver: resolver,
		store:    store,
		decoders: make(map[storage.Format]Decoder),
		logger:   logger,
		entries:  make(map[string]*Entry),
		gens:     make(map[string]uint64),
	}

	c.RegisterDecoder(storage.FormatRules, func(data []byte) (Model, error) {
		return calculators.DecodeRules(data)
	})
	c.RegisterDecoder(storage.FormatNetwork, func(data []byte) (Model, error) {
		return calculators.DecodeNetwork(data)
	})

	return c
}

// RegisterDecoder installs a decoder for an artifact format, replacing any
// previous decoder for that format.
func (c *Cache) RegisterDecoder(format storage.Format, decoder Decoder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoders[format] = decoder
}

// Get returns the cached model for name:version, loading it on first use.
// An empty version resolves to the model's active version.
func (c *Cache) Get(name, version string) (*Entry, error) {
	if version == "" {
		version = c.resolver.ActiveVersion(name)
	}
	key := cacheKey(name, version)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.logger.WithFields(logrus.Fields{"model": name, "version": version}).
			Debug("Model cache hit")
		return entry, nil
	}

	// Concurrent misses for the same key await a single load.
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		if entry, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return entry, nil
		}
		c.mu.RUnlock()

		return c.load(name, version, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Reload evicts the matching entry and performs a fresh load, so the
// returned handle reflects the artifact currently on disk.
func (c *Cache) Reload(name, version string) (*Entry, error) {
	if version == "" {
		version = c.resolver.ActiveVersion(name)
	}
	key := cacheKey(name, version)

	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.logger.WithFields(logrus.Fields{"model": name, "version": version}).
			Info("Evicted model from cache")
	}
	c.gens[key]++
	c.mu.Unlock()

	// A load already in flight read the artifact before this eviction, so
	// joining it would hand back a handle decoded from the old bytes. The
	// generation bump above keeps that load from storing its entry either.
	c.group.Forget(key)

	return c.Get(name, version)
}

// Clear evicts all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	count := len(c.entries)
	for key := range c.entries {
		c.gens[key]++
		c.group.Forget(key)
	}
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	c.logger.WithField("evicted", count).Info("Cleared model cache")
}

// Validate reports whether the model version loads successfully.
func (c *Cache) Validate(name, version string) bool {
	if _, err := c.Get(name, version); err != nil {
		c.logger.WithError(err).WithField("model", name).Warn("Model validation failed")
		return false
	}
	return true
}

// Preload loads the given models at their active versions, logging and
// skipping any that fail.
func (c *Cache) Preload(names []string) {
	for _, name := range names {
		if _, err := c.Get(name, ""); err != nil {
			c.logger.WithError(err).WithField("model", name).Warn("Failed to preload model")
			continue
		}
		c.logger.WithField("model", name).Info("Preloaded model")
	}
}

// Info returns cache introspection with no side effects.
func (c *Cache) Info() models.CacheInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return models.CacheInfo{
		CachedModels: keys,
		CacheSize:    len(keys),
	}
}

func (c *Cache) load(name, version, key string) (*Entry, error) {
	start := time.Now()

	c.mu.RLock()
	gen := c.gens[key]
	c.mu.RUnlock()

	data, format, err := c.store.Resolve(name, version)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	decoder, ok := c.decoders[format]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.WrapError(errors.ErrUnsupportedFormat, errors.ErrorTypeValidation,
			errors.CodeUnsupportedFormat,
			fmt.Sprintf("no decoder registered for format %q", format))
	}

	model, err := decoder(data)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Model:    model,
		Name:     name,
		Version:  version,
		Format:   format,
		LoadedAt: time.Now(),
	}

	// Skip the store when the key was evicted mid-load: the artifact on
	// disk may have changed after this load read it.
	c.mu.Lock()
	if c.gens[key] == gen {
		c.entries[key] = entry
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"model":   name,
		"version": version,
		"format":  string(format),
		"took":    time.Since(start).String(),
	}).Info("Loaded model")

	return entry, nil
}

func cacheKey(name, version string) string {
	return name + ":" + version
}
