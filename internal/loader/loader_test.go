package loader

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhealth/modelserve/internal/calculators"
	"github.com/openhealth/modelserve/internal/storage"
	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

const testRules = `{
  "disease": "heart",
  "grades": [{"min_score": 0, "label": "Low risk"}],
  "confidence": {"base": 0.9, "scale": 0, "max": 0.95}
}`

type staticResolver map[string]string

func (r staticResolver) ActiveVersion(name string) string {
	if v, ok := r[name]; ok {
		return v
	}
	return "v1"
}

func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFileStore(&storage.FileStoreConfig{BaseDir: dir}, logrus.New())
	require.NoError(t, err)
	return NewCache(staticResolver{}, store, logrus.New()), dir
}

func writeRules(t *testing.T, dir, version, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, version), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, version, name+".rules"), []byte(content), 0o644))
}

func TestGetLoadsAndCaches(t *testing.T) {
	cache, dir := newTestCache(t)
	writeRules(t, dir, "v1", "heart", testRules)

	first, err := cache.Get("heart", "v1")
	require.NoError(t, err)
	assert.Equal(t, "heart", first.Name)
	assert.Equal(t, "v1", first.Version)
	assert.Equal(t, storage.FormatRules, first.Format)

	// Second fetch returns the identical handle, not a fresh load.
	second, err := cache.Get("heart", "v1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	pred, err := first.Model.Predict(context.Background(), map[string]float64{})
	require.NoError(t, err)
	assert.Equal(t, "Low risk", pred.Label)
}

func TestGetEmptyVersionUsesResolver(t *testing.T) {
	cache, dir := newTestCache(t)
	cache.resolver = staticResolver{"heart": "v2"}
	writeRules(t, dir, "v2", "heart", testRules)

	entry, err := cache.Get("heart", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", entry.Version)
}

func TestGetMissingArtifact(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Get("heart", "v1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrArtifactMissing)

	// A failed load leaves no cache entry behind.
	assert.Zero(t, cache.Info().CacheSize)
}

func TestReloadPicksUpNewArtifact(t *testing.T) {
	cache, dir := newTestCache(t)
	writeRules(t, dir, "v1", "heart", testRules)

	stale, err := cache.Get("heart", "v1")
	require.NoError(t, err)

	updated := `{
	  "disease": "heart",
	  "grades": [{"min_score": 0, "label": "Updated"}],
	  "confidence": {"base": 0.9, "scale": 0, "max": 0.95}
	}`
	writeRules(t, dir, "v1", "heart", updated)

	// Get still serves the stale handle; Reload replaces it.
	cached, err := cache.Get("heart", "v1")
	require.NoError(t, err)
	assert.Same(t, stale, cached)

	fresh, err := cache.Reload("heart", "v1")
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)

	pred, err := fresh.Model.Predict(context.Background(), map[string]float64{})
	require.NoError(t, err)
	assert.Equal(t, "Updated", pred.Label)
}

func TestClear(t *testing.T) {
	cache, dir := newTestCache(t)
	writeRules(t, dir, "v1", "heart", testRules)
	writeRules(t, dir, "v1", "diabetes", testRules)

	_, err := cache.Get("heart", "v1")
	require.NoError(t, err)
	_, err = cache.Get("diabetes", "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Info().CacheSize)

	cache.Clear()
	assert.Zero(t, cache.Info().CacheSize)

	// Entries reload on demand after a clear.
	_, err = cache.Get("heart", "v1")
	require.NoError(t, err)
	assert.Equal(t, models.CacheInfo{CachedModels: []string{"heart:v1"}, CacheSize: 1}, cache.Info())
}

func TestInfoSortsKeys(t *testing.T) {
	cache, dir := newTestCache(t)
	writeRules(t, dir, "v1", "liver", testRules)
	writeRules(t, dir, "v1", "brain_tumor", testRules)

	_, err := cache.Get("liver", "v1")
	require.NoError(t, err)
	_, err = cache.Get("brain_tumor", "v1")
	require.NoError(t, err)

	assert.Equal(t, []string{"brain_tumor:v1", "liver:v1"}, cache.Info().CachedModels)
}

func TestValidateAndPreload(t *testing.T) {
	cache, dir := newTestCache(t)
	writeRules(t, dir, "v1", "heart", testRules)

	assert.True(t, cache.Validate("heart", "v1"))
	assert.False(t, cache.Validate("kidney", "v1"))

	cache.Clear()
	cache.Preload([]string{"heart", "kidney"})
	assert.Equal(t, []string{"heart:v1"}, cache.Info().CachedModels)
}

func TestReloadBypassesInflightLoad(t *testing.T) {
	cache, dir := newTestCache(t)
	writeRules(t, dir, "v1", "heart", testRules)

	// The first load blocks after reading the artifact bytes so the
	// on-disk replacement lands while it is still in flight.
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	cache.RegisterDecoder(storage.FormatRules, func(data []byte) (Model, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return calculators.DecodeRules(data)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := cache.Get("heart", "v1")
		assert.NoError(t, err)
	}()

	<-started
	updated := `{
	  "disease": "heart",
	  "grades": [{"min_score": 0, "label": "Updated"}],
	  "confidence": {"base": 0.9, "scale": 0, "max": 0.95}
	}`
	writeRules(t, dir, "v1", "heart", updated)

	// Reload must not join the load that read the old artifact.
	fresh, err := cache.Reload("heart", "v1")
	require.NoError(t, err)

	pred, err := fresh.Model.Predict(context.Background(), map[string]float64{})
	require.NoError(t, err)
	assert.Equal(t, "Updated", pred.Label)

	close(release)
	<-done

	// The superseded load must not clobber the fresh cache entry either.
	cached, err := cache.Get("heart", "v1")
	require.NoError(t, err)
	assert.Same(t, fresh, cached)
}

func TestConcurrentGetSharesOneLoad(t *testing.T) {
	cache, dir := newTestCache(t)
	writeRules(t, dir, "v1", "heart", testRules)

	var loads int
	var mu sync.Mutex
	cache.RegisterDecoder(storage.FormatRules, func(data []byte) (Model, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		return calculators.DecodeRules(data)
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get("heart", "v1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, loads)
}
