package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(&FileStoreConfig{BaseDir: dir, CreateDirs: true}, logrus.New())
	require.NoError(t, err)
	return store, dir
}

func writeArtifact(t *testing.T, dir, version, name, ext, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, version), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, version, name+ext), []byte(content), 0o644))
}

func TestNewFileStoreRequiresConfig(t *testing.T) {
	_, err := NewFileStore(nil, nil)
	assert.Error(t, err)

	_, err = NewFileStore(&FileStoreConfig{}, nil)
	assert.Error(t, err)
}

func TestResolveFormats(t *testing.T) {
	store, dir := newTestStore(t)
	writeArtifact(t, dir, "v1", "heart", ".rules", `{"disease":"heart"}`)
	writeArtifact(t, dir, "v1", "brain_tumor", ".network", `{}`)

	data, format, err := store.Resolve("heart", "v1")
	require.NoError(t, err)
	assert.Equal(t, FormatRules, format)
	assert.Equal(t, `{"disease":"heart"}`, string(data))

	_, format, err = store.Resolve("brain_tumor", "v1")
	require.NoError(t, err)
	assert.Equal(t, FormatNetwork, format)
}

func TestResolveMissingArtifact(t *testing.T) {
	store, _ := newTestStore(t)

	_, _, err := store.Resolve("heart", "v1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrArtifactMissing)
}

func TestUnrecognizedExtensionIsInvisible(t *testing.T) {
	store, dir := newTestStore(t)
	writeArtifact(t, dir, "v1", "heart", ".pickle", "binary")

	assert.False(t, store.Exists("heart", "v1"))

	versions, err := store.ListVersions("heart")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestListVersionsNumericOrder(t *testing.T) {
	store, dir := newTestStore(t)
	for _, v := range []string{"v10", "v1", "v2"} {
		writeArtifact(t, dir, v, "heart", ".rules", "{}")
	}
	// Unrelated directory entries are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reference_stats"), 0o755))

	versions, err := store.ListVersions("heart")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v10"}, versions)
}

func TestListVersionsMissingDir(t *testing.T) {
	store, err := NewFileStore(&FileStoreConfig{BaseDir: filepath.Join(t.TempDir(), "nope")}, nil)
	require.NoError(t, err)

	versions, err := store.ListVersions("heart")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestMetadataRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	meta := &models.ModelMetadata{
		Name:      "heart",
		Version:   "v1",
		ModelType: "rules",
		Metrics:   map[string]float64{"accuracy": 0.91},
	}
	require.NoError(t, store.SaveMetadata("heart", "v1", meta))

	loaded := store.LoadMetadata("heart", "v1")
	assert.Equal(t, "heart", loaded.Name)
	assert.Equal(t, "rules", loaded.ModelType)
	assert.Equal(t, 0.91, loaded.Metrics["accuracy"])
}

func TestMetadataDefaultWhenMissing(t *testing.T) {
	store, _ := newTestStore(t)

	meta := store.LoadMetadata("heart", "v3")
	assert.Equal(t, "heart", meta.Name)
	assert.Equal(t, "v3", meta.Version)
	assert.Equal(t, "unknown", meta.ModelType)
}

func TestCompareVersions(t *testing.T) {
	assert.Negative(t, CompareVersions("v1", "v2"))
	assert.Negative(t, CompareVersions("v2", "v10"))
	assert.Positive(t, CompareVersions("v10", "v9"))
	assert.Zero(t, CompareVersions("v3", "v3"))
	// Non-numeric tokens fall back to string comparison.
	assert.Negative(t, CompareVersions("alpha", "beta"))
}
