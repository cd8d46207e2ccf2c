package ml

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"creditcard-fraud/internal/artifacts"
	"creditcard-fraud/internal/data"
	"creditcard-fraud/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *ModelManager {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mm := NewModelManager(store)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mm.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return mm
}

func TestModelManager_AddActivateRollback(t *testing.T) {
	mm := newTestManager(t)

	current, err := mm.GetCurrentVersion()
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = mm.Rollback()
	assert.Error(t, err, "rollback needs two versions")

	v1, err := mm.AddVersion("/models/1.zip", storage.ModelMetrics{AUCScore: 0.9})
	require.NoError(t, err)
	v2, err := mm.AddVersion("/models/2.zip", storage.ModelMetrics{AUCScore: 0.95})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^20240501-120[12]00-[0-9a-f]{8}$`), v1.Version)

	_, err = mm.Rollback()
	assert.Error(t, err, "no active version yet")

	require.NoError(t, mm.ActivateVersion(v2.Version))
	current, err = mm.GetCurrentVersion()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, v2.Version, current.Version)

	previous, err := mm.Rollback()
	require.NoError(t, err)
	assert.Equal(t, v1.Version, previous.Version)
	assert.True(t, previous.IsActive)

	current, err = mm.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, "/models/1.zip", current.Path)

	_, err = mm.Rollback()
	assert.Error(t, err, "oldest version has no predecessor")

	versions, err := mm.ListVersions()
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v2.Version, versions[0].Version)
}

func TestModelManager_ActivateUnknown(t *testing.T) {
	mm := newTestManager(t)
	err := mm.ActivateVersion("nope")
	assert.ErrorIs(t, err, storage.ErrVersionNotFound)
}

func TestModelManager_StoreVersionRollbackLoadsOwnArchive(t *testing.T) {
	mm := newTestManager(t)
	ctx := context.Background()
	latest := filepath.Join(t.TempDir(), "fastTree.zip")
	archive := artifacts.DirPublisher{Root: t.TempDir(), Prefix: "models"}

	small, _ := fitTestModel(t, 2)
	require.NoError(t, SaveModel(latest, small, data.SplitColumns()))
	v1, err := mm.StoreVersion(ctx, latest, archive, storage.ModelMetrics{AUCScore: 0.9})
	require.NoError(t, err)
	require.NoError(t, mm.ActivateVersion(v1.Version))

	// the second run overwrites the latest archive in place
	large, _ := fitTestModel(t, 7)
	require.NoError(t, SaveModel(latest, large, data.SplitColumns()))
	v2, err := mm.StoreVersion(ctx, latest, archive, storage.ModelMetrics{AUCScore: 0.95})
	require.NoError(t, err)
	require.NoError(t, mm.ActivateVersion(v2.Version))

	assert.Equal(t, filepath.Join(archive.Root, "models", v1.Version, "fastTree.zip"), v1.Path)
	assert.NotEqual(t, v1.Path, v2.Path)

	previous, err := mm.Rollback()
	require.NoError(t, err)
	assert.Equal(t, v1.Version, previous.Version)

	model, _, err := LoadModel(previous.Path)
	require.NoError(t, err)
	assert.Len(t, model.LastTransformer().(*FastTreeBinaryModel).Trees, 2)
}

type failingArchive struct{}

func (failingArchive) Publish(context.Context, string, string) (string, error) {
	return "", errors.New("disk full")
}

func TestModelManager_StoreVersionErrors(t *testing.T) {
	mm := newTestManager(t)

	_, err := mm.StoreVersion(context.Background(), "fastTree.zip", nil, storage.ModelMetrics{})
	assert.Error(t, err)

	_, err = mm.StoreVersion(context.Background(), "fastTree.zip", failingArchive{}, storage.ModelMetrics{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	versions, err := mm.ListVersions()
	require.NoError(t, err)
	assert.Empty(t, versions)
}
