package ml

import (
	"context"
	"fmt"
	"time"

	"creditcard-fraud/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// VersionStore persists model versions. *storage.Store implements it.
type VersionStore interface {
	PutModelVersion(v storage.ModelVersion) error
	ListModelVersions() ([]storage.ModelVersion, error)
	SetActiveVersion(version string) error
}

// Archiver copies a model archive to a location owned by version and
// returns that location. artifacts.DirPublisher implements it.
type Archiver interface {
	Publish(ctx context.Context, localPath, version string) (string, error)
}

// ModelManager handles model versioning and rollback
type ModelManager struct {
	store VersionStore
	now   func() time.Time
}

// NewModelManager creates a new model manager
func NewModelManager(store VersionStore) *ModelManager {
	return &ModelManager{store: store, now: time.Now}
}

// AddVersion registers a saved model archive and returns its version.
// Versions are "<yyyymmdd-hhmmss>-<8 hex chars>".
func (mm *ModelManager) AddVersion(modelPath string, metrics storage.ModelMetrics) (storage.ModelVersion, error) {
	created, version := mm.nextVersion()
	return mm.putVersion(version, created, modelPath, metrics)
}

// StoreVersion copies the archive at modelPath through archive under a new
// version and registers the copy. The version keeps loading that copy when
// modelPath is overwritten by a later run.
func (mm *ModelManager) StoreVersion(ctx context.Context, modelPath string, archive Archiver, metrics storage.ModelMetrics) (storage.ModelVersion, error) {
	if archive == nil {
		return storage.ModelVersion{}, fmt.Errorf("store model version: no archive configured")
	}
	created, version := mm.nextVersion()
	stored, err := archive.Publish(ctx, modelPath, version)
	if err != nil {
		return storage.ModelVersion{}, fmt.Errorf("archive model version %s: %w", version, err)
	}
	return mm.putVersion(version, created, stored, metrics)
}

func (mm *ModelManager) nextVersion() (time.Time, string) {
	created := mm.now()
	return created, created.Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

func (mm *ModelManager) putVersion(version string, created time.Time, modelPath string, metrics storage.ModelMetrics) (storage.ModelVersion, error) {
	v := storage.ModelVersion{
		Version:   version,
		Path:      modelPath,
		CreatedAt: created,
		Metrics:   metrics,
	}
	if err := mm.store.PutModelVersion(v); err != nil {
		return storage.ModelVersion{}, fmt.Errorf("add model version: %w", err)
	}

	log.Info().
		Str("version", v.Version).
		Str("path", modelPath).
		Float64("auc", metrics.AUCScore).
		Msg("Model version added")
	return v, nil
}

// ActivateVersion activates a specific model version
func (mm *ModelManager) ActivateVersion(version string) error {
	if err := mm.store.SetActiveVersion(version); err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("Model version activated")
	return nil
}

// Rollback activates the version created just before the active one and
// returns it.
func (mm *ModelManager) Rollback() (storage.ModelVersion, error) {
	versions, err := mm.store.ListModelVersions()
	if err != nil {
		return storage.ModelVersion{}, err
	}
	if len(versions) < 2 {
		return storage.ModelVersion{}, fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return storage.ModelVersion{}, fmt.Errorf("no active version found")
	}
	if currentIdx+1 >= len(versions) {
		return storage.ModelVersion{}, fmt.Errorf("no previous version available")
	}

	previous := versions[currentIdx+1]
	if err := mm.ActivateVersion(previous.Version); err != nil {
		return storage.ModelVersion{}, err
	}
	previous.IsActive = true
	return previous, nil
}

// GetCurrentVersion returns the active version, or nil when none is active.
func (mm *ModelManager) GetCurrentVersion() (*storage.ModelVersion, error) {
	versions, err := mm.store.ListModelVersions()
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].IsActive {
			return &versions[i], nil
		}
	}
	return nil, nil
}

// ListVersions returns all model versions, newest first.
func (mm *ModelManager) ListVersions() ([]storage.ModelVersion, error) {
	return mm.store.ListModelVersions()
}
