package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// ErrVersionNotFound is returned when a model version does not exist.
var ErrVersionNotFound = errors.New("model version not found")

// ModelVersion represents a versioned model archive
type ModelVersion struct {
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics contains the test metrics of a model
type ModelMetrics struct {
	Accuracy        float64 `json:"accuracy"`
	AUCScore        float64 `json:"auc_score"`
	F1Score         float64 `json:"f1_score"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	LogLoss         float64 `json:"log_loss"`
	TrainingSamples int     `json:"training_samples"`
}

// PutModelVersion stores v under its version string, replacing any previous
// record with the same version.
func (s *Store) PutModelVersion(v ModelVersion) error {
	if v.Version == "" {
		return fmt.Errorf("model version is empty")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, modelsBucket, v.Version, v)
	})
}

// GetModelVersion returns one model version.
func (s *Store) GetModelVersion(version string) (*ModelVersion, error) {
	var mv *ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(modelsBucket)).Get([]byte(version))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrVersionNotFound, version)
		}
		mv = &ModelVersion{}
		return json.Unmarshal(data, mv)
	})
	return mv, err
}

// ListModelVersions returns every model version, newest first.
func (s *Store) ListModelVersions() ([]ModelVersion, error) {
	var versions []ModelVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelsBucket)).ForEach(func(_, data []byte) error {
			var v ModelVersion
			if err := json.Unmarshal(data, &v); err != nil {
				return nil // Skip malformed records
			}
			versions = append(versions, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].Version > versions[j].Version
		}
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
	return versions, nil
}

// SetActiveVersion marks version as the only active model in a single
// transaction.
func (s *Store) SetActiveVersion(version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))
		if b.Get([]byte(version)) == nil {
			return fmt.Errorf("%w: %s", ErrVersionNotFound, version)
		}

		updates := map[string]ModelVersion{}
		err := b.ForEach(func(k, data []byte) error {
			var v ModelVersion
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("decode version %s: %w", k, err)
			}
			active := v.Version == version
			if v.IsActive != active {
				v.IsActive = active
				updates[string(k)] = v
			}
			return nil
		})
		if err != nil {
			return err
		}

		for k, v := range updates {
			if err := putJSON(tx, modelsBucket, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}
