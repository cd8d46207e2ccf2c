package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// TrainingRun records one execution of the trainer.
type TrainingRun struct {
	ID              string             `json:"id"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
	Dataset         string             `json:"dataset"`
	TrainRows       int                `json:"train_rows"`
	TestRows        int                `json:"test_rows"`
	SplitCached     bool               `json:"split_cached"`
	Hyperparameters map[string]float64 `json:"hyperparameters"`
	Metrics         map[string]float64 `json:"metrics"`
	ModelPath       string             `json:"model_path"`
	Version         string             `json:"version,omitempty"`
}

// Duration returns how long the run took.
func (r TrainingRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// StoreRun stores a training run in the runs bucket. A missing ID is filled
// with a random UUID. Keys have the form "<started_at>_<id>".
func (s *Store) StoreRun(run *TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, runsBucket, timeKey(run.StartedAt)+"_"+run.ID, run)
	})
}

// GetRuns returns the runs started within [start, end], oldest first.
func (s *Store) GetRuns(start, end time.Time) ([]TrainingRun, error) {
	var runs []TrainingRun
	err := s.getRecordsInRange(runsBucket, start, end, func(data []byte) error {
		var run TrainingRun
		if err := json.Unmarshal(data, &run); err != nil {
			return err
		}
		runs = append(runs, run)
		return nil
	})
	return runs, err
}

// LatestRun returns the most recently started run, or nil when none exist.
func (s *Store) LatestRun() (*TrainingRun, error) {
	var run *TrainingRun
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket([]byte(runsBucket)).Cursor().Last()
		if v == nil {
			return nil
		}
		run = &TrainingRun{}
		return json.Unmarshal(v, run)
	})
	return run, err
}
