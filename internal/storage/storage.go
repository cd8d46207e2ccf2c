// Package storage provides the persistent run registry of the fraud detection
// trainer. It uses BoltDB as the underlying storage engine to record training
// runs with their metrics and the versions of every saved model.
//
// Records are stored as JSON under time-ordered keys so range queries are
// plain cursor scans.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// DBFile is the database file name inside the registry directory.
const DBFile = "fraud-runs.db"

const (
	runsBucket   = "runs"   // Bucket name for training run records
	modelsBucket = "models" // Bucket name for model versions
)

// Store provides persistent storage for training runs and model versions
// using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the registry database in dataPath and creates the
// buckets. The directory must already exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeKey formats t so that keys sort chronologically.
func timeKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

// getRecordsInRange scans bucketName for keys whose time prefix lies in
// [start, end] and decodes each value with unmarshalFunc. Malformed records
// are skipped.
func (s *Store) getRecordsInRange(bucketName string, start, end time.Time, unmarshalFunc func([]byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		startKey := []byte(timeKey(start))
		endKey := []byte(timeKey(end))

		for k, v := c.Seek(startKey); k != nil && compareKeys(timePrefix(k), endKey) <= 0; k, v = c.Next() {
			if err := unmarshalFunc(v); err != nil {
				continue
			}
		}
		return nil
	})
}

func timePrefix(k []byte) []byte {
	if len(k) > 20 {
		return k[:20]
	}
	return k
}

func putJSON(tx *bbolt.Tx, bucketName, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", bucketName, err)
	}
	return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
}

func compareKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}
