// Package storage provides persistent data storage for the prediction
// service. It uses BoltDB as the underlying storage engine to keep an audit
// log of served predictions and periodic snapshots of feature usage.
//
// Keys are ordered by time so range queries are a single cursor scan.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"smoking-predictor/internal/common"
	"smoking-predictor/internal/survey"
)

const (
	predictionsBucket = "predictions"   // Bucket name for the prediction audit log
	usageBucket       = "feature_usage" // Bucket name for feature usage snapshots
)

// PredictionRecord is one audited prediction.
type PredictionRecord struct {
	RequestID   string           `json:"request_id"`
	Timestamp   time.Time        `json:"timestamp"`
	Record      survey.RawRecord `json:"record"`
	Prediction  int              `json:"prediction"`
	Probability float64          `json:"probability"`
	Confidence  string           `json:"confidence"`
}

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance under dataPath, creating the directory
// and buckets as needed.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, common.DefaultAuditDBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(usageBucket)); err != nil {
			return fmt.Errorf("create feature usage bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeKey renders t so that byte order matches time order.
func timeKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

// StorePrediction appends rec to the audit log under "<unixnano>_<request_id>".
func (s *Store) StorePrediction(rec PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		key := timeKey(rec.Timestamp) + "_" + rec.RequestID
		return b.Put([]byte(key), data)
	})
}

// RecordPrediction stores one served prediction. It lets Store act as the
// HTTP server's recorder.
func (s *Store) RecordPrediction(requestID string, at time.Time, record survey.RawRecord, prediction int, probability float64, confidence string) error {
	return s.StorePrediction(PredictionRecord{
		RequestID:   requestID,
		Timestamp:   at,
		Record:      record,
		Prediction:  prediction,
		Probability: probability,
		Confidence:  confidence,
	})
}

// getRecordsInRange scans bucketName for keys whose time prefix lies in
// [start, end] and hands each value to visit. Malformed values are skipped.
func (s *Store) getRecordsInRange(bucketName string, start, end time.Time, visit func([]byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		startKey := []byte(timeKey(start))
		// Every key with this time prefix sorts before prefix+"~".
		endKey := []byte(timeKey(end) + "~")

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if err := visit(v); err != nil {
				continue // Skip malformed records
			}
		}
		return nil
	})
}

// GetPredictionsInRange returns audited predictions with timestamps in
// [start, end], oldest first.
func (s *Store) GetPredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord
	err := s.getRecordsInRange(predictionsBucket, start, end, func(data []byte) error {
		var rec PredictionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of audited predictions.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
