package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// UsageSnapshot is the feature usage statistics at a point in time. Stats is
// stored as raw JSON so this package does not depend on the tracker type.
type UsageSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Stats     json.RawMessage `json:"stats"`
}

// StoreUsageSnapshot marshals stats and stores it keyed by at.
func (s *Store) StoreUsageSnapshot(at time.Time, stats any) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal usage stats: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(usageBucket))

		data, err := json.Marshal(UsageSnapshot{Timestamp: at, Stats: raw})
		if err != nil {
			return fmt.Errorf("marshal usage snapshot: %w", err)
		}
		return b.Put([]byte(timeKey(at)), data)
	})
}

// GetUsageSnapshots returns snapshots taken in [start, end], oldest first.
func (s *Store) GetUsageSnapshots(start, end time.Time) ([]UsageSnapshot, error) {
	var snaps []UsageSnapshot
	err := s.getRecordsInRange(usageBucket, start, end, func(data []byte) error {
		var snap UsageSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return err
		}
		snaps = append(snaps, snap)
		return nil
	})
	return snaps, err
}

// LatestUsageSnapshot returns the most recent snapshot, or false if none.
func (s *Store) LatestUsageSnapshot() (UsageSnapshot, bool, error) {
	var snap UsageSnapshot
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket([]byte(usageBucket)).Cursor().Last()
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &snap); err != nil {
			return fmt.Errorf("unmarshal usage snapshot: %w", err)
		}
		found = true
		return nil
	})
	return snap, found, err
}
