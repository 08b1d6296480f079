package escalation

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

var bucketCases = []byte("escalation_cases")

// BoltStore is a bbolt-backed Store, demonstrating that a persistent
// backend is substitutable behind the Store interface without changing
// EscalationManager's call sites (spec.md §4.6), grounded in the teacher's
// pkg/storage bucket-per-entity pattern.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "escalations.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open escalation database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCases)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create escalation bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Create(c *qatypes.EscalationCase) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCases)
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return b.Put([]byte(c.CaseID), data)
	})
}

func (s *BoltStore) Get(caseID string) (*qatypes.EscalationCase, error) {
	var c qatypes.EscalationCase
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCases)
		data := b.Get([]byte(caseID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BoltStore) Update(c *qatypes.EscalationCase) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCases)
		if b.Get([]byte(c.CaseID)) == nil {
			return ErrNotFound
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return b.Put([]byte(c.CaseID), data)
	})
}

func (s *BoltStore) List(filter Filter) ([]*qatypes.EscalationCase, error) {
	var out []*qatypes.EscalationCase
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCases)
		return b.ForEach(func(k, v []byte) error {
			var c qatypes.EscalationCase
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			if filter.Matches(&c) {
				out = append(out, &c)
			}
			return nil
		})
	})
	return out, err
}
