// Package mkv is a small embedded key-value store wrapping go.etcd.io/bbolt,
// used client-side to cache the active Permit and its local usage counters
// (spec.md §3.3) across restarts. Grounded on the bucket-per-entity,
// json.Marshal-per-record pattern from cuemby-warren's pkg/storage.BoltStore.
package mkv

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
)

// Store is a bucketed, JSON-valued embedded key-value store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at <dataDir>/yorutsuke.db
// and ensures every named bucket exists.
func Open(dataDir string, buckets ...string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "yorutsuke.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("mkv: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return fmt.Errorf("mkv: create bucket %s: %w", b, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put marshals value as JSON and stores it under key in bucket.
func (s *Store) Put(bucket, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("mkv: marshal: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("mkv: unknown bucket %s", bucket)
		}

		return b.Put([]byte(key), data)
	})
}

// Get unmarshals the record stored under key in bucket into out. Returns an
// EntityNotFoundError if no record exists.
func (s *Store) Get(bucket, key string, out any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("mkv: unknown bucket %s", bucket)
		}

		data := b.Get([]byte(key))
		if data == nil {
			return mzerrors.EntityNotFoundError{EntityType: bucket, Message: fmt.Sprintf("%s/%s not found", bucket, key)}
		}

		dataCopy := make([]byte, len(data))
		copy(dataCopy, data)

		return json.Unmarshal(dataCopy, out)
	})
}

// Delete removes the record stored under key in bucket, if any.
func (s *Store) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("mkv: unknown bucket %s", bucket)
		}

		return b.Delete([]byte(key))
	})
}

// ForEach iterates every key/value pair in bucket in key order, invoking fn
// with the raw JSON bytes for each record. Stops early if fn returns an error.
func (s *Store) ForEach(bucket string, fn func(key string, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("mkv: unknown bucket %s", bucket)
		}

		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}
