// Package bbolt implements the ports.Cache interface using bbolt (embedded B+ tree).
// Each namespace gets its own top-level bucket. Values are wrapped in a small
// JSON envelope carrying the time they were stored. Writes are transactional,
// so a crash mid-write cannot corrupt previously committed entries.
package bbolt

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// entry is the on-disk form of a cached value.
type entry struct {
	StoredAt time.Time       `json:"stored_at"`
	Value    json.RawMessage `json:"value"`
}

// Store implements ports.Cache backed by bbolt.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// NewStore opens (or creates) a bbolt database at the given path.
// A second process holding the file lock makes this fail after one second.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Put stores value under (namespace, key). Values must be valid JSON since
// they are embedded in the envelope as-is.
func (s *Store) Put(namespace, key string, value []byte) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("cache put: empty namespace or key")
	}
	if !json.Valid(value) {
		return fmt.Errorf("cache put %s/%s: value is not JSON", namespace, key)
	}
	data, err := json.Marshal(entry{StoredAt: s.now().UTC(), Value: value})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Get returns the value for (namespace, key) if it is younger than maxAge.
// Returns nil, nil if the entry is missing or stale.
func (s *Store) Get(namespace, key string, maxAge time.Duration) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		// bbolt memory is only valid inside the transaction.
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s: %w", namespace, key, err)
	}
	if data == nil {
		return nil, nil
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s/%s: %w", namespace, key, err)
	}
	if maxAge > 0 && s.now().Sub(e.StoredAt) >= maxAge {
		return nil, nil
	}
	return []byte(e.Value), nil
}

// Purge drops every namespace bucket and returns the number of entries removed.
func (s *Store) Purge() (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		err := tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			removed += b.Stats().KeyN
			names = append(names, append([]byte(nil), name...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return removed, nil
}

// Stats reports the entry count per namespace.
func (s *Store) Stats() (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			counts[string(name)] = b.Stats().KeyN
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	return counts, nil
}
