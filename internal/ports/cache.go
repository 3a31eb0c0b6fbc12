package ports

import "time"

// Cache stores provider payloads so repeated lookups of the same parcel do
// not hit the paid upstream API. The backing store (bbolt) keeps one
// namespace per payload kind ("parcels", "structures", "zoning").
// Concurrent reads are safe; writes are serialized by the adapter.
//
// Crash safety: Put must be transactional. A crash mid-write must not
// corrupt previously committed entries.
type Cache interface {
	// Put stores value under (namespace, key), stamped with the current time.
	// Overwrites any prior entry.
	Put(namespace, key string, value []byte) error

	// Get returns the entry for (namespace, key) if it was stored less than
	// maxAge ago. A maxAge of zero accepts any age. Returns nil, nil when the
	// entry is missing or stale.
	Get(namespace, key string, maxAge time.Duration) ([]byte, error)

	// Purge removes every entry in every namespace and reports how many
	// entries were removed. Idempotent.
	Purge() (int, error)
}
