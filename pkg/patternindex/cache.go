package patternindex

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketTokenized = []byte("tokenized_entries")

// cacheEntry is the bbolt-persisted, pre-tokenized shape of a PatternEntry.
// Caching the tokenized keyword slices (rather than re-deriving them on every
// restart) is a pure performance optimization; a cache miss or a corrupt
// cache is never fatal, it just falls back to loadCorpus's own parse.
type cacheEntry struct {
	ID         string         `json:"id"`
	SourceKind string         `json:"source_kind"`
	Keywords   []string       `json:"keywords"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// loadCache reads a cached, tokenized corpus snapshot keyed by version. A
// missing bucket, missing key, or unreadable/unopenable database is treated
// as a cache miss (ok=false), never an error: the cache never gates
// correctness, only repeat-load latency.
func loadCache(cachePath, version string) (entries []cacheEntry, ok bool) {
	if cachePath == "" || version == "" {
		return nil, false
	}

	db, err := bolt.Open(cachePath, 0600, nil)
	if err != nil {
		return nil, false
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokenized)
		if b == nil {
			return fmt.Errorf("no bucket")
		}
		raw := b.Get([]byte(version))
		if raw == nil {
			return fmt.Errorf("no entry for version %s", version)
		}
		return json.Unmarshal(raw, &entries)
	})
	if err != nil {
		return nil, false
	}
	return entries, true
}

// saveCache persists the tokenized corpus under the given version key. Write
// failures are swallowed by the caller's best-effort contract (logged, not
// propagated) — see Load in index.go.
func saveCache(cachePath, version string, entries []cacheEntry) error {
	if cachePath == "" || version == "" {
		return nil
	}

	db, err := bolt.Open(cachePath, 0600, nil)
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	defer db.Close()

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache entries: %w", err)
	}

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketTokenized)
		if err != nil {
			return err
		}
		return b.Put([]byte(version), raw)
	})
}
