// cache.go — result cache for the NER scanner.
//
// NER inference is comparatively expensive (a model round-trip per call),
// so repeated identical inputs — the same utterance replayed, the same
// boilerplate prefix in every turn of a conversation — are memoized. The
// cache is keyed on the exact text submitted to the NER scanner and stores
// the JSON-encoded match list it returned.
//
// Two implementations, mirroring the teacher's PersistentCache design:
//   - memoryCache — in-memory only, used in tests and when no path is configured.
//   - bboltCache  — embedded key-value store (bbolt), used in production so the
//     cache survives process restarts.
package scanner

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"pii-redactor/internal/logger"
)

// resultCache is the NER result cache interface. All implementations must
// be safe for concurrent use.
type resultCache interface {
	// Get returns the cached JSON match blob for the given text, if present.
	Get(text string) (blob string, ok bool)

	// Set stores text → blob. Overwrites any existing entry silently.
	Set(text, blob string)

	// Delete removes text's cache entry, if any.
	Delete(text string)

	// Close releases any resources held by the cache.
	Close() error
}

// --- memoryCache ---------------------------------------------------------

type memoryCache struct {
	mu    sync.RWMutex
	store map[string]string
}

func newMemoryCache() resultCache {
	return &memoryCache{store: make(map[string]string)}
}

func (c *memoryCache) Get(text string) (string, bool) {
	c.mu.RLock()
	v, ok := c.store[text]
	c.mu.RUnlock()
	return v, ok
}

func (c *memoryCache) Set(text, blob string) {
	c.mu.Lock()
	c.store[text] = blob
	c.mu.Unlock()
}

func (c *memoryCache) Delete(text string) {
	c.mu.Lock()
	delete(c.store, text)
	c.mu.Unlock()
}

func (c *memoryCache) Close() error { return nil }

// --- bboltCache ------------------------------------------------------------

const nerCacheBucket = "ner_cache"

type bboltCache struct {
	db  *bolt.DB
	log *logger.Logger
}

// newBboltCache opens (or creates) the bbolt database at path and ensures
// the bucket exists.
func newBboltCache(path string, log *logger.Logger) (resultCache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open ner cache %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(nerCacheBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create ner cache bucket: %w", err)
	}
	if log != nil {
		log.Infof("cache_open", "NER result cache opened at %s", path)
	}
	return &bboltCache{db: db, log: log}, nil
}

func (c *bboltCache) Get(text string) (string, bool) {
	var blob string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(nerCacheBucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(text))
		if v != nil {
			blob = string(v)
		}
		return nil
	})
	if err != nil {
		if c.log != nil {
			c.log.Warnf("cache_get", "bbolt Get error: %v", err)
		}
		return "", false
	}
	return blob, blob != ""
}

func (c *bboltCache) Set(text, blob string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(nerCacheBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", nerCacheBucket)
		}
		return b.Put([]byte(text), []byte(blob))
	}); err != nil && c.log != nil {
		c.log.Warnf("cache_set", "bbolt Set error: %v", err)
	}
}

func (c *bboltCache) Delete(text string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(nerCacheBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(text))
	}); err != nil && c.log != nil {
		c.log.Warnf("cache_delete", "bbolt Delete error: %v", err)
	}
}

func (c *bboltCache) Close() error {
	return c.db.Close()
}
