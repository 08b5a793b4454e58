// bbolt.go — the persistent Vault backend.
//
// Grounded on the teacher's bboltCache (internal/anonymizer/cache.go): open
// (or create) a single bbolt database file, keep one bucket per concern,
// and wrap every bolt error in the domain's unavailability error rather
// than letting *bolt.Tx errors leak to callers. Here the "concern" is one
// bucket per session, since bbolt buckets give free sorted iteration
// (ListSessions) and free atomic wholesale removal (DeleteSession).
//
// Bucket layout, within a session's bucket:
//
//	"v:" + entityType + "\x00" + value  -> token      (value -> token lookup)
//	"t:" + token                        -> entry JSON (token -> entry, for Rehydrate/Dump)
//	"c:" + entityType                   -> big-endian uint64 counter
package vault

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"pii-redactor/internal/logger"
)

const sessionBucketPrefix = "session:"

// bboltVault is the persistent backend: one database file, one bucket per
// session, fsync'd on every write transaction (spec.md §4.5: "durable write
// before token return").
type bboltVault struct {
	db  *bolt.DB
	log *logger.Logger
}

// NewBbolt opens (or creates) the vault database at path.
func NewBbolt(path string, log *logger.Logger) (Vault, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("open vault database %q: %w", path, err)}
	}
	if log != nil {
		log.Infof("vault_open", "persistent vault opened at %s", path)
	}
	return &bboltVault{db: db, log: log}, nil
}

func sessionBucketName(session string) []byte {
	return []byte(sessionBucketPrefix + session)
}

func valueKey(entityType, value string) []byte {
	return []byte("v:" + entityType + "\x00" + value)
}

func tokenKey(token string) []byte {
	return []byte("t:" + token)
}

func counterKey(entityType string) []byte {
	return []byte("c:" + entityType)
}

func (v *bboltVault) GetOrCreateToken(_ context.Context, session, entityType, value string) (string, error) {
	var token string
	err := v.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionBucketName(session))
		if err != nil {
			return err
		}

		vKey := valueKey(entityType, value)
		if existing := b.Get(vKey); existing != nil {
			token = string(existing)
			return nil
		}

		next := uint64(1)
		if raw := b.Get(counterKey(entityType)); raw != nil {
			next = binary.BigEndian.Uint64(raw) + 1
		}
		var counterBytes [8]byte
		binary.BigEndian.PutUint64(counterBytes[:], next)
		if err := b.Put(counterKey(entityType), counterBytes[:]); err != nil {
			return err
		}

		token = formatToken(entityType, int(next))

		entry := Entry{
			SessionID:     session,
			Token:         token,
			OriginalValue: value,
			EntityType:    entityType,
			CreatedAt:     time.Now().UnixNano(),
		}
		entryBlob, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal vault entry: %w", err)
		}

		if err := b.Put(vKey, []byte(token)); err != nil {
			return err
		}
		return b.Put(tokenKey(token), entryBlob)
	})
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	return token, nil
}

func (v *bboltVault) Rehydrate(_ context.Context, session, text string) (string, error) {
	var entries map[string]Entry
	err := v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucketName(session))
		if b == nil {
			return nil
		}
		entries = make(map[string]Entry)
		return b.ForEach(func(k, val []byte) error {
			if !hasPrefix(k, "t:") {
				return nil
			}
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode vault entry %q: %w", string(k), err)
			}
			entries[e.Token] = e
			return nil
		})
	})
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	if entries == nil {
		return text, nil
	}

	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		e, ok := entries[tok]
		if !ok {
			return tok
		}
		return e.OriginalValue
	}), nil
}

func (v *bboltVault) Dump(_ context.Context, session string) ([]Entry, error) {
	var out []Entry
	err := v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucketName(session))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, val []byte) error {
			if !hasPrefix(k, "t:") {
				return nil
			}
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode vault entry %q: %w", string(k), err)
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (v *bboltVault) ListSessions(_ context.Context) ([]string, error) {
	var out []string
	err := v.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if hasPrefix(name, sessionBucketPrefix) {
				out = append(out, string(name[len(sessionBucketPrefix):]))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	sort.Strings(out)
	return out, nil
}

func (v *bboltVault) DeleteSession(_ context.Context, session string) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(sessionBucketName(session)) == nil {
			return nil
		}
		return tx.DeleteBucket(sessionBucketName(session))
	})
	if err != nil {
		return &UnavailableError{Err: err}
	}
	return nil
}

func (v *bboltVault) Close() error {
	return v.db.Close()
}

func hasPrefix(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == prefix
}
