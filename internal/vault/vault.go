// Package vault is the session-scoped, persistent bijection between
// original PII values and the tokens allocated for them (spec.md §4.5).
//
// Two backends share the same Vault interface: an in-memory map for tests
// and stateless deployments, and a bbolt-backed store that survives
// process restarts. Callers hold the interface — there is no global
// singleton — so tests can construct a hermetic in-memory Vault without
// touching disk.
package vault

import (
	"context"
	"errors"
	"fmt"
)

// Entry mirrors spec.md's VaultEntry: one allocated token within a session.
type Entry struct {
	SessionID     string `json:"session_id"`
	Token         string `json:"token"`
	OriginalValue string `json:"original_value"`
	EntityType    string `json:"entity_type"`
	CreatedAt     int64  `json:"created_at"` // unix nanoseconds
}

// ErrUnavailable is the sentinel every UnavailableError matches through
// errors.Is (spec.md §7, VaultUnavailable). Callers should surface it to
// the caller rather than silently falling back to an in-memory vault —
// that would break the rehydration contract for any token already
// allocated durably.
var ErrUnavailable = errors.New("vault unavailable")

// UnavailableError carries the underlying backend failure.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("vault unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Vault is the authoritative store mapping tokens to original values
// within a session.
type Vault interface {
	// GetOrCreateToken returns the token for (session, entityType, value),
	// allocating one if this is the first time this exact triple has been
	// seen in this session. Idempotent and thread-safe (spec.md §4.5).
	GetOrCreateToken(ctx context.Context, session, entityType, value string) (string, error)

	// Rehydrate replaces every token it recognizes in text with the
	// original value; unrecognized tokens pass through verbatim.
	Rehydrate(ctx context.Context, session, text string) (string, error)

	// Dump returns every entry recorded for session.
	Dump(ctx context.Context, session string) ([]Entry, error)

	// ListSessions returns every session with at least one recorded entry.
	ListSessions(ctx context.Context) ([]string, error)

	// DeleteSession removes all entries and counters for session.
	DeleteSession(ctx context.Context, session string) error

	// Close releases any resources (file handles, connections) the vault
	// holds. Must be called when the vault is shut down.
	Close() error
}
