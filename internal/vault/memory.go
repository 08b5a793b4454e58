package vault

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memoryVault is the in-memory backend: lost on process exit, used for
// vault_backend: "memory" and in tests (spec.md §4.5).
type memoryVault struct {
	mu       sync.Mutex // guards the sessions map and every sessionState reachable from it
	sessions map[string]*sessionState
}

type sessionState struct {
	// (entityType, value) -> token
	tokens map[string]string
	// token -> entry
	entries map[string]Entry
	// entityType -> next counter
	counters map[string]int
}

func newSessionState() *sessionState {
	return &sessionState{
		tokens:   make(map[string]string),
		entries:  make(map[string]Entry),
		counters: make(map[string]int),
	}
}

// NewMemory returns an in-memory Vault.
func NewMemory() Vault {
	return &memoryVault{sessions: make(map[string]*sessionState)}
}

func (v *memoryVault) GetOrCreateToken(_ context.Context, session, entityType, value string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.sessions[session]
	if !ok {
		s = newSessionState()
		v.sessions[session] = s
	}

	key := entityType + "\x00" + value
	if token, ok := s.tokens[key]; ok {
		return token, nil
	}

	s.counters[entityType]++
	token := formatToken(entityType, s.counters[entityType])

	s.tokens[key] = token
	s.entries[token] = Entry{
		SessionID:     session,
		Token:         token,
		OriginalValue: value,
		EntityType:    entityType,
		CreatedAt:     time.Now().UnixNano(),
	}
	return token, nil
}

func (v *memoryVault) Rehydrate(_ context.Context, session, text string) (string, error) {
	v.mu.Lock()
	s, ok := v.sessions[session]
	v.mu.Unlock()
	if !ok {
		return text, nil
	}

	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		v.mu.Lock()
		entry, found := s.entries[tok]
		v.mu.Unlock()
		if !found {
			return tok
		}
		return entry.OriginalValue
	}), nil
}

func (v *memoryVault) Dump(_ context.Context, session string) ([]Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.sessions[session]
	if !ok {
		return nil, nil
	}
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (v *memoryVault) ListSessions(_ context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]string, 0, len(v.sessions))
	for id := range v.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (v *memoryVault) DeleteSession(_ context.Context, session string) error {
	v.mu.Lock()
	delete(v.sessions, session)
	v.mu.Unlock()
	return nil
}

func (v *memoryVault) Close() error { return nil }

// formatToken is a package-local mirror of entity.FormatToken; vault
// cannot import entity without creating EntityType<->string churn at every
// call site, so it formats directly from the string entityType it is
// given. Both must stay in lockstep with the «TYPE_NNN» shape.
func formatToken(entityType string, counter int) string {
	return fmt.Sprintf("«%s_%03d»", entityType, counter)
}
