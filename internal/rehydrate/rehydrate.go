// Package rehydrate implements the streaming token-rehydration state
// machine (spec.md §4.7): tokens arrive split across arbitrary chunk
// boundaries (as they do from an LLM's streamed SSE output), and the
// rehydrator must reassemble and replace them without ever emitting a
// partial token to the caller.
//
// The design is grounded on the teacher's StreamingDeanonymize
// (internal/anonymizer/anonymizer.go): accumulate candidate token text in a
// buffer, hold back only the suffix that could still be the start of a
// token, and flush everything else through a replacer. This package
// replaces that ad hoc accumulation with an explicit state enum, per
// spec.md's redesign guidance, so the transition logic is something a
// reader can follow without re-deriving it from string-index arithmetic.
package rehydrate

import (
	"context"
	"strings"

	"pii-redactor/internal/vault"
)

// State names the rehydrator's position in the token-recognition state
// machine (spec.md §4.7).
type State int

const (
	// Scanning: no candidate token open; ordinary text is emitted immediately.
	Scanning State = iota
	// Pending: an open guillemet has been seen and the rehydrator is
	// buffering, waiting to see whether it completes into a token.
	Pending
	// Matched: a complete, recognized token; resolved in this Feed call.
	Matched
	// Aborted: the pending text cannot continue a token (a rune outside
	// [A-Z0-9_] arrived, or the buffer grew past maxPending without
	// closing) — it is flushed verbatim and scanning resumes (spec.md §9).
	Aborted
)

// maxPending bounds the PENDING buffer. «URL_WITH_SECRET_001» is the longest
// token shape the catalogue produces; 256 gives generous headroom for any
// future entity type name without risking unbounded memory growth on
// adversarial input that opens a guillemet and never closes it.
const maxPending = 256

// Rehydrator is a per-connection streaming token replacer. It is not safe
// for concurrent use; callers hold one per in-flight response stream.
type Rehydrator struct {
	vault   vault.Vault
	session string

	state   State
	pending strings.Builder
}

// New returns a Rehydrator that resolves tokens against v for the given
// session.
func New(v vault.Vault, session string) *Rehydrator {
	return &Rehydrator{vault: v, session: session, state: Scanning}
}

// State reports the rehydrator's current state.
func (r *Rehydrator) State() State { return r.state }

// Feed consumes one chunk of streamed text and returns the portion that is
// safe to emit downstream immediately. Text that might be the prefix of a
// token spanning into the next chunk is held in the internal buffer and
// returned later, from a subsequent Feed or from Flush.
//
// Invariant (spec.md §8): for any sequence of chunks,
// strings.Join(outputs, "") from repeated Feed calls followed by Flush
// equals a single Rehydrate call over the concatenation of those chunks.
func (r *Rehydrator) Feed(ctx context.Context, chunk string) string {
	var out strings.Builder
	for _, ch := range chunk {
		r.step(ctx, ch, &out)
	}
	return out.String()
}

// step consumes a single rune and advances the state machine.
func (r *Rehydrator) step(ctx context.Context, ch rune, out *strings.Builder) {
	switch r.state {
	case Scanning:
		if ch == openGuillemet {
			r.pending.WriteRune(ch)
			r.state = Pending
			return
		}
		out.WriteRune(ch)

	case Pending:
		if ch != closeGuillemet && ch != '_' && (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			// ch cannot continue a token: emit the prefix verbatim and
			// reprocess ch from Scanning (it may open a new candidate).
			r.state = Aborted
			out.WriteString(r.pending.String())
			r.pending.Reset()
			r.state = Scanning
			r.step(ctx, ch, out)
			return
		}
		r.pending.WriteRune(ch)
		if ch == closeGuillemet {
			r.resolvePending(ctx, out)
			return
		}
		if r.pending.Len() > maxPending {
			r.state = Aborted
			out.WriteString(r.pending.String())
			r.pending.Reset()
			r.state = Scanning
			return
		}

	default:
		// Scan/Pending are the only reachable states between calls;
		// Matched and Aborted are transient and always reset to Scanning
		// before step returns, so this branch is unreachable in practice.
		r.state = Scanning
		r.step(ctx, ch, out)
	}
}

const (
	openGuillemet  = '«'
	closeGuillemet = '»'
)

// resolvePending rehydrates the just-closed token candidate and resets to
// Scanning. If the buffered text does not actually match the token shape
// (e.g. a lone "«»" or stray guillemets in ordinary prose), it is emitted
// verbatim — the vault's Rehydrate is the single source of truth for what
// counts as a token.
func (r *Rehydrator) resolvePending(ctx context.Context, out *strings.Builder) {
	r.state = Matched
	candidate := r.pending.String()
	r.pending.Reset()

	resolved, err := r.vault.Rehydrate(ctx, r.session, candidate)
	if err != nil {
		// VaultUnavailable: emit the candidate verbatim rather than
		// dropping it. The vault error itself is not reported: Feed
		// returns only text, so the caller cannot tell this case apart
		// from an unknown token.
		out.WriteString(candidate)
		r.state = Scanning
		return
	}
	out.WriteString(resolved)
	r.state = Scanning
}

// Flush returns any buffered text that never completed into a token
// because the stream ended first, and resets the rehydrator to Scanning.
// Per spec.md §4.7 this buffered text is emitted verbatim, never dropped.
func (r *Rehydrator) Flush() string {
	out := r.pending.String()
	r.pending.Reset()
	r.state = Scanning
	return out
}
