// Package redactor is the top-level pipeline: scan, resolve, substitute
// (spec.md §4.6). It owns no state of its own beyond its scanner registry
// and the vault it is handed at construction — all session state lives in
// the vault.
package redactor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pii-redactor/internal/entity"
	"pii-redactor/internal/logger"
	"pii-redactor/internal/metrics"
	"pii-redactor/internal/resolver"
	"pii-redactor/internal/scanner"
	"pii-redactor/internal/vault"
)

// InvalidInput signals malformed caller input (spec.md §7): empty session
// ID where one is required, or a message list with no content.
type InvalidInput struct {
	Detail string
}

func (e *InvalidInput) Error() string { return fmt.Sprintf("invalid input: %s", e.Detail) }

// Result mirrors spec.md's RedactResult.
type Result struct {
	Text       string         `json:"text"`
	Entities   []entity.Match `json:"entities"`
	TokenCount int            `json:"token_count"`
}

// Message is one chat turn; only Role == "user" or "tool" is redacted
// (spec.md §4.6, redact_messages).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RuleSource supplies the live skip-type and allow-list sets, satisfied by
// *internal/admin.RuleSet. Kept as a narrow local interface so this
// package does not depend on the admin API just to read its rule set.
type RuleSource interface {
	SkipTypes() map[entity.Type]bool
	AllowList() map[string]bool
}

// Redactor ties a scanner registry, span resolver, and vault into the
// redact/redact_messages operations.
type Redactor struct {
	registry  *scanner.Registry
	vault     vault.Vault
	skipTypes map[entity.Type]bool
	allowList map[string]bool
	rules     RuleSource // optional; live-reloadable rules layered on top of the static ones
	log       *logger.Logger
	m         *metrics.Metrics
}

// Option configures a Redactor at construction time.
type Option func(*Redactor)

// WithSkipTypes excludes the given entity types from every redact call.
func WithSkipTypes(types []entity.Type) Option {
	return func(r *Redactor) {
		for _, t := range types {
			r.skipTypes[t] = true
		}
	}
}

// WithAllowList exempts the given exact literal values from redaction.
func WithAllowList(values []string) Option {
	return func(r *Redactor) {
		for _, v := range values {
			r.allowList[v] = true
		}
	}
}

// WithMetrics attaches a metrics sink. Pass nil to disable.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Redactor) { r.m = m }
}

// WithRuleSource layers a live rule source (the admin API's RuleSet) on
// top of the static WithSkipTypes/WithAllowList configuration. Runtime
// additions made through the admin API take effect on the next Redact
// call without restarting the process.
func WithRuleSource(rules RuleSource) Option {
	return func(r *Redactor) { r.rules = rules }
}

// effectiveRules merges the static configuration with the live rule
// source, if any.
func (r *Redactor) effectiveRules() (skip map[entity.Type]bool, allow map[string]bool) {
	if r.rules == nil {
		return r.skipTypes, r.allowList
	}
	skip = make(map[entity.Type]bool, len(r.skipTypes))
	for t := range r.skipTypes {
		skip[t] = true
	}
	for t := range r.rules.SkipTypes() {
		skip[t] = true
	}
	allow = make(map[string]bool, len(r.allowList))
	for v := range r.allowList {
		allow[v] = true
	}
	for v := range r.rules.AllowList() {
		allow[v] = true
	}
	return skip, allow
}

// New builds a Redactor over the given scanner registry and vault.
func New(registry *scanner.Registry, v vault.Vault, log *logger.Logger, opts ...Option) *Redactor {
	r := &Redactor{
		registry:  registry,
		vault:     v,
		skipTypes: make(map[entity.Type]bool),
		allowList: make(map[string]bool),
		log:       log,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Redact scans text, resolves overlaps, and substitutes every surviving
// match with its vault token (spec.md §4.6).
func (r *Redactor) Redact(ctx context.Context, session, text string) (Result, error) {
	if session == "" {
		return Result{}, &InvalidInput{Detail: "session is required"}
	}

	start := time.Now()
	defer func() {
		if r.m != nil {
			r.m.RecordRedactLatency(time.Since(start))
		}
	}()

	matches := r.registry.ScanAll(ctx, text)

	skip, allow := r.effectiveRules()
	resolved, err := resolver.Resolve(matches, resolver.Options{
		SkipTypes: skip,
		AllowList: allow,
	})
	if err != nil {
		if r.log != nil {
			r.log.Errorf("redact_protocol_error", "span resolution failed for session %s: %v", session, err)
		}
		if r.m != nil {
			r.m.ScannerErrors.Add(1)
		}
		return Result{}, err
	}

	out, err := r.substitute(ctx, session, text, resolved)
	if err != nil {
		return Result{}, err
	}

	if r.m != nil {
		r.m.RedactCalls.Add(1)
		r.m.TokensAllocated.Add(int64(len(resolved)))
	}

	return Result{Text: out, Entities: resolved, TokenCount: len(resolved)}, nil
}

// substitute walks text left to right, replacing each resolved match with
// its vault token. resolved must already be sorted and non-overlapping
// (resolver.Resolve's contract).
func (r *Redactor) substitute(ctx context.Context, session, text string, resolved []entity.Match) (string, error) {
	runes := []rune(text)
	var b strings.Builder
	cursor := 0
	for _, m := range resolved {
		if m.Start < cursor || m.End > len(runes) {
			continue // defensive: resolver guarantees this cannot happen
		}
		b.WriteString(string(runes[cursor:m.Start]))
		token, err := r.vault.GetOrCreateToken(ctx, session, string(m.Type), m.Text)
		if err != nil {
			return "", fmt.Errorf("redact: %w", err)
		}
		b.WriteString(token)
		cursor = m.End
	}
	b.WriteString(string(runes[cursor:]))
	return b.String(), nil
}

// RedactMessages redacts only user- and tool-authored messages, passing
// system and assistant messages through unchanged (spec.md §4.6). This is
// the spec's explicit default for the otherwise-open question of whether
// assistant output should ever be redacted.
func (r *Redactor) RedactMessages(ctx context.Context, session string, messages []Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, &InvalidInput{Detail: "messages must not be empty"}
	}

	out := make([]Message, len(messages))
	for i, msg := range messages {
		if msg.Role != "user" && msg.Role != "tool" {
			out[i] = msg
			continue
		}
		result, err := r.Redact(ctx, session, msg.Content)
		if err != nil {
			return nil, err
		}
		out[i] = Message{Role: msg.Role, Content: result.Text}
	}
	return out, nil
}
