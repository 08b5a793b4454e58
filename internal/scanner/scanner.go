// Package scanner detects PII spans in text. A Scanner is constructed once
// at startup and is stateless across calls; the Registry invokes every
// enabled Scanner on the same input and concatenates their output before
// handing it to the span resolver.
package scanner

import (
	"context"

	"pii-redactor/internal/entity"
)

// Scanner accepts text and reports the PII spans it finds. Implementations
// must report half-open spans [start, end) in rune offsets and must not
// mutate any shared state between calls.
type Scanner interface {
	Scan(ctx context.Context, text string) ([]entity.Match, error)
}

// Registry collects scanner output into a single, unresolved span set.
// A scanner that returns an error contributes zero matches for that call
// (spec.md §7, ScannerFailure) — the registry still runs every other
// scanner and never aborts the whole call because one scanner failed.
type Registry struct {
	scanners []namedScanner
	onError  func(name string, err error)
}

type namedScanner struct {
	name string
	s    Scanner
}

// NewRegistry builds a registry from an ordered list of named scanners.
// onError, if non-nil, is invoked for every scanner failure so callers can
// log it; it must not block or panic.
func NewRegistry(onError func(name string, err error)) *Registry {
	return &Registry{onError: onError}
}

// Register adds a scanner under the given name. Name is used only for
// error reporting and does not affect match.Source (scanners set their own
// Source field).
func (r *Registry) Register(name string, s Scanner) {
	r.scanners = append(r.scanners, namedScanner{name: name, s: s})
}

// ScanAll runs every registered scanner against text and concatenates
// their matches. Order of scanners is preserved in the output, but callers
// should treat the result as unordered — the span resolver imposes the
// final ordering.
func (r *Registry) ScanAll(ctx context.Context, text string) []entity.Match {
	var all []entity.Match
	for _, ns := range r.scanners {
		matches, err := ns.s.Scan(ctx, text)
		if err != nil {
			if r.onError != nil {
				r.onError(ns.name, err)
			}
			continue
		}
		all = append(all, matches...)
	}
	return all
}
