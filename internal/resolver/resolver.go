// Package resolver merges and deoverlaps scanner output into the final,
// ordered emission list the redactor walks over (spec.md §4.4).
package resolver

import (
	"fmt"
	"sort"

	"pii-redactor/internal/entity"
)

// ProtocolError signals an internal invariant violation — the resolver's
// greedy sweep produced two overlapping spans, which should be
// structurally impossible given the algorithm below (spec.md §7).
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Detail)
}

// Options configures span resolution.
type Options struct {
	SkipTypes map[entity.Type]bool
	AllowList map[string]bool
}

// Resolve drops skip-typed and allow-listed matches, then sorts and
// deoverlaps the remainder (spec.md §4.4):
//
//  1. Drop any match whose Type is in SkipTypes.
//  2. Drop any match whose exact Text is in AllowList.
//  3. Sort by (start, -length, -score).
//  4. Greedy sweep: emit a span only if its start >= the previously
//     emitted span's end.
func Resolve(matches []entity.Match, opts Options) ([]entity.Match, error) {
	filtered := make([]entity.Match, 0, len(matches))
	for _, m := range matches {
		if opts.SkipTypes[m.Type] {
			continue
		}
		if opts.AllowList[m.Text] {
			continue
		}
		filtered = append(filtered, m)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		return a.Score > b.Score
	})

	resolved := make([]entity.Match, 0, len(filtered))
	lastEnd := -1
	for _, m := range filtered {
		if m.Start < lastEnd {
			continue // overlaps the previously emitted, higher-priority span
		}
		resolved = append(resolved, m)
		lastEnd = m.End
	}

	for i := 1; i < len(resolved); i++ {
		if resolved[i].Start < resolved[i-1].End {
			return nil, &ProtocolError{Detail: fmt.Sprintf(
				"resolved spans overlap: [%d,%d) and [%d,%d)",
				resolved[i-1].Start, resolved[i-1].End, resolved[i].Start, resolved[i].End)}
		}
	}

	return resolved, nil
}
