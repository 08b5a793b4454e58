package scanner

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"pii-redactor/internal/entity"
)

// pattern pairs a compiled regex with the entity type it identifies.
// Regex matches are deterministic by contract (spec.md §3) so every
// pattern carries a fixed score of 1.0.
type pattern struct {
	re      *regexp.Regexp
	theType entity.Type
}

// RegexScanner is the zero-dependency detection floor: a fixed, ordered
// catalogue of patterns that must function with the NER layer disabled
// (spec.md §4.2).
type RegexScanner struct {
	patterns  []pattern
	checkLuhn bool // optional Luhn validation for CREDIT_CARD (spec.md §9 Open Question)
}

// RegexOption configures a RegexScanner at construction time.
type RegexOption func(*RegexScanner)

// WithLuhnCheck enables Luhn-digit validation for CREDIT_CARD matches;
// failures are skipped rather than reported (spec.md §4.2).
func WithLuhnCheck() RegexOption {
	return func(s *RegexScanner) { s.checkLuhn = true }
}

// NewRegexScanner compiles the required pattern catalogue.
func NewRegexScanner(opts ...RegexOption) *RegexScanner {
	s := &RegexScanner{}
	for _, o := range opts {
		o(s)
	}
	s.compile()
	return s
}

func (s *RegexScanner) compile() {
	specs := []struct {
		expr string
		typ  entity.Type
	}{
		{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, entity.Email},
		{`(?i)(?:api[_\-]?key|token|secret)\s*[=:]\s*[A-Za-z0-9_\-]{16,}`, entity.APIKey},
		{`https?://[^\s"']*[?&](?i:key|token|secret|apikey)=[^\s"'&]+[^\s"']*`, entity.URLWithSecret},
		{`\b\d{3}\s\d{5}\s\d\b`, entity.AUMedicare},
		{`\b\d{3}\s\d{3}\s\d{3}\b`, entity.AUTFN},
		{`\b\d{3}-\d{2}-\d{4}\b`, entity.SSN},
		{`\b(?:\d{4}[\-\s]){3}\d{4}\b|\b\d{13,19}\b`, entity.CreditCard},
		{`\b(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(?:\.(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}\b`, entity.IPAddress},
		{`\b\d{4}-\d{2}-\d{2}\b`, entity.DateOfBirth},
		{`\+?\d{0,3}[\s.\-]?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`, entity.Phone},
	}
	for _, sp := range specs {
		re, err := regexp.Compile(sp.expr)
		if err != nil {
			// A catalogue entry that fails to compile is a programming error,
			// not a runtime condition: it can never happen with the fixed
			// expressions above, so there is nothing sensible to recover at
			// runtime. Skip it rather than panic in production code.
			continue
		}
		s.patterns = append(s.patterns, pattern{re: re, theType: sp.typ})
	}
}

// Scan implements Scanner.
func (s *RegexScanner) Scan(_ context.Context, text string) ([]entity.Match, error) {
	var matches []entity.Match
	for _, p := range s.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			byteStart, byteEnd := loc[0], loc[1]
			raw := text[byteStart:byteEnd]
			if p.theType == entity.CreditCard && s.checkLuhn {
				digits := stripNonDigits(raw)
				if len(digits) < 13 || len(digits) > 19 || !luhnValid(digits) {
					continue
				}
			}
			start := utf8.RuneCountInString(text[:byteStart])
			end := start + utf8.RuneCountInString(raw)
			matches = append(matches, entity.Match{
				Type:   p.theType,
				Text:   raw,
				Start:  start,
				End:    end,
				Score:  1.0,
				Source: "regex",
			})
		}
	}
	return matches, nil
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhnValid reports whether the digit string passes the Luhn checksum.
func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d, err := strconv.Atoi(string(digits[i]))
		if err != nil {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
