// Package entity defines the canonical PII entity types, the detected-span
// representation shared by every scanner, and the textual token shape the
// vault allocates in place of raw values.
package entity

import "fmt"

// Type is a closed-set PII category tag. Custom scanners may mint
// additional values at config time; Type is not a Go enum with an
// exhaustiveness check because the registry must accept scanner-contributed
// tags it has never seen before.
type Type string

// Required entity types (spec.md §3).
const (
	Email         Type = "EMAIL"
	Phone         Type = "PHONE"
	CreditCard    Type = "CREDIT_CARD"
	SSN           Type = "SSN"
	IPAddress     Type = "IP_ADDRESS"
	DateOfBirth   Type = "DATE_OF_BIRTH"
	AUTFN         Type = "AU_TFN"
	AUMedicare    Type = "AU_MEDICARE"
	URLWithSecret Type = "URL_WITH_SECRET"
	APIKey        Type = "API_KEY"
	Person        Type = "PERSON"
	Organization  Type = "ORGANIZATION"
	Location      Type = "LOCATION"
	NRP           Type = "NRP"
	URL           Type = "URL"
	DateTime      Type = "DATE_TIME"
)

// Match is a single detected PII span.
type Match struct {
	Type   Type    `json:"type"`
	Text   string  `json:"text"`
	Start  int     `json:"start"` // rune offset, half-open [Start, End)
	End    int     `json:"end"`
	Score  float64 `json:"score"`
	Source string  `json:"source"` // "regex", "ner", or "custom:<name>"
}

// Len returns the span length in runes.
func (m Match) Len() int { return m.End - m.Start }

// Token delimiters. U+00AB/U+00BB are chosen because, by contract, this
// pair never appears in redactable content — the vault and the streaming
// rehydrator both rely on that invariant to find token boundaries.
const (
	TokenOpen  = "«"
	TokenClose = "»"
)

// FormatToken renders the canonical token shape «TYPE_NNN», left-padding
// the counter to a minimum of three digits. Counters above 999 widen the
// number rather than truncating it (spec.md §4.3/§9).
func FormatToken(t Type, counter int) string {
	return fmt.Sprintf("%s%s_%03d%s", TokenOpen, t, counter, TokenClose)
}
