package vault

import "regexp"

// tokenRe matches the canonical token shape «TYPE_NNN» anywhere in text.
// The greedy [A-Z_]+ consumes the whole TYPE_NNN run up front (digits stop
// it, since they are outside the character class) and backtracks one
// underscore to satisfy the trailing literal "_", which is exactly the
// split point between a type name that may itself contain underscores
// (e.g. CREDIT_CARD) and its counter.
var tokenRe = regexp.MustCompile(`«([A-Z_]+)_([0-9]+)»`)
