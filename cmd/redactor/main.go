// Command redactor is the PII redaction sidecar: a local HTTP service and
// CLI for redacting and rehydrating PII in LLM chat turns, with session-
// scoped token vaulting so the same value always maps to the same token
// for the lifetime of a conversation.
//
// Usage:
//
//	redactor serve --port 8385
//	echo '{"text":"call me at 555-0100"}' | redactor redact-text --session-id s1
//	redactor sessions
package main

import "os"

func main() {
	os.Exit(run())
}
