package vault

import (
	"context"
	"sync"
	"testing"
)

func TestGetOrCreateTokenIdempotent(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	tok1, err := v.GetOrCreateToken(ctx, "s1", "EMAIL", "a@b.co")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	tok2, err := v.GetOrCreateToken(ctx, "s1", "EMAIL", "a@b.co")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if tok1 != tok2 {
		t.Errorf("expected idempotent token, got %q then %q", tok1, tok2)
	}
}

func TestGetOrCreateTokenDistinctValuesGetDistinctTokens(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	tok1, _ := v.GetOrCreateToken(ctx, "s1", "PHONE", "555-0001")
	tok2, _ := v.GetOrCreateToken(ctx, "s1", "PHONE", "555-0002")
	if tok1 == tok2 {
		t.Fatalf("expected distinct tokens, got %q twice", tok1)
	}
	if tok1 != "«PHONE_001»" || tok2 != "«PHONE_002»" {
		t.Errorf("expected «PHONE_001»/«PHONE_002», got %q/%q", tok1, tok2)
	}
}

func TestGetOrCreateTokenCountersIndependentPerType(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	phone, _ := v.GetOrCreateToken(ctx, "s1", "PHONE", "555-0001")
	email, _ := v.GetOrCreateToken(ctx, "s1", "EMAIL", "a@b.co")
	if phone != "«PHONE_001»" || email != "«EMAIL_001»" {
		t.Errorf("expected independent per-type counters, got %q / %q", phone, email)
	}
}

func TestGetOrCreateTokenSessionsIsolated(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	tok1, _ := v.GetOrCreateToken(ctx, "s1", "EMAIL", "a@b.co")
	tok2, _ := v.GetOrCreateToken(ctx, "s2", "EMAIL", "a@b.co")
	if tok1 != tok2 {
		t.Errorf("expected matching counters across independent sessions, got %q / %q", tok1, tok2)
	}

	dump1, _ := v.Dump(ctx, "s1")
	dump2, _ := v.Dump(ctx, "s2")
	if len(dump1) != 1 || len(dump2) != 1 {
		t.Fatalf("expected one entry per session, got %d / %d", len(dump1), len(dump2))
	}
}

func TestRehydrateRoundTrip(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	tok, _ := v.GetOrCreateToken(ctx, "s1", "EMAIL", "john@acme.com")
	text := "contact " + tok + " for details"
	got, err := v.Rehydrate(ctx, "s1", text)
	if err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if want := "contact john@acme.com for details"; got != want {
		t.Errorf("Rehydrate() = %q, want %q", got, want)
	}
}

func TestRehydrateUnknownTokenPassesThrough(t *testing.T) {
	v := NewMemory()
	got, err := v.Rehydrate(context.Background(), "unknown-session", "has «EMAIL_001» in it")
	if err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if got != "has «EMAIL_001» in it" {
		t.Errorf("expected unrecognized token to pass through verbatim, got %q", got)
	}
}

func TestDeleteSessionClearsEntries(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	v.GetOrCreateToken(ctx, "s1", "EMAIL", "a@b.co")
	if err := v.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	dump, err := v.Dump(ctx, "s1")
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(dump) != 0 {
		t.Errorf("expected empty dump after delete, got %v", dump)
	}
}

func TestListSessionsSorted(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	v.GetOrCreateToken(ctx, "zeta", "EMAIL", "a@b.co")
	v.GetOrCreateToken(ctx, "alpha", "EMAIL", "a@b.co")

	sessions, err := v.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "alpha" || sessions[1] != "zeta" {
		t.Errorf("ListSessions() = %v, want sorted [alpha zeta]", sessions)
	}
}

func TestGetOrCreateTokenConcurrentSameValueYieldsSameToken(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	const n = 50
	tokens := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			tok, err := v.GetOrCreateToken(ctx, "s1", "SSN", "123-45-6789")
			if err != nil {
				t.Errorf("GetOrCreateToken: %v", err)
			}
			tokens[i] = tok
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("expected every concurrent call to return the same token, got %q and %q", tokens[0], tokens[i])
		}
	}
}
