package vault

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestBboltGetOrCreateTokenIdempotent(t *testing.T) {
	dir := t.TempDir()
	v, err := NewBbolt(filepath.Join(dir, "vault.db"), nil)
	if err != nil {
		t.Fatalf("NewBbolt: %v", err)
	}
	defer v.Close() //nolint:errcheck // test cleanup

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
	if tok1 != "«EMAIL_001»" {
		t.Errorf("GetOrCreateToken() = %q, want «EMAIL_001»", tok1)
	}
}

func TestBboltSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")

	v1, err := NewBbolt(path, nil)
	if err != nil {
		t.Fatalf("open first instance: %v", err)
	}
	ctx := context.Background()
	tok, err := v1.GetOrCreateToken(ctx, "s1", "SSN", "123-45-6789")
	if err != nil {
		t.Fatalf("GetOrCreateToken: %v", err)
	}
	if err := v1.Close(); err != nil {
		t.Fatalf("close first instance: %v", err)
	}

	v2, err := NewBbolt(path, nil)
	if err != nil {
		t.Fatalf("open second instance: %v", err)
	}
	defer v2.Close() //nolint:errcheck // test cleanup

	dump, err := v2.Dump(ctx, "s1")
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(dump) != 1 || dump[0].Token != tok || dump[0].OriginalValue != "123-45-6789" {
		t.Errorf("entry did not survive restart: %v", dump)
	}

	again, err := v2.GetOrCreateToken(ctx, "s1", "SSN", "123-45-6789")
	if err != nil {
		t.Fatalf("GetOrCreateToken after restart: %v", err)
	}
	if again != tok {
		t.Errorf("counter did not survive restart: got %q, want %q", again, tok)
	}
}

func TestBboltRehydrateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v, err := NewBbolt(filepath.Join(dir, "vault.db"), nil)
	if err != nil {
		t.Fatalf("NewBbolt: %v", err)
	}
	defer v.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	tok, _ := v.GetOrCreateToken(ctx, "s1", "EMAIL", "john@acme.com")
	got, err := v.Rehydrate(ctx, "s1", "reach "+tok+" today")
	if err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if got != "reach john@acme.com today" {
		t.Errorf("Rehydrate() = %q", got)
	}
}

func TestBboltDeleteSession(t *testing.T) {
	dir := t.TempDir()
	v, err := NewBbolt(filepath.Join(dir, "vault.db"), nil)
	if err != nil {
		t.Fatalf("NewBbolt: %v", err)
	}
	defer v.Close() //nolint:errcheck // test cleanup

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

func TestBboltListSessionsSorted(t *testing.T) {
	dir := t.TempDir()
	v, err := NewBbolt(filepath.Join(dir, "vault.db"), nil)
	if err != nil {
		t.Fatalf("NewBbolt: %v", err)
	}
	defer v.Close() //nolint:errcheck // test cleanup

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

func TestNewBboltUnavailableOnBadPath(t *testing.T) {
	_, err := NewBbolt("/nonexistent/dir/vault.db", nil)
	if err == nil {
		t.Fatal("expected an error opening a vault in a nonexistent directory")
	}
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Errorf("expected *UnavailableError, got %T: %v", err, err)
	}
}
