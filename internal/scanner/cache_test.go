package scanner

import (
	"path/filepath"
	"testing"
)

func TestMemoryCacheGetSetDelete(t *testing.T) {
	c := newMemoryCache()
	defer c.Close()

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("a", `[{"type":"EMAIL"}]`)
	v, ok := c.Get("a")
	if !ok || v != `[{"type":"EMAIL"}]` {
		t.Fatalf("Get after Set = %q, %v", v, ok)
	}

	c.Set("a", `[{"type":"PHONE"}]`)
	v, ok = c.Get("a")
	if !ok || v != `[{"type":"PHONE"}]` {
		t.Fatalf("Set should overwrite, got %q, %v", v, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestBboltCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ner_cache.db")

	c1, err := newBboltCache(path, nil)
	if err != nil {
		t.Fatalf("newBboltCache: %v", err)
	}
	c1.Set("hello world", `[{"type":"PERSON"}]`)
	if err := c1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	c2, err := newBboltCache(path, nil)
	if err != nil {
		t.Fatalf("reopen newBboltCache: %v", err)
	}
	defer c2.Close()

	v, ok := c2.Get("hello world")
	if !ok || v != `[{"type":"PERSON"}]` {
		t.Fatalf("Get after reopen = %q, %v", v, ok)
	}

	c2.Delete("hello world")
	if _, ok := c2.Get("hello world"); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestBboltCacheMissOnUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ner_cache.db")
	c, err := newBboltCache(path, nil)
	if err != nil {
		t.Fatalf("newBboltCache: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get("never set"); ok {
		t.Fatal("expected miss for unknown key")
	}
}
