package bootstrap

import (
	"context"
	"testing"

	"pii-redactor/internal/config"
)

func TestBuildMemoryBackend(t *testing.T) {
	cfg := &config.Config{
		UsePresidio:  false,
		VaultBackend: "memory",
		LogLevel:     "error",
	}
	app, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	result, err := app.Redactor.Redact(context.Background(), "s1", "a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if result.TokenCount != 1 {
		t.Errorf("TokenCount = %d, want 1", result.TokenCount)
	}
	if app.NER != nil {
		t.Error("expected NER to be nil when UsePresidio is false")
	}
}

func TestBuildBboltBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		UsePresidio:  false,
		VaultBackend: "bbolt",
		VaultPath:    dir + "/vault.db",
		LogLevel:     "error",
	}
	app, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	if _, err := app.Redactor.Redact(context.Background(), "s1", "a@b.com"); err != nil {
		t.Fatal(err)
	}
}

func TestBuildUnknownBackendErrors(t *testing.T) {
	cfg := &config.Config{VaultBackend: "postgres"}
	if _, err := Build(cfg); err == nil {
		t.Fatal("expected an error for an unknown vault backend")
	}
}

func TestBuildAppliesSkipTypesAndAllowList(t *testing.T) {
	cfg := &config.Config{
		UsePresidio:  false,
		VaultBackend: "memory",
		SkipTypes:    []string{"EMAIL"},
		LogLevel:     "error",
	}
	app, err := Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	result, err := app.Redactor.Redact(context.Background(), "s1", "a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if result.TokenCount != 0 {
		t.Errorf("TokenCount = %d, want 0 (EMAIL is skipped)", result.TokenCount)
	}
}
