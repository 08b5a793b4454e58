package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if !cfg.UsePresidio {
		t.Error("UsePresidio should default to true")
	}
	if cfg.Language != "en" {
		t.Errorf("Language: got %s, want en", cfg.Language)
	}
	if cfg.ScoreThreshold != 0.7 {
		t.Errorf("ScoreThreshold: got %f, want 0.7", cfg.ScoreThreshold)
	}
	if cfg.VaultBackend != "memory" {
		t.Errorf("VaultBackend: got %s, want memory", cfg.VaultBackend)
	}
	if cfg.Port != 8385 {
		t.Errorf("Port: got %d, want 8385", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s, want info", cfg.LogLevel)
	}
	if cfg.LuhnCheck {
		t.Error("LuhnCheck should default to false")
	}
}

func TestLoadEnv_NoPresidio(t *testing.T) {
	t.Setenv("PII_REDACTOR_NO_PRESIDIO", "true")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.UsePresidio {
		t.Error("UsePresidio should be false")
	}
}

func TestLoadEnv_Threshold(t *testing.T) {
	t.Setenv("PII_REDACTOR_THRESHOLD", "0.9")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.ScoreThreshold != 0.9 {
		t.Errorf("ScoreThreshold: got %f, want 0.9", cfg.ScoreThreshold)
	}
}

func TestLoadEnv_DB_SwitchesToBboltBackend(t *testing.T) {
	t.Setenv("PII_REDACTOR_DB", "/tmp/vault.db")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.VaultPath != "/tmp/vault.db" {
		t.Errorf("VaultPath: got %s", cfg.VaultPath)
	}
	if cfg.VaultBackend != "bbolt" {
		t.Errorf("VaultBackend: got %s, want bbolt", cfg.VaultBackend)
	}
}

func TestLoadEnv_Port(t *testing.T) {
	t.Setenv("PII_REDACTOR_PORT", "9090")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Port != 9090 {
		t.Errorf("Port: got %d, want 9090", cfg.Port)
	}
}

func TestLoadEnv_InvalidPort_Ignored(t *testing.T) {
	t.Setenv("PII_REDACTOR_PORT", "not-a-number")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Port != 8385 {
		t.Errorf("Port: got %d, want 8385 (invalid env should be ignored)", cfg.Port)
	}
}

func TestLoadFile_ValidJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatal(err)
	}

	data, marshalErr := json.Marshal(map[string]any{
		"port":           9999,
		"language":       "fr",
		"usePresidio":    false,
		"scoreThreshold": 0.55,
	})
	if marshalErr != nil {
		t.Fatal(marshalErr)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())

	if cfg.Port != 9999 {
		t.Errorf("Port: got %d, want 9999", cfg.Port)
	}
	if cfg.Language != "fr" {
		t.Errorf("Language: got %s", cfg.Language)
	}
	if cfg.UsePresidio {
		t.Error("UsePresidio should be false after file load")
	}
	if cfg.ScoreThreshold != 0.55 {
		t.Errorf("ScoreThreshold: got %f, want 0.55", cfg.ScoreThreshold)
	}
}

func TestLoadFile_Missing_IsNoOp(t *testing.T) {
	cfg := defaults()
	loadFile(cfg, "/nonexistent/path/config.json")
	if cfg.Port != 8385 {
		t.Errorf("Port changed unexpectedly: %d", cfg.Port)
	}
}

func TestLoadFile_InvalidJSON_PreservesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-bad-*.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{this is not json}"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())
	if cfg.Port != 8385 {
		t.Errorf("Port changed on bad JSON: %d", cfg.Port)
	}
}

func TestLoad_ReturnsNonNil(t *testing.T) {
	cfg := Load()
	if cfg == nil {
		t.Fatal("Load() returned nil")
	}
	if cfg.Port <= 0 {
		t.Errorf("Port should be positive, got %d", cfg.Port)
	}
}
