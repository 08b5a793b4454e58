// Package config loads and holds all sidecar configuration.
// Settings are layered: defaults -> redactor-config.json -> environment
// variables (env vars win).
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds the full RedactorConfig (spec.md §3) plus the ambient
// settings a complete service needs (NER caching, admin API, serving port).
type Config struct {
	UsePresidio    bool     `json:"usePresidio"`
	Language       string   `json:"language"`
	ScoreThreshold float64  `json:"scoreThreshold"`
	Entities       []string `json:"entities"`
	SkipTypes      []string `json:"skipTypes"`
	AllowList      []string `json:"allowList"`

	VaultBackend string `json:"vaultBackend"` // "memory" | "bbolt" (spec.md calls it "sqlite"; see DESIGN.md)
	VaultPath    string `json:"vaultPath"`

	PresidioEndpoint string `json:"presidioEndpoint"`
	NERCachePath     string `json:"nerCachePath"`
	NERCacheCapacity int    `json:"nerCacheCapacity"`

	Port      int    `json:"port"`
	LogLevel  string `json:"logLevel"`
	LuhnCheck bool   `json:"luhnCheck"`

	AdminToken       string `json:"adminToken"`
	AdminPersistPath string `json:"adminPersistPath"`
}

// Load returns config with defaults overridden by redactor-config.json and
// then by environment variables.
func Load() *Config {
	return LoadFrom("redactor-config.json")
}

// LoadFrom is Load but with an explicit config file path, for callers that
// accept a --config flag pointing somewhere other than the default
// location. An empty path skips the file layer entirely.
func LoadFrom(path string) *Config {
	cfg := defaults()
	if path != "" {
		loadFile(cfg, path)
	}
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		UsePresidio:      true,
		Language:         "en",
		ScoreThreshold:   0.7,
		VaultBackend:     "memory",
		VaultPath:        "vault.db",
		PresidioEndpoint: "http://localhost:3000",
		NERCachePath:     "ner-cache.db",
		NERCacheCapacity: 50_000,
		Port:             8385,
		LogLevel:         "info",
		LuhnCheck:        false,
		AdminPersistPath: "admin-state.json",
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("PII_REDACTOR_NO_PRESIDIO"); v == "true" || v == "1" {
		cfg.UsePresidio = false
	}
	if v := os.Getenv("PII_REDACTOR_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScoreThreshold = f
		}
	}
	if v := os.Getenv("PII_REDACTOR_DB"); v != "" {
		cfg.VaultPath = v
		cfg.VaultBackend = "bbolt"
	}
	if v := os.Getenv("PII_REDACTOR_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
}
