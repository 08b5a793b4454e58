// Package bootstrap wires the sidecar's components together from a
// loaded Config. Both `cmd/redactor serve` and the one-shot CLI
// subcommands (redact, rehydrate, dump, ...) build the same App so the
// two surfaces can never drift in how a vault or scanner gets configured.
package bootstrap

import (
	"fmt"

	"pii-redactor/internal/admin"
	"pii-redactor/internal/config"
	"pii-redactor/internal/entity"
	"pii-redactor/internal/logger"
	"pii-redactor/internal/metrics"
	"pii-redactor/internal/redactor"
	"pii-redactor/internal/scanner"
	"pii-redactor/internal/vault"
)

// App holds every long-lived component a running sidecar needs.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	Vault    vault.Vault
	NER      *scanner.NERScanner // nil when Presidio is disabled
	Redactor *redactor.Redactor
	Rules    *admin.RuleSet
}

// Build constructs an App from cfg. Callers must call Close when done.
func Build(cfg *config.Config) (*App, error) {
	log := logger.New("BOOTSTRAP", cfg.LogLevel)
	m := metrics.New()

	v, err := buildVault(cfg)
	if err != nil {
		return nil, err
	}

	registry := scanner.NewRegistry(func(name string, scanErr error) {
		log.Warnf("scan_error", "scanner %q failed: %v", name, scanErr)
		m.ScannerErrors.Add(1)
	})

	var regexOpts []scanner.RegexOption
	if cfg.LuhnCheck {
		regexOpts = append(regexOpts, scanner.WithLuhnCheck())
	}
	registry.Register("regex", scanner.NewRegexScanner(regexOpts...))

	var ner *scanner.NERScanner
	if cfg.UsePresidio {
		ner = scanner.NewNERScanner(
			cfg.PresidioEndpoint, cfg.Language, cfg.ScoreThreshold,
			logger.New("SCANNER", cfg.LogLevel),
			scanner.WithNERCache(cfg.NERCachePath, cfg.NERCacheCapacity, logger.New("NER_CACHE", cfg.LogLevel)),
			scanner.WithAllowedTypes(cfg.Entities),
			scanner.WithMetrics(m),
		)
		registry.Register("ner", ner)
	}

	rules := admin.NewRuleSet(toEntityTypes(cfg.SkipTypes), cfg.AllowList, cfg.AdminPersistPath, logger.New("ADMIN", cfg.LogLevel))

	rd := redactor.New(registry, v, logger.New("REDACTOR", cfg.LogLevel),
		redactor.WithSkipTypes(toEntityTypes(cfg.SkipTypes)),
		redactor.WithAllowList(cfg.AllowList),
		redactor.WithRuleSource(rules),
		redactor.WithMetrics(m),
	)

	return &App{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		Vault:    v,
		NER:      ner,
		Redactor: rd,
		Rules:    rules,
	}, nil
}

// Close releases the vault and NER cache resources.
func (a *App) Close() error {
	var firstErr error
	if a.NER != nil {
		if err := a.NER.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.Vault.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func buildVault(cfg *config.Config) (vault.Vault, error) {
	switch cfg.VaultBackend {
	case "bbolt":
		v, err := vault.NewBbolt(cfg.VaultPath, logger.New("VAULT", cfg.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		return v, nil
	case "memory", "":
		return vault.NewMemory(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown vault backend %q", cfg.VaultBackend)
	}
}

func toEntityTypes(raw []string) []entity.Type {
	out := make([]entity.Type, len(raw))
	for i, s := range raw {
		out[i] = entity.Type(s)
	}
	return out
}
