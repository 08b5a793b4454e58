package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"pii-redactor/internal/admin"
	"pii-redactor/internal/bootstrap"
	"pii-redactor/internal/config"
	"pii-redactor/internal/logger"
	"pii-redactor/internal/service"
	"pii-redactor/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the redaction sidecar as a long-lived HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(loadConfig())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cfg *config.Config) error {
	printBanner(cfg)

	app, err := bootstrap.Build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Log.Errorf("shutdown", "close error: %v", err)
		}
	}()

	tel, err := telemetry.NewProvider("dev", os.Stderr)
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background()) //nolint:errcheck // best-effort flush on exit

	svc := service.New(app.Redactor, app.Vault, app.NER, cfg.VaultBackend, logger.New("SERVICE", cfg.LogLevel), app.Metrics).WithTelemetry(tel)
	adminSrv := admin.New(app.Rules, cfg.AdminToken, app.Metrics, logger.New("ADMIN", cfg.LogLevel))

	mux := http.NewServeMux()
	mux.Handle("/", svc.Handler())
	mux.Handle("/admin/", adminSrv.Handler())

	// Serve HTTP/2 over cleartext so a single long-lived local connection
	// can pipeline many redact/rehydrate calls without per-call handshake
	// overhead.
	h2s := &http2.Server{}
	handler := h2c.NewHandler(mux, h2s)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		app.Log.Infof("shutdown", "shutting down…")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			app.Log.Errorf("shutdown", "shutdown error: %v", err)
		}
	}()

	app.Log.Infof("serve", "listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func printBanner(cfg *config.Config) {
	presidio := "disabled (regex-only)"
	if cfg.UsePresidio {
		presidio = cfg.PresidioEndpoint
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║          PII Redaction Sidecar  (Go)                  ║
╚══════════════════════════════════════════════════════╝
  Port            : %d
  Vault backend   : %s
  NER/Presidio    : %s
  Luhn check      : %v
  Admin API       : %s

  Check health:
    curl http://localhost:%d/health

  Redact text:
    curl -XPOST http://localhost:%d/redact-text \
      -d '{"session_id":"s1","text":"call me at 555-0100"}'
`, cfg.Port, cfg.VaultBackend, presidio, cfg.LuhnCheck,
		adminAuthDescription(cfg),
		cfg.Port, cfg.Port)
}

func adminAuthDescription(cfg *config.Config) string {
	if cfg.AdminToken == "" {
		return "enabled, no auth token configured"
	}
	return "enabled, bearer token required"
}
