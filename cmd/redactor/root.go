package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pii-redactor/internal/redactor"
	"pii-redactor/internal/resolver"
	"pii-redactor/internal/vault"
)

var (
	flagSessionID  string
	flagDB         string
	flagPort       int
	flagNoPresidio bool
	flagConfigFile string
)

var rootCmd = &cobra.Command{
	Use:           "redactor",
	Short:         "PII redaction sidecar: detect, tokenize, and rehydrate personal data in chat turns",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSessionID, "session-id", "", "session to operate on (required for session-scoped commands)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "vault database path (switches the backend to bbolt)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "HTTP port for serve")
	rootCmd.PersistentFlags().BoolVar(&flagNoPresidio, "no-presidio", false, "disable the NER scanner, regex-only detection")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a redactor-config.json overriding the default search location")
}

// run executes the command tree and maps any returned error to the exit
// code spec.md §6 assigns it: 0 success, 2 invalid arguments, 3 vault
// unavailable, 1 any other error.
func run() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "redactor: %v\n", err)
	return classify(err)
}

// classify maps a pipeline error to its CLI exit code.
func classify(err error) int {
	var invalid *redactor.InvalidInput
	if errors.As(err, &invalid) {
		return 2
	}
	var unavailable *vault.UnavailableError
	if errors.As(err, &unavailable) || errors.Is(err, vault.ErrUnavailable) {
		return 3
	}
	var protoErr *resolver.ProtocolError
	if errors.As(err, &protoErr) {
		return 1
	}
	return 1
}
