package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"pii-redactor/internal/bootstrap"
	"pii-redactor/internal/redactor"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every vault entry recorded for a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSessionID == "" {
			return &redactor.InvalidInput{Detail: "--session-id is required"}
		}

		app, err := bootstrap.Build(loadConfig())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Vault.DeleteSession(context.Background(), flagSessionID); err != nil {
			return err
		}
		return writeJSONTo(os.Stdout, map[string]string{"status": "cleared"})
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every vault entry recorded for a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSessionID == "" {
			return &redactor.InvalidInput{Detail: "--session-id is required"}
		}

		app, err := bootstrap.Build(loadConfig())
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.Vault.Dump(context.Background(), flagSessionID)
		if err != nil {
			return err
		}
		return writeJSONTo(os.Stdout, entries)
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List every session with at least one recorded vault entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.Build(loadConfig())
		if err != nil {
			return err
		}
		defer app.Close()

		sessions, err := app.Vault.ListSessions(context.Background())
		if err != nil {
			return err
		}
		return writeJSONTo(os.Stdout, sessions)
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(sessionsCmd)
}
