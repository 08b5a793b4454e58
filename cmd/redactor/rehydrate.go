package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pii-redactor/internal/bootstrap"
	"pii-redactor/internal/redactor"
)

var rehydrateCmd = &cobra.Command{
	Use:   "rehydrate",
	Short: "Replace tokens in text read from stdin with their original values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSessionID == "" {
			return &redactor.InvalidInput{Detail: "--session-id is required"}
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			return &redactor.InvalidInput{Detail: fmt.Sprintf("invalid JSON on stdin: %v", err)}
		}

		app, err := bootstrap.Build(loadConfig())
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := app.Vault.Rehydrate(context.Background(), flagSessionID, req.Text)
		if err != nil {
			return err
		}
		return writeJSONTo(os.Stdout, struct {
			Text string `json:"text"`
		}{Text: out})
	},
}

func init() {
	rootCmd.AddCommand(rehydrateCmd)
}
