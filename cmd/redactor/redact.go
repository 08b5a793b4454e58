package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pii-redactor/internal/bootstrap"
	"pii-redactor/internal/redactor"
)

var redactTextCmd = &cobra.Command{
	Use:   "redact-text",
	Short: "Redact PII from a single block of text read from stdin",
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

		result, err := app.Redactor.Redact(context.Background(), flagSessionID, req.Text)
		if err != nil {
			return err
		}
		return writeJSONTo(os.Stdout, result)
	},
}

var redactCmd = &cobra.Command{
	Use:   "redact",
	Short: "Redact PII from a list of chat messages read from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSessionID == "" {
			return &redactor.InvalidInput{Detail: "--session-id is required"}
		}
		var req struct {
			Messages []redactor.Message `json:"messages"`
		}
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			return &redactor.InvalidInput{Detail: fmt.Sprintf("invalid JSON on stdin: %v", err)}
		}

		app, err := bootstrap.Build(loadConfig())
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := app.Redactor.RedactMessages(context.Background(), flagSessionID, req.Messages)
		if err != nil {
			return err
		}
		return writeJSONTo(os.Stdout, struct {
			Messages []redactor.Message `json:"messages"`
		}{Messages: out})
	},
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(redactTextCmd)
	rootCmd.AddCommand(redactCmd)
}
