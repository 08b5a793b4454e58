package main

import (
	"testing"

	"pii-redactor/internal/redactor"
	"pii-redactor/internal/resolver"
	"pii-redactor/internal/vault"
)

func TestRunMapsUnknownSubcommandToNonZero(t *testing.T) {
	rootCmd.SetArgs([]string{"__unknown-subcommand__"})
	code := run()
	if code == 0 {
		t.Fatal("expected a nonzero exit code for an unknown subcommand")
	}
}

func TestExitCodeClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", &redactor.InvalidInput{Detail: "x"}, 2},
		{"vault unavailable", &vault.UnavailableError{Err: vault.ErrUnavailable}, 3},
		{"protocol error", &resolver.ProtocolError{Detail: "x"}, 1},
		{"generic error", errUnclassified{}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if got != tc.want {
				t.Errorf("classify(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

type errUnclassified struct{}

func (errUnclassified) Error() string { return "boom" }
