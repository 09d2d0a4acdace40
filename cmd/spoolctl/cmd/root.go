// Package cmd implements the spoolctl command tree.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bidon15/printspool/cmd/spoolctl/internal/api"
)

var (
	flagServer string
	flagToken  string
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "spoolctl",
	Short: "Operator CLI for the print broker",
	Long: `spoolctl manages a print broker: operator accounts, queued jobs, and
usage statistics over the admin API, plus job submission and health
checks over the wire protocol.

Authentication:
  spoolctl login admin            # prompts for password, stores the token
  export SPOOLCTL_TOKEN=...       # or pass the token via environment

Examples:
  spoolctl jobs list --status pending
  spoolctl jobs cancel 01J8ZQ3V...
  spoolctl users create alice --role user
  spoolctl stats
  spoolctl ping --wire-addr broker.local:9100`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "admin API base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (defaults to SPOOLCTL_TOKEN or the stored login)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print raw JSON instead of tables")
}

// getClient builds an admin API client from flags, the environment, and
// the token saved by a previous login, in that order.
func getClient() (*api.Client, error) {
	token := flagToken
	if token == "" {
		token = os.Getenv("SPOOLCTL_TOKEN")
	}
	if token == "" {
		token = readStoredToken()
	}
	return api.NewClient(strings.TrimRight(flagServer, "/"), token), nil
}

func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "spoolctl", "token"), nil
}

func readStoredToken() string {
	path, err := tokenPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func storeToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
