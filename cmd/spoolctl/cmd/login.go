package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bidon15/printspool/cmd/spoolctl/internal/api"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Authenticate and store a token",
	Long: `Authenticate against the admin API with username and password. The
issued token is stored under ~/.config/spoolctl/token and picked up by
every subsequent command.

The password is read from the SPOOLCTL_PASSWORD environment variable
when set, otherwise from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := args[0]

	password := os.Getenv("SPOOLCTL_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	client := api.NewClient(strings.TrimRight(flagServer, "/"), "")
	resp, err := client.Login(cmd.Context(), username, password)
	if err != nil {
		return err
	}

	if err := storeToken(resp.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	fmt.Printf("Logged in as %s (%s), token valid for %ds\n",
		resp.User.Username, resp.User.Role, resp.ExpiresIn)
	return nil
}
