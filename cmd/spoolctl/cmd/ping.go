package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bidon15/printspool/internal/protocol"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Heartbeat the broker over the wire protocol",
	Long: `Send a heartbeat to the broker's wire listener and report the round
trip time. The broker records the heartbeat against the token's client
id; --client-id must match the token when given.

Examples:
  spoolctl ping --wire-addr broker.local:9100
  spoolctl ping --insecure`,
	RunE: runPing,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the broker's live status over the wire protocol",
	Long: `Ask the broker for its status snapshot: queue depth, dispatcher and
printer state, job counts by status, and connection counters.

Examples:
  spoolctl status --wire-addr broker.local:9100`,
	RunE: runStatus,
}

func init() {
	addWireFlags(pingCmd)
	pingCmd.Flags().String("client-id", "", "client id to report (must match the token; default: token's)")
	rootCmd.AddCommand(pingCmd)

	addWireFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	client, err := wireClient(cmd)
	if err != nil {
		return err
	}

	clientID, _ := cmd.Flags().GetString("client-id")

	start := time.Now()
	resp, err := client.Ping(cmd.Context(), clientID)
	if err != nil {
		return err
	}
	rtt := time.Since(start)

	if resp.Status != protocol.StatusSuccess {
		return fmt.Errorf("%s (%s)", resp.Message, resp.ErrorCode)
	}

	fmt.Printf("%s from %s in %s\n", resp.Message, resp.ClientID, rtt.Round(time.Millisecond))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := wireClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.Status(cmd.Context())
	if err != nil {
		return err
	}

	if resp.Status != protocol.StatusSuccess {
		return fmt.Errorf("%s (%s)", resp.Message, resp.ErrorCode)
	}

	return printJSON(resp.Stats)
}
