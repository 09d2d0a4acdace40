package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/Bidon15/printspool/cmd/spoolctl/internal/wire"
	"github.com/Bidon15/printspool/internal/protocol"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit a document over the wire protocol",
	Long: `Submit a document to the broker the way a printer client would:
one print_job message over the TLS wire protocol. A fresh ULID is used
as the job id unless --job-id is given.

Examples:
  spoolctl submit report.pdf --wire-addr broker.local:9100
  spoolctl submit invoice.pdf --copies 2 --duplex --priority 8
  spoolctl submit draft.ps --insecure                 # dev broker without TLS`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	addWireFlags(submitCmd)

	submitCmd.Flags().String("job-id", "", "job id (default: fresh ULID)")
	submitCmd.Flags().String("client-id", "spoolctl", "client id reported to the broker")
	submitCmd.Flags().String("user", "", "submitting user (default: token subject)")
	submitCmd.Flags().String("format", "", "file format (pdf, ps, postscript; default from extension)")
	submitCmd.Flags().Int("priority", 0, "priority 1-10 (default: broker default)")
	submitCmd.Flags().Int("copies", 1, "number of copies")
	submitCmd.Flags().Bool("duplex", false, "double-sided")
	submitCmd.Flags().Bool("color", false, "color printing")
	submitCmd.Flags().String("page-size", "", "page size (A4, A3, Letter, Legal)")

	rootCmd.AddCommand(submitCmd)
}

// addWireFlags registers the connection flags shared by the wire
// protocol commands.
func addWireFlags(cmd *cobra.Command) {
	cmd.Flags().String("wire-addr", "localhost:9100", "broker wire listener address")
	cmd.Flags().String("ca", "", "CA bundle for verifying the broker")
	cmd.Flags().String("cert", "", "client certificate for mutual TLS")
	cmd.Flags().String("key", "", "client key for mutual TLS")
	cmd.Flags().Bool("insecure", false, "plaintext TCP (development only)")
	cmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
}

// wireClient builds a wire protocol client from the command's flags and
// the stored admin token.
func wireClient(cmd *cobra.Command) (*wire.Client, error) {
	token := flagToken
	if token == "" {
		token = os.Getenv("SPOOLCTL_TOKEN")
	}
	if token == "" {
		token = readStoredToken()
	}
	if token == "" {
		return nil, fmt.Errorf("no token: run 'spoolctl login' or set SPOOLCTL_TOKEN")
	}

	cfg := wire.Config{Token: token}
	cfg.Addr, _ = cmd.Flags().GetString("wire-addr")
	cfg.CAFile, _ = cmd.Flags().GetString("ca")
	cfg.CertFile, _ = cmd.Flags().GetString("cert")
	cfg.KeyFile, _ = cmd.Flags().GetString("key")
	cfg.Insecure, _ = cmd.Flags().GetBool("insecure")
	cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")

	return wire.NewClient(cfg), nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	client, err := wireClient(cmd)
	if err != nil {
		return err
	}

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	jobID, _ := cmd.Flags().GetString("job-id")
	if jobID == "" {
		jobID = ulid.Make().String()
	}

	clientID, _ := cmd.Flags().GetString("client-id")
	user, _ := cmd.Flags().GetString("user")
	priority, _ := cmd.Flags().GetInt("priority")
	copies, _ := cmd.Flags().GetInt("copies")
	duplex, _ := cmd.Flags().GetBool("duplex")
	color, _ := cmd.Flags().GetBool("color")
	pageSize, _ := cmd.Flags().GetString("page-size")

	payload := &protocol.PrintJobPayload{
		JobID:       jobID,
		ClientID:    clientID,
		User:        user,
		FileFormat:  strings.ToLower(format),
		FileContent: base64.StdEncoding.EncodeToString(content),
		Priority:    priority,
		Parameters: protocol.JobParameters{
			PageSize: pageSize,
			Copies:   copies,
			Duplex:   duplex,
			Color:    &color,
		},
		Metadata: protocol.JobMetadata{
			DocumentName:  filepath.Base(path),
			Application:   "spoolctl",
			FileSizeBytes: int64(len(content)),
		},
	}

	resp, err := client.SubmitJob(cmd.Context(), payload)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(resp)
	}

	if resp.Status != protocol.StatusSuccess {
		if resp.Field != "" {
			return fmt.Errorf("%s (%s, field %s)", resp.Message, resp.ErrorCode, resp.Field)
		}
		return fmt.Errorf("%s (%s)", resp.Message, resp.ErrorCode)
	}

	fmt.Printf("Accepted %s", resp.JobID)
	if resp.QueuePosition != nil {
		fmt.Printf(" at queue position %d", *resp.QueuePosition)
	}
	fmt.Println()
	return nil
}
