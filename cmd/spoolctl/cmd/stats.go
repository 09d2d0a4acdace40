package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show broker statistics",
	Long: `Show aggregated totals from the job store together with the live
broker snapshot (queue depth, dispatcher state, printer state).

Examples:
  spoolctl stats
  spoolctl stats daily --from 2026-08-01 --to 2026-08-25`,
	RunE: runStats,
}

var statsDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show per-day statistics",
	RunE:  runStatsDaily,
}

func init() {
	statsDailyCmd.Flags().String("from", "", "start date (YYYY-MM-DD, default 30 days ago)")
	statsDailyCmd.Flags().String("to", "", "end date (YYYY-MM-DD, default today)")

	statsCmd.AddCommand(statsDailyCmd)
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	stats, err := client.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(stats)
	}

	t := stats.Totals
	fmt.Printf("Jobs:       %d total, %d pending, %d completed, %d failed, %d cancelled\n",
		t.TotalJobs, t.PendingJobs, t.CompletedJobs, t.FailedJobs, t.CancelledJobs)
	fmt.Printf("Pages:      %d printed\n", t.TotalPages)
	fmt.Printf("Clients:    %d known, %d active\n", t.TotalClients, t.ActiveClients)

	if qd, ok := stats.Live["queue_depth"]; ok {
		fmt.Printf("Queue:      %v waiting\n", qd)
	}
	if running, ok := stats.Live["dispatcher_running"]; ok {
		fmt.Printf("Dispatcher: running=%v\n", running)
	}
	return nil
}

func runStatsDaily(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	daily, err := client.DailyStats(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(daily)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tJOBS\tCOMPLETED\tFAILED\tCANCELLED\tPAGES\tUPTIME")
	for _, d := range daily {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%ds\n",
			d.Date.Format("2006-01-02"), d.TotalJobs, d.CompletedJobs,
			d.FailedJobs, d.CancelledJobs, d.TotalPages, d.UptimeSeconds)
	}
	return w.Flush()
}
