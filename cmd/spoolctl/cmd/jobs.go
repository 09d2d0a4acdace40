package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bidon15/printspool/cmd/spoolctl/internal/api"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and cancel print jobs",
	Long: `Job management commands. Plain users see only their own jobs;
cancellation requires the admin role.

Examples:
  spoolctl jobs list
  spoolctl jobs list --status pending --limit 20
  spoolctl jobs get 01J8ZQ3V...
  spoolctl jobs cancel 01J8ZQ3V...`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE:  runJobsList,
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsGet,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending job",
	Long: `Cancel a job that is still waiting in the queue. Jobs already
printing or finished cannot be cancelled.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsCancel,
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by status (pending, printing, completed, failed, cancelled)")
	jobsListCmd.Flags().String("client", "", "filter by client id")
	jobsListCmd.Flags().String("user", "", "filter by submitting user")
	jobsListCmd.Flags().Int("limit", 50, "maximum rows")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsCancelCmd)

	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	opts := api.JobListOptions{}
	opts.Status, _ = cmd.Flags().GetString("status")
	opts.ClientID, _ = cmd.Flags().GetString("client")
	opts.UserName, _ = cmd.Flags().GetString("user")
	opts.Limit, _ = cmd.Flags().GetInt("limit")

	jobs, err := client.ListJobs(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(jobs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tPRIO\tUSER\tDOCUMENT\tRETRIES\tSUBMITTED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			j.JobID, j.Status, j.Priority, j.UserName, j.DocumentName,
			j.RetryCount, j.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	job, err := client.GetJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(job)
	}

	fmt.Printf("Job:       %s\n", job.JobID)
	fmt.Printf("Status:    %s\n", job.Status)
	fmt.Printf("Priority:  %d\n", job.Priority)
	fmt.Printf("User:      %s\n", job.UserName)
	fmt.Printf("Client:    %s\n", job.ClientID)
	fmt.Printf("Document:  %s (%s, %d bytes)\n", job.DocumentName, job.FileFormat, job.FileSizeBytes)
	fmt.Printf("Retries:   %d/%d\n", job.RetryCount, job.MaxRetries)
	fmt.Printf("Submitted: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("Started:   %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if job.ErrorMessage != nil {
		fmt.Printf("Error:     %s\n", *job.ErrorMessage)
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	job, err := client.CancelJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Cancelled %s\n", job.JobID)
	return nil
}
