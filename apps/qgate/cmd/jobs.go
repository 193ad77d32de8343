package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "Inspect and control jobs",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		jobs, err := sdk.ListJobs(cmd.Context())
		exitIfSdkError(err)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tRESOURCE\tCREATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.ID, j.Status, j.ComputeResource, j.CreatedAt.Format(time.RFC3339))
		}
		_ = w.Flush()
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a job with its current status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		job, err := sdk.GetJob(cmd.Context(), args[0])
		exitIfSdkError(err)
		printJob(job)
	},
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job-id>",
	Short: "Print the job logs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		logs, err := sdk.JobLogs(cmd.Context(), args[0])
		exitIfSdkError(err)
		fmt.Print(logs)
	},
}

var jobsStopCmd = &cobra.Command{
	Use:   "stop <job-id>",
	Short: "Stop a running job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		msg, err := sdk.StopJob(cmd.Context(), args[0])
		exitIfSdkError(err)
		fmt.Println(msg)
	},
}

var jobsResultCmd = &cobra.Command{
	Use:   "result <job-id> [json]",
	Short: "Report a job result",
	Long: `Stores a JSON value as the job result. The value is read from the second
argument or, when absent, from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		var raw []byte
		if len(args) == 2 {
			raw = []byte(args[1])
		} else {
			var err error
			if raw, err = io.ReadAll(os.Stdin); err != nil {
				log.Fatalf("reading stdin: %v", err)
			}
		}
		if !json.Valid(raw) {
			log.Fatalf("result is not valid JSON")
		}

		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		job, err := sdk.ReportResult(cmd.Context(), args[0], raw)
		exitIfSdkError(err)
		printJob(job)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsGetCmd, jobsLogsCmd, jobsStopCmd, jobsResultCmd)
}

func printJob(job *schemas.Job) {
	fmt.Printf("ID: %s\n", job.ID)
	fmt.Printf("Program: %s\n", job.ProgramID)
	fmt.Printf("Status: %s\n", job.Status)
	fmt.Printf("Submission: %s\n", job.SubmissionState)
	if job.ComputeResource != "" {
		fmt.Printf("Resource: %s\n", job.ComputeResource)
	}
	if job.RemoteJobID != "" {
		fmt.Printf("Remote id: %s\n", job.RemoteJobID)
	}
	if len(job.Result) > 0 && string(job.Result) != "null" {
		fmt.Printf("Result: %s\n", job.Result)
	}
	fmt.Printf("Updated: %s\n", job.UpdatedAt.Format(time.RFC3339))
}
