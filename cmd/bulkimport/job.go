package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func init() {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Control the import job of a running server",
		Long:  "Commands that drive the import job of a server started with 'bulkimport serve'.",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current job's progress",
		Args:  cobra.NoArgs,
		RunE:  runJobStatus,
	}

	startCmd := &cobra.Command{
		Use:   "start <paths...>",
		Short: "Start a job on the server",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runJobStart,
	}
	startCmd.Flags().String("mode", "", "Import mode: copy or reference (default from server config)")
	startCmd.Flags().String("folder", "", "Folder to grant access to for reference mode")
	startCmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories")

	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "List per-file results of the current job",
		Args:  cobra.NoArgs,
		RunE:  runJobResults,
	}
	resultsCmd.Flags().String("outcome", "", "Filter by outcome (success, duplicate, failure)")
	resultsCmd.Flags().IntP("limit", "l", 50, "Maximum number of results")
	resultsCmd.Flags().Int("offset", 0, "Results to skip")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard the current job's results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NewClient(serverURL).ClearJob(); err != nil {
				return err
			}
			fmt.Println("Results cleared.")
			return nil
		},
	}

	jobCmd.AddCommand(statusCmd, startCmd, resultsCmd, clearCmd)
	for _, name := range []string{"pause", "resume", "cancel", "restart"} {
		jobCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Send %s to the current job", name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runJobCommand(name)
			},
		})
	}
	rootCmd.AddCommand(jobCmd)
}

func printJob(job *JobResponse) {
	if jsonOutput {
		printJSON(job)
		return
	}
	if job.JobID == "" {
		fmt.Printf("No job (%s)\n", job.State)
		return
	}
	fmt.Printf("Job:      %s (%s, %s)\n", job.JobID, job.State, job.Mode)
	fmt.Printf("Batches:  %d files per batch, %d concurrent\n", job.BatchSize, job.ConcurrencyLimit)
	fmt.Println(formatProgress(job.Progress))
	if job.Error != "" {
		fmt.Printf("Error:    %s\n", job.Error)
	}
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	job, err := NewClient(serverURL).Job()
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func runJobStart(cmd *cobra.Command, args []string) error {
	req := StartJobRequest{}
	req.Mode, _ = cmd.Flags().GetString("mode")
	req.Folder, _ = cmd.Flags().GetString("folder")
	req.Recursive, _ = cmd.Flags().GetBool("recursive")

	// the server resolves paths against its own working directory
	for _, p := range args {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		req.Paths = append(req.Paths, abs)
	}
	if req.Folder != "" {
		abs, err := filepath.Abs(req.Folder)
		if err != nil {
			return err
		}
		req.Folder = abs
	}

	job, err := NewClient(serverURL).StartJob(req)
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func runJobCommand(name string) error {
	job, err := NewClient(serverURL).Command(name)
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func runJobResults(cmd *cobra.Command, args []string) error {
	outcome, _ := cmd.Flags().GetString("outcome")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	resp, err := NewClient(serverURL).Results(outcome, limit, offset)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	if len(resp.Items) == 0 {
		fmt.Println("No results.")
		return nil
	}

	fmt.Printf("Results (%d):\n\n", resp.Total)
	fmt.Printf("  %-9s %-18s %s\n", "OUTCOME", "KIND", "FILE")
	for _, r := range resp.Items {
		fmt.Printf("  %-9s %-18s %s\n", r.Outcome, r.Kind, r.Ref.Path)
		if r.Error != "" {
			fmt.Printf("  %-9s %-18s %s\n", "", "", r.Error)
		}
	}
	if resp.Total > resp.Offset+len(resp.Items) {
		fmt.Printf("\n  Showing %d of %d results. Use --limit and --offset to see more.\n", len(resp.Items), resp.Total)
	}
	return nil
}
