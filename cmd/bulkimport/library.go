package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/bulkimport/internal/library"
)

func init() {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Browse imported media",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List media in the library",
		Args:  cobra.NoArgs,
		RunE:  runLibraryList,
	}
	listCmd.Flags().StringP("title", "t", "", "Filter by title substring")
	listCmd.Flags().StringP("mode", "m", "", "Filter by import mode (copy, reference)")
	listCmd.Flags().String("job", "", "Filter by import job ID")
	listCmd.Flags().IntP("limit", "l", 50, "Maximum number of items to return")
	listCmd.Flags().Int("offset", 0, "Items to skip")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete media from the library",
		Long:  "Removes the library record. Does not delete files on disk.",
		Args:  cobra.ExactArgs(1),
		RunE:  runLibraryDelete,
	}

	libraryCmd.AddCommand(listCmd, deleteCmd)
	rootCmd.AddCommand(libraryCmd)

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List finished import jobs",
		Args:  cobra.NoArgs,
		RunE:  runJobsList,
	}
	jobsCmd.Flags().IntP("limit", "l", 20, "Maximum number of jobs to return")
	rootCmd.AddCommand(jobsCmd)
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	filter := library.MediaFilter{}
	if v, _ := cmd.Flags().GetString("title"); v != "" {
		filter.Title = &v
	}
	if v, _ := cmd.Flags().GetString("mode"); v != "" {
		filter.Mode = &v
	}
	if v, _ := cmd.Flags().GetString("job"); v != "" {
		filter.JobID = &v
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.Offset, _ = cmd.Flags().GetInt("offset")

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	items, total, err := a.library.ListMedia(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(map[string]any{"items": items, "total": total})
		return nil
	}
	if len(items) == 0 {
		fmt.Println("No media in library.")
		return nil
	}

	fmt.Printf("Library (%d items):\n\n", total)
	fmt.Printf("  %-6s %-40s %-9s %-9s %-10s %s\n", "ID", "TITLE", "SIZE", "LENGTH", "MODE", "ADDED")
	fmt.Println("  " + strings.Repeat("-", 96))
	for _, m := range items {
		title := m.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Printf("  %-6d %-40s %-9s %-9s %-10s %s\n",
			m.ID,
			title,
			humanize.Bytes(uint64(max(m.SizeBytes, 0))),
			m.Duration.Round(time.Second),
			m.Mode,
			humanize.Time(m.AddedAt))
	}
	if total > filter.Offset+len(items) {
		fmt.Printf("\n  Showing %d of %d items. Use --limit and --offset to see more.\n", len(items), total)
	}
	return nil
}

func runLibraryDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid media ID: %s", args[0])
	}

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.library.DeleteMedia(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted media %d.\n", id)
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	jobs, err := a.jobs.ListJobs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(jobs)
		return nil
	}
	if len(jobs) == 0 {
		fmt.Println("No finished jobs.")
		return nil
	}

	fmt.Printf("  %-36s %-10s %-9s %7s %7s %7s %7s  %s\n", "JOB", "STATE", "MODE", "TOTAL", "OK", "DUP", "FAILED", "FINISHED")
	for _, j := range jobs {
		fmt.Printf("  %-36s %-10s %-9s %7d %7d %7d %7d  %s\n",
			j.JobID, j.State, j.Mode, j.Total, j.Successful, j.Duplicates, j.Failed, humanize.Time(j.FinishedAt))
	}
	return nil
}
