package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/events"
	"github.com/vmunix/bulkimport/internal/source"
)

// errImportFailures signals a finished import with failed files.
var errImportFailures = errors.New("some files failed to import")

var importCmd = &cobra.Command{
	Use:   "import [paths...]",
	Short: "Import files and directories into the library",
	Long: `Import files and directories into the library.

Directories are expanded to the media files they contain. Selections larger
than the admission ceiling are rejected unless --multi-pass is given, in
which case they are imported as consecutive jobs.

While importing, Ctrl-C cancels the job (a second Ctrl-C aborts) and
SIGUSR1 toggles pause.

Examples:
  bulkimport import ~/Videos/trip               # Copy a directory into the library
  bulkimport import -r --multi-pass ~/Archive   # Import a huge tree in passes
  bulkimport import --mode reference --folder /mnt/nas /mnt/nas/clips
  find /data -name '*.mkv' | bulkimport import --list -`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("mode", "", "Import mode: copy or reference (default from config)")
	importCmd.Flags().String("folder", "", "Folder to grant access to for reference mode")
	importCmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories")
	importCmd.Flags().Bool("include-hidden", false, "Include hidden files and directories")
	importCmd.Flags().Bool("keep-samples", false, "Keep files with \"sample\" in the name")
	importCmd.Flags().String("list", "", "Read paths from a file, one per line (- for stdin)")
	importCmd.Flags().Bool("multi-pass", false, "Split selections over the admission ceiling into several jobs")
	importCmd.Flags().Int("show-failures", 10, "Failures listed per kind in the summary (0 for all)")
	rootCmd.AddCommand(importCmd)
}

type importOptions struct {
	mode         batch.Mode
	folder       string
	multiPass    bool
	showFailures int
}

func runImport(cmd *cobra.Command, args []string) error {
	paths := append([]string(nil), args...)
	if list, _ := cmd.Flags().GetString("list"); list != "" {
		listed, err := source.ReadListFile(list)
		if err != nil {
			return err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("nothing to import: pass paths or --list")
	}

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := importOptions{mode: a.mode}
	if m, _ := cmd.Flags().GetString("mode"); m != "" {
		if opts.mode, err = batch.ParseMode(m); err != nil {
			return err
		}
	}
	opts.folder, _ = cmd.Flags().GetString("folder")
	opts.multiPass, _ = cmd.Flags().GetBool("multi-pass")
	opts.showFailures, _ = cmd.Flags().GetInt("show-failures")

	recursive, _ := cmd.Flags().GetBool("recursive")
	hidden, _ := cmd.Flags().GetBool("include-hidden")
	keepSamples, _ := cmd.Flags().GetBool("keep-samples")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	selection, err := source.Expand(ctx, paths, source.Options{
		Recursive:     recursive,
		IncludeHidden: hidden,
		SkipSamples:   !keepSamples,
	})
	if err != nil {
		if batch.IsPickerCrash(err) {
			return fmt.Errorf("%w (try --list with a file of paths and --multi-pass)", err)
		}
		return err
	}

	report, err := runPasses(ctx, cancel, a, selection, opts, os.Stderr)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(os.Stdout, report, opts.showFailures)
	}

	if report.Stats.Failed > 0 {
		return errImportFailures
	}
	return nil
}

// runPasses imports selection as one job, or as several when multi-pass is
// set, stopping early if a job is cancelled.
func runPasses(ctx context.Context, abort context.CancelFunc, a *app, selection []string, opts importOptions, out io.Writer) (*importReport, error) {
	passes := [][]string{selection}
	if opts.multiPass {
		passes = a.guard.Passes(selection)
	}

	stopSignals := watchSignals(a, abort)
	defer stopSignals()

	start := time.Now()
	report := &importReport{}
	for i, pass := range passes {
		if a.interrupted.Load() {
			report.Cancelled = true
			report.Error = batch.ErrUserCancelled.Error()
			break
		}

		var folder batch.Folder
		if opts.folder != "" {
			f, err := a.openFolder(opts.folder)
			if err != nil {
				return nil, err
			}
			folder = f
		}

		job, err := a.guard.Admit(pass, opts.mode, folder)
		if err != nil {
			var overload *batch.PickerOverloadError
			if errors.As(err, &overload) {
				return nil, fmt.Errorf("%w\nre-run with --multi-pass to import in %d passes",
					err, len(a.guard.Passes(selection)))
			}
			return nil, err
		}

		if len(passes) > 1 {
			fmt.Fprintf(out, "Pass %d of %d: %d files\n", i+1, len(passes), job.Total())
		}
		if err := a.controller.Start(ctx, job); err != nil {
			return nil, err
		}
		if a.interrupted.Load() {
			// The signal may have arrived while no job was running.
			if err := a.controller.Cancel(); err != nil {
				a.log.Debug("cancel", "error", err)
			}
		}
		watchProgress(ctx, a, out)
		if err := a.controller.Wait(ctx); err != nil {
			return nil, err
		}

		report.Passes++
		report.add(a.controller.Results())
		if a.controller.State() == batch.StateCancelled {
			report.Cancelled = true
			if jobErr := a.controller.Err(); jobErr != nil {
				report.Error = jobErr.Error()
			}
			break
		}
		a.controller.ClearResults()
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// watchSignals maps SIGINT/SIGTERM to job cancellation and SIGUSR1 to
// pause/resume. A second interrupt aborts.
func watchSignals(a *app, abort context.CancelFunc) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	done := make(chan struct{})

	go func() {
		interrupted := false
		for {
			select {
			case <-done:
				return
			case sig := <-sigCh:
				if sig == syscall.SIGUSR1 {
					togglePause(a)
					continue
				}
				if interrupted {
					a.log.Warn("aborting")
					abort()
					continue
				}
				interrupted = true
				a.interrupted.Store(true)
				a.log.Info("cancelling import", "signal", sig.String())
				if err := a.controller.Cancel(); err != nil {
					a.log.Debug("cancel", "error", err)
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func togglePause(a *app) {
	var err error
	switch a.controller.State() {
	case batch.StateProcessing:
		err = a.controller.Pause()
	case batch.StatePaused:
		err = a.controller.Resume()
	}
	if err != nil {
		a.log.Warn("toggle pause", "error", err)
	}
}

// watchProgress reports progress until the current job stops. Terminals get
// a live line; other outputs get one line per finished batch.
func watchProgress(ctx context.Context, a *app, out io.Writer) {
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			p := a.controller.Progress()
			fmt.Fprintf(out, "\r\033[K%s", formatProgress(p))
			if !p.State.IsActive() {
				fmt.Fprintln(out)
				return
			}
			select {
			case <-ctx.Done():
				fmt.Fprintln(out)
				return
			case <-ticker.C:
			}
		}
	}

	batches := a.bus.Subscribe(events.EventBatchCompleted, 16)
	defer a.bus.Unsubscribe(batches)
	finished := a.bus.Subscribe(events.EventJobFinished, 1)
	defer a.bus.Unsubscribe(finished)

	// the job may have finished before we subscribed
	if !a.controller.State().IsActive() {
		fmt.Fprintln(out, formatProgress(a.controller.Progress()))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-batches:
			fmt.Fprintln(out, formatProgress(a.controller.Progress()))
		case <-finished:
			fmt.Fprintln(out, formatProgress(a.controller.Progress()))
			return
		}
	}
}
