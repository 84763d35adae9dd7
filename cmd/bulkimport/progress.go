package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vmunix/bulkimport/internal/batch"
)

const barWidth = 24

// formatProgress renders a one-line progress summary.
func formatProgress(p batch.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %s %5.1f%%  %s/%s",
		p.Label(),
		progressBar(p.Fraction()),
		p.Percent,
		humanize.Comma(int64(p.Processed)),
		humanize.Comma(int64(p.TotalFiles)))
	fmt.Fprintf(&b, "  ok %d  dup %d  failed %d", p.Stats.Successful, p.Stats.Duplicates, p.Stats.Failed)
	if p.FilesPerSecond > 0 {
		fmt.Fprintf(&b, "  %.1f files/s", p.FilesPerSecond)
	}
	if p.ETA > 0 {
		fmt.Fprintf(&b, "  ETA %s", p.ETA.Round(time.Second))
	}
	if p.State == batch.StatePaused {
		b.WriteString("  [paused]")
	}
	return b.String()
}

func progressBar(frac float64) string {
	frac = max(0, min(frac, 1))
	filled := int(frac * barWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

// importReport accumulates results across passes.
type importReport struct {
	Passes    int            `json:"passes"`
	Stats     batch.Stats    `json:"stats"`
	Failures  []batch.Result `json:"failures,omitempty"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Error     string         `json:"error,omitempty"`
	Elapsed   time.Duration  `json:"elapsed"`
}

func (r *importReport) add(results []batch.Result) {
	s := batch.ComputeStats(results)
	r.Stats.Attempted += s.Attempted
	r.Stats.Successful += s.Successful
	r.Stats.Failed += s.Failed
	r.Stats.Duplicates += s.Duplicates
	for k, n := range s.ByKind {
		if r.Stats.ByKind == nil {
			r.Stats.ByKind = make(map[batch.ErrorKind]int)
		}
		r.Stats.ByKind[k] += n
	}
	for _, res := range results {
		if res.Outcome == batch.OutcomeFailure {
			r.Failures = append(r.Failures, res)
		}
	}
}

// printReport writes the end-of-import summary with failures grouped by kind.
func printReport(w io.Writer, r *importReport, maxPerKind int) {
	status := "Import complete"
	if r.Cancelled {
		status = "Import cancelled"
	}
	fmt.Fprintf(w, "\n%s in %s (%d pass", status, r.Elapsed.Round(time.Millisecond), r.Passes)
	if r.Passes != 1 {
		fmt.Fprint(w, "es")
	}
	fmt.Fprintln(w, ")")
	if r.Error != "" {
		fmt.Fprintf(w, "  Reason:     %s\n", r.Error)
	}
	fmt.Fprintf(w, "  Imported:   %s\n", humanize.Comma(int64(r.Stats.Successful)))
	fmt.Fprintf(w, "  Duplicates: %s\n", humanize.Comma(int64(r.Stats.Duplicates)))
	fmt.Fprintf(w, "  Failed:     %s\n", humanize.Comma(int64(r.Stats.Failed)))

	if len(r.Failures) == 0 {
		return
	}

	byKind := make(map[batch.ErrorKind][]batch.Result)
	for _, f := range r.Failures {
		byKind[f.Kind] = append(byKind[f.Kind], f)
	}
	kinds := make([]batch.ErrorKind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	fmt.Fprintln(w, "\nFailures:")
	for _, k := range kinds {
		group := byKind[k]
		fmt.Fprintf(w, "  %s (%d)", k, len(group))
		if actions := batch.Guidance(k).Actions; len(actions) > 0 {
			names := make([]string, len(actions))
			for i, a := range actions {
				names[i] = string(a)
			}
			fmt.Fprintf(w, "  suggested: %s", strings.Join(names, ", "))
		}
		fmt.Fprintln(w)
		for i, f := range group {
			if maxPerKind > 0 && i == maxPerKind {
				fmt.Fprintf(w, "    ... and %d more\n", len(group)-maxPerKind)
				break
			}
			fmt.Fprintf(w, "    %s: %s\n", f.Ref.Path, f.Error)
		}
	}
}
