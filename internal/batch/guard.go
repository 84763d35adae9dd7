package batch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// DefaultAdmissionCeiling is the largest selection admitted in one pass.
const DefaultAdmissionCeiling = 500

// Guard rejects selections too large to import in one pass and splits
// oversized selections into passes for multi-pass imports.
type Guard struct {
	ceiling int
	log     *slog.Logger
}

// NewGuard returns a guard with the given ceiling. A ceiling <= 0 selects
// DefaultAdmissionCeiling.
func NewGuard(ceiling int, logger *slog.Logger) *Guard {
	if ceiling <= 0 {
		ceiling = DefaultAdmissionCeiling
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{ceiling: ceiling, log: logger.With("component", "guard")}
}

// Ceiling returns the admission ceiling.
func (g *Guard) Ceiling() int {
	return g.ceiling
}

// Admit checks a selection and builds a job for it. Nothing is opened or
// read here; a rejected selection leaves no trace.
func (g *Guard) Admit(paths []string, mode Mode, folder Folder) (*Job, error) {
	if len(paths) > g.ceiling {
		g.log.Warn("selection rejected", "count", len(paths), "ceiling", g.ceiling)
		return nil, &PickerOverloadError{Count: len(paths), Ceiling: g.ceiling}
	}

	switch mode {
	case ModeCopy:
		if folder != nil {
			return nil, fmt.Errorf("%w: folder access applies to reference mode only", ErrInvalidSelection)
		}
	case ModeReference:
		if folder != nil {
			if p, ok := firstOutside(folder.Root(), paths); ok {
				g.log.Warn("selection rejected", "path", p, "folder", folder.Root())
				return nil, fmt.Errorf("%w: %s is outside folder %s", ErrInvalidSelection, p, folder.Root())
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown import mode %q", ErrInvalidSelection, mode)
	}

	job := NewJob(paths, mode, folder)
	g.log.Debug("selection admitted",
		"job_id", job.ID,
		"count", job.Total(),
		"mode", mode,
		"batch_size", job.BatchSize,
		"concurrency", job.ConcurrencyLimit)
	return job, nil
}

// Passes splits paths into consecutive chunks each within the ceiling.
func (g *Guard) Passes(paths []string) [][]string {
	var passes [][]string
	for lo := 0; lo < len(paths); lo += g.ceiling {
		hi := min(lo+g.ceiling, len(paths))
		passes = append(passes, paths[lo:hi])
	}
	return passes
}

// firstOutside returns the first path not under root. The check is lexical.
func firstOutside(root string, paths []string) (string, bool) {
	root = filepath.Clean(root)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return p, true
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return p, true
		}
	}
	return "", false
}
