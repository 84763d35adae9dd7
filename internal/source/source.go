// Package source turns command-line arguments, directories and list files
// into the ordered selection handed to the import engine.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrEmptySelection indicates nothing importable was found.
var ErrEmptySelection = errors.New("no media files selected")

var mediaExtensions = map[string]bool{
	// video
	".mp4": true, ".m4v": true, ".mkv": true, ".mov": true, ".avi": true, ".wmv": true,
	".webm": true, ".flv": true, ".mpg": true, ".mpeg": true, ".ts": true, ".m2ts": true,
	".3gp": true, ".ogv": true,
	// audio
	".mp3": true, ".m4a": true, ".aac": true, ".flac": true, ".wav": true, ".ogg": true,
	".opus": true, ".wma": true, ".aiff": true, ".alac": true,
}

// IsMediaFile reports whether path has a known audio or video extension.
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// Options controls directory expansion.
type Options struct {
	Recursive     bool // descend into subdirectories
	IncludeHidden bool // include dot files and dot directories
	SkipSamples   bool // skip files with "sample" in the name
}

// Expand resolves paths into an ordered, de-duplicated list of absolute file
// paths. Files named explicitly are kept whatever their extension; directory
// contents are filtered to media files and sorted by path.
func Expand(ctx context.Context, paths []string, opts Options) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		found, err := walk(ctx, abs, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptySelection
	}
	return out, nil
}

func walk(ctx context.Context, root string, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		hidden := path != root && strings.HasPrefix(name, ".")
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || (hidden && !opts.IncludeHidden) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden && !opts.IncludeHidden {
			return nil
		}
		if !d.Type().IsRegular() || !IsMediaFile(name) {
			return nil
		}
		if opts.SkipSamples && strings.Contains(strings.ToLower(name), "sample") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}

// ReadList reads a newline-delimited list of paths. Blank lines and lines
// starting with # are ignored.
func ReadList(r io.Reader) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	return paths, nil
}

// ReadListFile reads a list file; "-" reads standard input.
func ReadListFile(path string) ([]string, error) {
	if path == "-" {
		return ReadList(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadList(f)
}
