package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// illegalChars are characters not allowed in filenames on common filesystems.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

var (
	multiSpace = regexp.MustCompile(`\s+`)
	multiDot   = regexp.MustCompile(`\.{2,}`)
)

// SanitizeFilename makes name safe to use as a single path element.
// The result is NFC-composed so the same title always maps to the same bytes.
func SanitizeFilename(name string) string {
	name = multiSpace.ReplaceAllString(name, " ")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Cc)), norm.NFC)
	if out, _, err := transform.String(t, name); err == nil {
		name = out
	}
	name = illegalChars.ReplaceAllString(name, " ")
	name = multiDot.ReplaceAllString(name, ".")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.Trim(name, " .")
}

// ValidatePath ensures path is within root.
func ValidatePath(path, root string) error {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)
	if cleanPath == cleanRoot {
		return nil
	}
	if !strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator)) {
		return ErrPathTraversal
	}
	return nil
}

// PlacementPath returns where a copy-mode import lives inside root:
// <root>/<hash[:2]>/<title> [<hash[:8]>]<ext>. The hash prefix keeps
// directories small and the suffix keeps equal titles apart.
func PlacementPath(root, hash, title, ext string) (string, error) {
	if len(hash) < 8 {
		return "", fmt.Errorf("content hash %q too short", hash)
	}
	name := SanitizeFilename(title)
	if name == "" {
		name = "untitled"
	}
	if r := []rune(name); len(r) > 80 {
		name = strings.TrimSpace(string(r[:80]))
	}
	ext = strings.ToLower(SanitizeFilename(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	p := filepath.Join(root, hash[:2], fmt.Sprintf("%s [%s]%s", name, hash[:8], ext))
	if err := ValidatePath(p, root); err != nil {
		return "", err
	}
	return p, nil
}

// moveFile moves src to dst, falling back to copy+remove across devices.
// Returns ErrDestinationExists if dst is already present.
func moveFile(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return ErrDestinationExists
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename: %w", err)
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy content: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("sync: %w", err)
	}
	return out.Close()
}
