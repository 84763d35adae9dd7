package media

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeTitle collapses whitespace, drops control characters and
// composes the result to NFC.
func NormalizeTitle(s string) string {
	s = multiSpace.ReplaceAllString(s, " ")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Cc)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(out)
}

// FoldTitle returns a lowercase, accent-free key for matching titles.
func FoldTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, NormalizeTitle(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// TitleFromFilename derives a display title from a file path.
func TitleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", ".", " ").Replace(base)
	return NormalizeTitle(base)
}
