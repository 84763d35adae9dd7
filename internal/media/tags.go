package media

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Tags are the embedded ID3/MP4/FLAC/OGG tags of a file.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Year   int
}

// ErrNoTags indicates the file carries no readable tags.
var ErrNoTags = tag.ErrNoTagsFound

// ReadTags reads embedded tags from path.
func ReadTags(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Tags{}, ErrNoTags
		}
		return Tags{}, fmt.Errorf("read tags: %w", err)
	}

	return Tags{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Year:   m.Year(),
	}, nil
}
