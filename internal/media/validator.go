package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"time"

	"github.com/vmunix/bulkimport/internal/batch"
)

// Limits bound what the validator accepts. Zero values disable a bound.
type Limits struct {
	MinSize     int64
	MaxSize     int64
	MinDuration time.Duration
	MaxDuration time.Duration
}

// Validator checks files with ffprobe and fills batch.Metadata.
type Validator struct {
	prober   Prober
	limits   Limits
	readTags bool
	log      *slog.Logger
}

// NewValidator returns a validator. With readTags set, embedded tags fill
// in title and artist when the container has none.
func NewValidator(prober Prober, limits Limits, readTags bool, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		prober:   prober,
		limits:   limits,
		readTags: readTags,
		log:      logger.With("component", "validator"),
	}
}

// Validate implements batch.Validator.
func (v *Validator) Validate(ctx context.Context, h *batch.Handle) (*batch.Metadata, error) {
	if v.limits.MaxSize > 0 && h.Size > v.limits.MaxSize {
		return nil, &batch.ValidationError{
			Kind:   batch.KindOversized,
			Path:   h.Source,
			Detail: fmt.Sprintf("%d bytes exceeds limit of %d", h.Size, v.limits.MaxSize),
		}
	}
	if h.Size == 0 || h.Size < v.limits.MinSize {
		return nil, &batch.ValidationError{
			Kind:   batch.KindUndersized,
			Path:   h.Source,
			Detail: fmt.Sprintf("%d bytes is below minimum of %d", h.Size, v.limits.MinSize),
		}
	}

	pr, err := v.prober.Probe(ctx, h.Path)
	if err != nil {
		return nil, v.probeFailure(ctx, h, err)
	}
	if !pr.HasMedia() {
		return nil, &batch.ValidationError{Kind: batch.KindNoMediaTracks, Path: h.Source, Detail: "no audio or video streams"}
	}

	secs := pr.Duration()
	if secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return nil, &batch.ValidationError{Kind: batch.KindInvalidDuration, Path: h.Source, Detail: "missing or zero duration"}
	}
	d := time.Duration(secs * float64(time.Second))
	if v.limits.MinDuration > 0 && d < v.limits.MinDuration {
		return nil, &batch.ValidationError{
			Kind:   batch.KindInvalidDuration,
			Path:   h.Source,
			Detail: fmt.Sprintf("%s is shorter than %s", d, v.limits.MinDuration),
		}
	}
	if v.limits.MaxDuration > 0 && d > v.limits.MaxDuration {
		return nil, &batch.ValidationError{
			Kind:   batch.KindInvalidDuration,
			Path:   h.Source,
			Detail: fmt.Sprintf("%s is longer than %s", d, v.limits.MaxDuration),
		}
	}

	meta := &batch.Metadata{
		Hash:      h.Hash,
		Size:      h.Size,
		Duration:  d,
		Container: pr.Format.FormatName,
		Bitrate:   pr.Format.BitRate,
		Title:     pr.Format.Tags["title"],
		Artist:    firstNonEmpty(pr.Format.Tags["artist"], pr.Format.Tags["album_artist"]),
		Album:     pr.Format.Tags["album"],
	}
	if vs := pr.PrimaryVideo(); vs != nil {
		meta.VideoCodec = vs.Codec
		meta.Width = vs.Width
		meta.Height = vs.Height
	}
	if as := pr.PrimaryAudio(); as != nil {
		meta.AudioCodec = as.Codec
		meta.Channels = as.Channels
	}

	if v.readTags && (meta.Title == "" || meta.Artist == "") {
		v.fillFromTags(h, meta)
	}
	if meta.Title == "" {
		meta.Title = TitleFromFilename(h.Source)
	}
	meta.Title = NormalizeTitle(meta.Title)
	meta.Artist = NormalizeTitle(meta.Artist)

	return meta, nil
}

func (v *Validator) fillFromTags(h *batch.Handle, meta *batch.Metadata) {
	tags, err := ReadTags(h.Path)
	if err != nil {
		if !errors.Is(err, ErrNoTags) {
			v.log.Debug("tag read failed", "path", h.Source, "error", err)
		}
		return
	}
	meta.Title = firstNonEmpty(meta.Title, tags.Title)
	meta.Artist = firstNonEmpty(meta.Artist, tags.Artist)
	meta.Album = firstNonEmpty(meta.Album, tags.Album)
}

func (v *Validator) probeFailure(ctx context.Context, h *batch.Handle, err error) error {
	switch {
	case ctx.Err() != nil:
		return &batch.ValidationError{Kind: batch.KindUnreadable, Path: h.Source, Detail: "probe timed out", Err: ctx.Err()}
	case IsNotMedia(err):
		return &batch.ValidationError{Kind: batch.KindNoMediaTracks, Path: h.Source, Err: err}
	case IsUnreadable(err):
		return &batch.ValidationError{Kind: batch.KindUnreadable, Path: h.Source, Err: err}
	case errors.Is(err, exec.ErrNotFound):
		v.log.Error("ffprobe not found", "error", err)
	}
	return &batch.ExtractionError{Path: h.Source, Err: err}
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
