package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmunix/bulkimport/internal/batch"
)

// FindDuplicate implements batch.Store.
func (s *Store) FindDuplicate(ctx context.Context, hash string) (int64, bool, error) {
	m, err := s.GetMediaByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return m.ID, true, nil
}

// Persist implements batch.Store. Each call is its own transaction: the
// record is inserted, the staged copy (copy mode) is moved into the library,
// and only then is the transaction committed. A failure at any step leaves
// neither a record nor a placed file behind.
func (s *Store) Persist(ctx context.Context, h *batch.Handle, meta *batch.Metadata, mode batch.Mode) (*batch.Stored, error) {
	m := &Media{
		ContentHash: meta.Hash,
		Title:       meta.Title,
		Artist:      meta.Artist,
		Album:       meta.Album,
		SourcePath:  h.Source,
		Mode:        string(mode),
		SizeBytes:   meta.Size,
		Duration:    meta.Duration,
		Container:   meta.Container,
		VideoCodec:  meta.VideoCodec,
		AudioCodec:  meta.AudioCodec,
		Width:       meta.Width,
		Height:      meta.Height,
		Channels:    meta.Channels,
		Bitrate:     meta.Bitrate,
		JobID:       h.JobID,
	}

	switch mode {
	case batch.ModeCopy:
		dst, err := PlacementPath(s.root, meta.Hash, meta.Title, filepath.Ext(h.Source))
		if err != nil {
			return nil, err
		}
		m.Location = dst
	case batch.ModeReference:
		m.Location = h.Source
	default:
		return nil, fmt.Errorf("unknown import mode %q", mode)
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := tx.AddMedia(ctx, m); err != nil {
		if errors.Is(err, ErrDuplicate) {
			if existing, lookupErr := tx.GetMediaByHash(ctx, meta.Hash); lookupErr == nil {
				return nil, &batch.DuplicateError{ID: existing.ID}
			}
		}
		return nil, err
	}

	placed := false
	if mode == batch.ModeCopy {
		if err := moveFile(h.Path, m.Location); err != nil {
			return nil, fmt.Errorf("place %s: %w", m.Location, err)
		}
		placed = true
	}

	if err := tx.Commit(); err != nil {
		if placed {
			if rmErr := os.Remove(m.Location); rmErr != nil {
				s.log.Warn("remove orphaned placement", "path", m.Location, "error", rmErr)
			}
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true

	s.log.Debug("media stored", "id", m.ID, "location", m.Location, "mode", mode)
	return &batch.Stored{ID: m.ID, Location: m.Location}, nil
}
