package library

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const mediaColumns = `id, content_hash, title, artist, album, location, source_path, mode,
	size_bytes, duration_ms, container, video_codec, audio_codec, width, height, channels,
	bitrate, COALESCE(job_id, ''), added_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(row scanner) (*Media, error) {
	m := &Media{}
	var durationMS int64
	err := row.Scan(&m.ID, &m.ContentHash, &m.Title, &m.Artist, &m.Album, &m.Location, &m.SourcePath, &m.Mode,
		&m.SizeBytes, &durationMS, &m.Container, &m.VideoCodec, &m.AudioCodec, &m.Width, &m.Height, &m.Channels,
		&m.Bitrate, &m.JobID, &m.AddedAt)
	if err != nil {
		return nil, err
	}
	m.Duration = time.Duration(durationMS) * time.Millisecond
	return m, nil
}

func addMedia(ctx context.Context, q querier, m *Media) error {
	now := time.Now()
	var jobID any
	if m.JobID != "" {
		jobID = m.JobID
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO media (content_hash, title, artist, album, location, source_path, mode,
			size_bytes, duration_ms, container, video_codec, audio_codec, width, height, channels,
			bitrate, job_id, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ContentHash, m.Title, m.Artist, m.Album, m.Location, m.SourcePath, m.Mode,
		m.SizeBytes, m.Duration.Milliseconds(), m.Container, m.VideoCodec, m.AudioCodec, m.Width, m.Height, m.Channels,
		m.Bitrate, jobID, now,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	m.ID = id
	m.AddedAt = now
	return nil
}

// AddMedia inserts a media record. Sets ID and AddedAt on the struct.
// Returns ErrDuplicate if the content hash is already present.
func (s *Store) AddMedia(ctx context.Context, m *Media) error { return addMedia(ctx, s.db, m) }

// AddMedia inserts a media record within a transaction.
func (t *Tx) AddMedia(ctx context.Context, m *Media) error { return addMedia(ctx, t.tx, m) }

func getMedia(ctx context.Context, q querier, id int64) (*Media, error) {
	m, err := scanMedia(q.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get media %d: %w", id, mapSQLiteError(err))
	}
	return m, nil
}

// GetMedia retrieves media by ID.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetMedia(ctx context.Context, id int64) (*Media, error) {
	return getMedia(ctx, s.db, id)
}

// GetMedia retrieves media by ID within a transaction.
func (t *Tx) GetMedia(ctx context.Context, id int64) (*Media, error) { return getMedia(ctx, t.tx, id) }

func getMediaByHash(ctx context.Context, q querier, hash string) (*Media, error) {
	m, err := scanMedia(q.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM media WHERE content_hash = ?", hash))
	if err != nil {
		return nil, fmt.Errorf("get media by hash: %w", mapSQLiteError(err))
	}
	return m, nil
}

// GetMediaByHash retrieves media by content hash.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetMediaByHash(ctx context.Context, hash string) (*Media, error) {
	return getMediaByHash(ctx, s.db, hash)
}

// GetMediaByHash retrieves media by content hash within a transaction.
func (t *Tx) GetMediaByHash(ctx context.Context, hash string) (*Media, error) {
	return getMediaByHash(ctx, t.tx, hash)
}

func listMedia(ctx context.Context, q querier, f MediaFilter) ([]*Media, int, error) {
	var conditions []string
	var args []any

	if f.Mode != nil {
		conditions = append(conditions, "mode = ?")
		args = append(args, *f.Mode)
	}
	if f.JobID != nil {
		conditions = append(conditions, "job_id = ?")
		args = append(args, *f.JobID)
	}
	if f.Title != nil {
		conditions = append(conditions, "title LIKE ?")
		args = append(args, "%"+*f.Title+"%")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM media "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}

	query := "SELECT " + mediaColumns + " FROM media " + whereClause + " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan media: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate media: %w", err)
	}

	return results, total, nil
}

// ListMedia returns media matching the filter with pagination.
// Returns (results, totalCount, error).
func (s *Store) ListMedia(ctx context.Context, f MediaFilter) ([]*Media, int, error) {
	return listMedia(ctx, s.db, f)
}

// ListMedia returns media matching the filter within a transaction.
func (t *Tx) ListMedia(ctx context.Context, f MediaFilter) ([]*Media, int, error) {
	return listMedia(ctx, t.tx, f)
}

func deleteMedia(ctx context.Context, q querier, id int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM media WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete media %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// DeleteMedia removes a media record by ID. Files on disk are left alone.
// This operation is idempotent.
func (s *Store) DeleteMedia(ctx context.Context, id int64) error { return deleteMedia(ctx, s.db, id) }

// DeleteMedia removes a media record by ID within a transaction.
func (t *Tx) DeleteMedia(ctx context.Context, id int64) error { return deleteMedia(ctx, t.tx, id) }
