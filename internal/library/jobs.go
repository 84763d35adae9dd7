package library

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vmunix/bulkimport/internal/batch"
)

// JobStore keeps summaries of finished import jobs.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates a job history store.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// RecordJob implements batch.History. Recording the same job again
// replaces the earlier summary, as happens when a job is restarted.
func (s *JobStore) RecordJob(ctx context.Context, sum batch.Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, mode, state, total, successful, failed, duplicates, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			total = excluded.total,
			successful = excluded.successful,
			failed = excluded.failed,
			duplicates = excluded.duplicates,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		sum.JobID, sum.Mode, sum.State, sum.Total, sum.Successful, sum.Failed, sum.Duplicates,
		sum.Error, sum.StartedAt, sum.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", sum.JobID, mapSQLiteError(err))
	}
	return nil
}

const jobColumns = `id, mode, state, total, successful, failed, duplicates, error, started_at, finished_at`

func scanJob(row scanner) (batch.Summary, error) {
	var sum batch.Summary
	err := row.Scan(&sum.JobID, &sum.Mode, &sum.State, &sum.Total, &sum.Successful, &sum.Failed,
		&sum.Duplicates, &sum.Error, &sum.StartedAt, &sum.FinishedAt)
	return sum, err
}

// GetJob returns the summary of one job.
// Returns ErrNotFound if it was never recorded.
func (s *JobStore) GetJob(ctx context.Context, id string) (batch.Summary, error) {
	sum, err := scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if err != nil {
		return batch.Summary{}, fmt.Errorf("get job %s: %w", id, mapSQLiteError(err))
	}
	return sum, nil
}

// ListJobs returns the most recently finished jobs first.
func (s *JobStore) ListJobs(ctx context.Context, limit int) ([]batch.Summary, error) {
	query := "SELECT " + jobColumns + " FROM jobs ORDER BY finished_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []batch.Summary
	for rows.Next() {
		sum, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}
