package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

//go:generate mockgen -destination=mocks/collaborators.go -package=mocks github.com/vmunix/bulkimport/internal/batch Validator,Store,History

// Validator checks an acquired file and extracts its metadata.
// Failures should be *ValidationError or *ExtractionError.
type Validator interface {
	Validate(ctx context.Context, h *Handle) (*Metadata, error)
}

// Store persists validated files.
type Store interface {
	// FindDuplicate looks up media with the given content hash.
	FindDuplicate(ctx context.Context, hash string) (id int64, found bool, err error)
	// Persist records the file. In copy mode it takes ownership of h.Path.
	Persist(ctx context.Context, h *Handle, meta *Metadata, mode Mode) (*Stored, error)
}

// worker runs the per-file pipeline: access, acquire, validate, dedupe, persist.
type worker struct {
	validator  Validator
	store      Store
	stagingDir string
	timeout    time.Duration
	log        *slog.Logger
	metrics    Recorder
}

// process always returns exactly one Result for ref, whatever happens.
func (w *worker) process(ctx context.Context, job *Job, ref FileRef, bufs *bufferPool) (res Result) {
	start := time.Now()
	w.metrics.InFlight(1)
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker panic", "job_id", job.ID, "path", ref.Path, "panic", r)
			res = failureResult(ref, fmt.Errorf("%w: %v", ErrWorkerPanic, r))
		}
		w.metrics.InFlight(-1)
		res.Duration = time.Since(start)
		res.Timestamp = time.Now()
		w.metrics.FileProcessed(res.Outcome, res.Kind, res.Duration)
	}()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if job.Mode == ModeReference && job.Folder != nil {
		leave, err := job.Folder.Enter(ref.Path)
		if err != nil {
			return failureResult(ref, &AccessError{Path: ref.Path, Err: err})
		}
		defer leave()
	}

	h, err := acquire(ctx, ref, job.Mode, w.stagingDir, bufs)
	if err != nil {
		return failureResult(ref, err)
	}
	h.JobID = job.ID
	defer func() {
		if err := h.Release(); err != nil {
			w.log.Warn("release handle", "path", ref.Path, "error", err)
		}
	}()

	meta, err := w.validator.Validate(ctx, h)
	if err != nil {
		return failureResult(ref, asValidationFailure(ref.Path, err))
	}
	if meta.Hash == "" {
		meta.Hash = h.Hash
	}
	if meta.Size == 0 {
		meta.Size = h.Size
	}

	id, found, err := w.store.FindDuplicate(ctx, meta.Hash)
	if err != nil {
		return failureResult(ref, &PersistenceError{Path: ref.Path, Err: err})
	}
	if found {
		w.log.Debug("duplicate skipped", "job_id", job.ID, "path", ref.Path, "existing_id", id)
		return Result{Ref: ref, Outcome: OutcomeDuplicate, Metadata: meta, DuplicateOf: id}
	}

	stored, err := w.store.Persist(ctx, h, meta, job.Mode)
	if err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			return Result{Ref: ref, Outcome: OutcomeDuplicate, Metadata: meta, DuplicateOf: dup.ID}
		}
		var accessErr *AccessError
		if !errors.As(err, &accessErr) {
			err = &PersistenceError{Path: ref.Path, Err: err}
		}
		return failureResult(ref, err)
	}

	return Result{Ref: ref, Outcome: OutcomeSuccess, Metadata: meta, Stored: stored}
}

// asValidationFailure keeps typed validator errors and wraps anything else
// as an extraction failure.
func asValidationFailure(path string, err error) error {
	var validation *ValidationError
	var extraction *ExtractionError
	var accessErr *AccessError
	if errors.As(err, &validation) || errors.As(err, &extraction) || errors.As(err, &accessErr) {
		return err
	}
	return &ExtractionError{Path: path, Err: err}
}
