// internal/batch/errors.go
package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrJobActive indicates a job is already processing.
	ErrJobActive = errors.New("an import job is already processing")

	// ErrNoJob indicates a command needs a job but none is loaded.
	ErrNoJob = errors.New("no import job")

	// ErrInvalidTransition indicates a command is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrInvalidSelection indicates the selection's mode and folder don't agree.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrUserCancelled is the terminal reason of a job cancelled by the caller.
	// It is never recorded as a file failure.
	ErrUserCancelled = errors.New("import cancelled by user")

	// ErrFolderRevoked indicates the job folder's access was lost mid-job.
	ErrFolderRevoked = errors.New("folder access revoked")

	// ErrWorkerPanic indicates a collaborator panicked while processing a file.
	ErrWorkerPanic = errors.New("worker panic")
)

// ErrorKind is the closed set of failure kinds surfaced to callers.
type ErrorKind string

const (
	KindOversized            ErrorKind = "oversized"
	KindUndersized           ErrorKind = "undersized"
	KindUnreadable           ErrorKind = "unreadable"
	KindNoMediaTracks        ErrorKind = "no_media_tracks"
	KindInvalidDuration      ErrorKind = "invalid_duration"
	KindExtractionFailed     ErrorKind = "extraction_failed"
	KindSystemPickerOverload ErrorKind = "system_picker_overload"
	KindFolderAccessDenied   ErrorKind = "folder_access_denied"
)

// Kinds lists every ErrorKind.
var Kinds = []ErrorKind{
	KindOversized,
	KindUndersized,
	KindUnreadable,
	KindNoMediaTracks,
	KindInvalidDuration,
	KindExtractionFailed,
	KindSystemPickerOverload,
	KindFolderAccessDenied,
}

// ValidationError is returned by validators for files that can't be imported.
type ValidationError struct {
	Kind   ErrorKind
	Path   string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExtractionError indicates metadata could not be extracted from a readable file.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract metadata %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError indicates the store could not record a validated file.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DuplicateError is returned by a Store when the content is already in the
// library, for instance when two identical files race within one batch.
type DuplicateError struct {
	ID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("already imported as media %d", e.ID)
}

// AccessError indicates security-scoped access was denied or lost.
// It escalates to a job-level failure.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("folder access denied %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// PickerOverloadError is returned at admission when a selection exceeds the ceiling.
type PickerOverloadError struct {
	Count   int
	Ceiling int
}

func (e *PickerOverloadError) Error() string {
	return fmt.Sprintf("selection of %d files exceeds the limit of %d per pass; use batch mode to import in multiple passes",
		e.Count, e.Ceiling)
}
