package batch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Mode selects how imported files are stored.
type Mode string

const (
	// ModeCopy copies each file into the library.
	ModeCopy Mode = "copy"
	// ModeReference records each file where it already lives.
	ModeReference Mode = "reference"
)

// ParseMode parses a mode name as written in config and on the command line.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCopy:
		return ModeCopy, nil
	case ModeReference, "reference_in_place":
		return ModeReference, nil
	default:
		return "", fmt.Errorf("%w: unknown import mode %q", ErrInvalidSelection, s)
	}
}

// Folder is a folder-level access grant covering every file of a
// reference-mode job. It is acquired once when a job starts and released
// once when it stops.
type Folder interface {
	Root() string
	Acquire() error
	Release() error
	// Enter grants access to one file inside the folder for the duration
	// of its processing. The returned func ends that access.
	Enter(path string) (release func(), err error)
	// Revoked is closed when access to the folder is lost.
	Revoked() <-chan struct{}
}

// FileRef is an opaque reference to one selected file.
type FileRef struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// Name returns the file's display name.
func (r FileRef) Name() string {
	return filepath.Base(r.Path)
}

// Metadata is what validation extracted from a media file.
type Metadata struct {
	Hash       string        `json:"content_hash"`
	Size       int64         `json:"size_bytes"`
	Duration   time.Duration `json:"duration"`
	Container  string        `json:"container,omitempty"`
	VideoCodec string        `json:"video_codec,omitempty"`
	AudioCodec string        `json:"audio_codec,omitempty"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	Channels   int           `json:"channels,omitempty"`
	Bitrate    int64         `json:"bitrate,omitempty"`
	Title      string        `json:"title,omitempty"`
	Artist     string        `json:"artist,omitempty"`
	Album      string        `json:"album,omitempty"`
}

// Stored identifies a persisted media record.
type Stored struct {
	ID       int64  `json:"id"`
	Location string `json:"location"`
}

// Outcome is the terminal outcome of one file.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailure   Outcome = "failure"
)

// Result is the outcome of processing one file. Exactly one Result is
// recorded per attempted file.
type Result struct {
	Ref         FileRef          `json:"file"`
	Outcome     Outcome          `json:"outcome"`
	Metadata    *Metadata        `json:"metadata,omitempty"`
	Stored      *Stored          `json:"stored,omitempty"`
	DuplicateOf int64            `json:"duplicate_of,omitempty"`
	Kind        ErrorKind        `json:"kind,omitempty"`
	Retryable   bool             `json:"retryable,omitempty"`
	Actions     []RecoveryAction `json:"actions,omitempty"`
	Error       string           `json:"error,omitempty"`
	Duration    time.Duration    `json:"duration"`
	Timestamp   time.Time        `json:"timestamp"`

	err error
}

// Err returns the underlying failure, if any. It is not serialized.
func (r Result) Err() error {
	return r.err
}

func failureResult(ref FileRef, err error) Result {
	c := Classify(err)
	return Result{
		Ref:       ref,
		Outcome:   OutcomeFailure,
		Kind:      c.Kind,
		Retryable: c.Retryable,
		Actions:   c.Actions,
		Error:     err.Error(),
		err:       err,
	}
}

// Stats is a summary over a set of results.
type Stats struct {
	Attempted  int               `json:"attempted"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Duplicates int               `json:"duplicates"`
	ByKind     map[ErrorKind]int `json:"by_kind,omitempty"`
}

// ComputeStats tallies results. Duplicates are neither successes nor failures.
func ComputeStats(results []Result) Stats {
	s := Stats{Attempted: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			s.Successful++
		case OutcomeDuplicate:
			s.Duplicates++
		case OutcomeFailure:
			s.Failed++
			if s.ByKind == nil {
				s.ByKind = make(map[ErrorKind]int)
			}
			s.ByKind[r.Kind]++
		}
	}
	return s
}

// Job is an admitted selection. The file list and mode never change after
// admission; batch size and concurrency are derived from the file count.
type Job struct {
	ID               string    `json:"id"`
	Mode             Mode      `json:"mode"`
	BatchSize        int       `json:"batch_size"`
	ConcurrencyLimit int       `json:"concurrency_limit"`
	CreatedAt        time.Time `json:"created_at"`
	Folder           Folder    `json:"-"`

	refs []FileRef
}

// NewJob builds a job over paths in selection order.
func NewJob(paths []string, mode Mode, folder Folder) *Job {
	refs := make([]FileRef, len(paths))
	for i, p := range paths {
		refs[i] = FileRef{Index: i, Path: p}
	}
	j := &Job{
		ID:        uuid.NewString(),
		Mode:      mode,
		Folder:    folder,
		CreatedAt: time.Now(),
		refs:      refs,
	}
	j.size()
	return j
}

func (j *Job) size() {
	j.BatchSize = BatchSize(len(j.refs))
	j.ConcurrencyLimit = ConcurrencyLimit(len(j.refs))
}

// Total returns the number of files in the job.
func (j *Job) Total() int {
	return len(j.refs)
}

// TotalBatches returns the number of batches the job is split into.
func (j *Job) TotalBatches() int {
	return TotalBatches(len(j.refs), j.BatchSize)
}

// Ref returns the file at selection index i.
func (j *Job) Ref(i int) FileRef {
	return j.refs[i]
}

// Refs returns a copy of the job's file references.
func (j *Job) Refs() []FileRef {
	return append([]FileRef(nil), j.refs...)
}

// Batch returns the half-open index range [lo, hi) of batch b.
func (j *Job) Batch(b int) (lo, hi int) {
	lo = b * j.BatchSize
	hi = min(lo+j.BatchSize, len(j.refs))
	return lo, hi
}
