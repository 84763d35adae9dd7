package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/events"
	"github.com/vmunix/bulkimport/internal/library"
)

//go:generate mockgen -destination=mocks/deps.go -package=mocks github.com/vmunix/bulkimport/internal/api/v1 Engine,Admitter

// ErrMissingDependency is returned when a required dependency is nil.
var ErrMissingDependency = errors.New("missing required dependency")

// Engine is the import engine driven by the API.
type Engine interface {
	Start(ctx context.Context, job *batch.Job) error
	Pause() error
	Resume() error
	Cancel() error
	Restart(ctx context.Context) error
	ClearResults()
	State() batch.State
	Job() *batch.Job
	Progress() batch.Progress
	Results() []batch.Result
}

// Admitter turns a selection into a job, enforcing the admission ceiling.
type Admitter interface {
	Admit(paths []string, mode batch.Mode, folder batch.Folder) (*batch.Job, error)
	Ceiling() int
}

// FolderOpener grants access to a folder for reference-mode imports.
type FolderOpener func(root string) (batch.Folder, error)

// ServerDeps contains all dependencies for the API server.
// Required dependencies must be non-nil; optional dependencies may be nil.
type ServerDeps struct {
	// Required dependencies
	Engine  Engine
	Guard   Admitter
	Library *library.Store
	Jobs    *library.JobStore

	// Optional dependencies
	EventLog    *events.EventLog
	Metrics     http.Handler
	OpenFolder  FolderOpener
	DefaultMode batch.Mode
	Logger      *slog.Logger

	// JobContext bounds jobs started over HTTP. Request contexts end with
	// the response, so jobs must not inherit them. Defaults to Background.
	JobContext context.Context
}

// Validate checks that all required dependencies are provided.
func (d ServerDeps) Validate() error {
	switch {
	case d.Engine == nil:
		return errors.New("engine is required")
	case d.Guard == nil:
		return errors.New("guard is required")
	case d.Library == nil:
		return errors.New("library store is required")
	case d.Jobs == nil:
		return errors.New("job store is required")
	}
	return nil
}
