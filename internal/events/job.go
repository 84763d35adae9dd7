// internal/events/job.go
package events

// Entity types
const (
	EntityJob   = "job"
	EntityMedia = "media"
)

// Event type constants
const (
	EventJobStarted      = "job.started"
	EventJobStateChanged = "job.state.changed"
	EventJobFinished     = "job.finished"
	EventJobCleared      = "job.cleared"
	EventBatchStarted    = "batch.started"
	EventBatchCompleted  = "batch.completed"
	EventFileProcessed   = "file.processed"
	EventMediaAdded      = "media.added"
)

// JobStarted is emitted when a job begins processing, including restarts.
type JobStarted struct {
	BaseEvent
	Mode             string `json:"mode"`
	TotalFiles       int    `json:"total_files"`
	TotalBatches     int    `json:"total_batches"`
	BatchSize        int    `json:"batch_size"`
	ConcurrencyLimit int    `json:"concurrency_limit"`
	Restart          bool   `json:"restart,omitempty"`
}

// JobStateChanged is emitted on every job state transition.
type JobStateChanged struct {
	BaseEvent
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// JobFinished is emitted when a job reaches completed or cancelled.
type JobFinished struct {
	BaseEvent
	State      string `json:"state"`
	TotalFiles int    `json:"total_files"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// JobCleared is emitted when results are discarded and the controller goes idle.
type JobCleared struct {
	BaseEvent
}

// BatchStarted is emitted when the first file of a batch is about to be dispatched.
type BatchStarted struct {
	BaseEvent
	Index        int `json:"index"` // 0-based
	TotalBatches int `json:"total_batches"`
	Size         int `json:"size"`
}

// BatchCompleted is emitted when every dispatched file of a batch has a result.
type BatchCompleted struct {
	BaseEvent
	Index        int   `json:"index"`
	TotalBatches int   `json:"total_batches"`
	Processed    int   `json:"processed"`
	Successful   int   `json:"successful"`
	Failed       int   `json:"failed"`
	Duplicates   int   `json:"duplicates"`
	DurationMS   int64 `json:"duration_ms"`
}

// FileProcessed is emitted once per file result.
type FileProcessed struct {
	BaseEvent
	Index      int    `json:"index"`
	Path       string `json:"path"`
	Outcome    string `json:"outcome"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error,omitempty"`
	MediaID    int64  `json:"media_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Succeeded reports whether the file was stored.
func (e *FileProcessed) Succeeded() bool {
	return e.Outcome == "success"
}

// MediaAdded is emitted when a file is persisted to the library.
type MediaAdded struct {
	BaseEvent
	MediaID     int64   `json:"media_id"`
	ContentHash string  `json:"content_hash"`
	Title       string  `json:"title"`
	Location    string  `json:"location"`
	Mode        string  `json:"mode"`
	Duration    float64 `json:"duration_seconds"`
}
