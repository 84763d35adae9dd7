// internal/api/v1/types.go
package v1

import (
	"time"

	"github.com/vmunix/bulkimport/internal/batch"
)

// startJobRequest is the body of POST /job.
type startJobRequest struct {
	Paths     []string `json:"paths"`
	Mode      string   `json:"mode,omitempty"`
	Folder    string   `json:"folder,omitempty"`
	Recursive bool     `json:"recursive,omitempty"`
}

// jobResponse describes the engine's current job.
type jobResponse struct {
	batch.Progress
	Label            string `json:"label"`
	BatchSize        int    `json:"batch_size,omitempty"`
	ConcurrencyLimit int    `json:"concurrency_limit,omitempty"`
	AdmissionCeiling int    `json:"admission_ceiling"`
}

// listResultsResponse is the response for GET /job/results.
type listResultsResponse struct {
	Items  []batch.Result `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// mediaResponse is the API representation of imported media.
type mediaResponse struct {
	ID          int64     `json:"id"`
	ContentHash string    `json:"content_hash"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	Album       string    `json:"album,omitempty"`
	Location    string    `json:"location"`
	SourcePath  string    `json:"source_path"`
	Mode        string    `json:"mode"`
	SizeBytes   int64     `json:"size_bytes"`
	DurationMS  int64     `json:"duration_ms"`
	Container   string    `json:"container,omitempty"`
	VideoCodec  string    `json:"video_codec,omitempty"`
	AudioCodec  string    `json:"audio_codec,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Channels    int       `json:"channels,omitempty"`
	Bitrate     int64     `json:"bitrate,omitempty"`
	JobID       string    `json:"job_id,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// listMediaResponse is the response for GET /media.
type listMediaResponse struct {
	Items  []mediaResponse `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// listJobsResponse is the response for GET /jobs.
type listJobsResponse struct {
	Items []batch.Summary `json:"items"`
}

// EventResponse is one entry of the event log.
type EventResponse struct {
	ID         int64  `json:"id"`
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Payload    any    `json:"payload,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type listEventsResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}
