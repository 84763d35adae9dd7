// Package library stores imported media and finished job summaries.
package library

import (
	"time"
)

// Media is one imported file.
type Media struct {
	ID          int64
	ContentHash string
	Title       string
	Artist      string
	Album       string
	Location    string // library copy, or the original file in reference mode
	SourcePath  string
	Mode        string
	SizeBytes   int64
	Duration    time.Duration
	Container   string
	VideoCodec  string
	AudioCodec  string
	Width       int
	Height      int
	Channels    int
	Bitrate     int64
	JobID       string
	AddedAt     time.Time
}

// MediaFilter specifies criteria for listing media.
type MediaFilter struct {
	Mode   *string
	JobID  *string
	Title  *string // substring match
	Limit  int     // 0 = no limit
	Offset int
}
