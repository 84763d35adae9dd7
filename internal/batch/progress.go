package batch

import (
	"fmt"
	"sync"
	"time"
)

// Progress is a point-in-time projection of the controller's job.
// It is derived from job state on every call and never stored.
type Progress struct {
	JobID            string        `json:"job_id,omitempty"`
	State            State         `json:"state"`
	Mode             Mode          `json:"mode,omitempty"`
	CurrentBatch     int           `json:"current_batch"` // 1-based, 0 when idle
	TotalBatches     int           `json:"total_batches"`
	CurrentFileIndex int           `json:"current_file_index"`
	CurrentFileName  string        `json:"current_file_name,omitempty"`
	Processed        int           `json:"processed"`
	TotalFiles       int           `json:"total_files"`
	Percent          float64       `json:"percent"`
	Stats            Stats         `json:"stats"`
	FilesPerSecond   float64       `json:"files_per_second,omitempty"`
	ETA              time.Duration `json:"eta,omitempty"`
	Elapsed          time.Duration `json:"elapsed"`
	Error            string        `json:"error,omitempty"`
}

// Label renders the batch position as shown to users.
func (p Progress) Label() string {
	if p.TotalBatches == 0 {
		return string(p.State)
	}
	return fmt.Sprintf("Batch %d of %d", p.CurrentBatch, p.TotalBatches)
}

// Fraction returns processed/total in [0, 1].
func (p Progress) Fraction() float64 {
	if p.TotalFiles == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.TotalFiles)
}

// rateEstimator smooths the file completion rate for ETA estimates.
type rateEstimator struct {
	mu       sync.Mutex
	samples  []rateSample
	rate     float64
	smoothed bool
}

type rateSample struct {
	at    time.Time
	files int
}

const (
	maxRateSamples = 10
	rateSmoothing  = 0.3
)

func (e *rateEstimator) observe(at time.Time, processed int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples = append(e.samples, rateSample{at: at, files: processed})
	if len(e.samples) > maxRateSamples {
		e.samples = e.samples[len(e.samples)-maxRateSamples:]
	}
	if len(e.samples) < 2 {
		return
	}
	oldest, newest := e.samples[0], e.samples[len(e.samples)-1]
	secs := newest.at.Sub(oldest.at).Seconds()
	if secs <= 0 {
		return
	}
	r := float64(newest.files-oldest.files) / secs
	if !e.smoothed {
		e.rate = r
		e.smoothed = true
		return
	}
	e.rate = rateSmoothing*r + (1-rateSmoothing)*e.rate
}

func (e *rateEstimator) estimate(remaining int) (rate float64, eta time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rate <= 0 || remaining <= 0 {
		return e.rate, 0
	}
	return e.rate, time.Duration(float64(remaining) / e.rate * float64(time.Second))
}

func (e *rateEstimator) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = nil
	e.rate = 0
	e.smoothed = false
}
