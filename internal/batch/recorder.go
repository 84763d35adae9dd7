package batch

import "time"

// Recorder receives engine measurements. The metrics package provides a
// Prometheus implementation.
type Recorder interface {
	FileProcessed(outcome Outcome, kind ErrorKind, d time.Duration)
	BatchSettled(elapsed, delay time.Duration)
	JobFinished(state State)
	InFlight(delta int)
}

type nopRecorder struct{}

func (nopRecorder) FileProcessed(Outcome, ErrorKind, time.Duration) {}
func (nopRecorder) BatchSettled(time.Duration, time.Duration)       {}
func (nopRecorder) JobFinished(State)                               {}
func (nopRecorder) InFlight(int)                                    {}
