package batch

// State is the lifecycle state of the controller's current job.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StatePaused     State = "paused"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// validTransitions defines allowed state transitions.
// Key is the "from" state, value is list of valid "to" states.
// Any state may also return to idle when results are cleared.
var validTransitions = map[State][]State{
	StateIdle:       {StateProcessing},
	StateProcessing: {StatePaused, StateCancelled, StateCompleted},
	StatePaused:     {StateProcessing, StateCancelled, StateCompleted},
	StateCompleted:  {StateProcessing}, // restart
	StateCancelled:  {StateProcessing}, // restart
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s State) CanTransitionTo(target State) bool {
	if target == StateIdle {
		return true
	}
	for _, v := range validTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job has stopped dispatching for good.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// IsActive reports whether a job is loaded and not yet terminal.
func (s State) IsActive() bool {
	return s == StateProcessing || s == StatePaused
}
