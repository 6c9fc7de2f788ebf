package keyframe

import "errors"

// State is a step of a single pipeline run.
type State string

const (
	StateStart         State = "START"
	StateSessionOpened State = "SESSION_OPENED"
	StateAcquired      State = "ACQUIRED"
	StateProbed        State = "PROBED"
	StatePlanned       State = "PLANNED"
	StateExtracting    State = "EXTRACTING"
	StateCompleted     State = "COMPLETED"
	StateFailed        State = "FAILED"
	StateCleaned       State = "CLEANED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("keyframe: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateStart:         {StateSessionOpened, StateFailed},
	StateSessionOpened: {StateAcquired, StateFailed},
	StateAcquired:      {StateProbed, StateFailed},
	StateProbed:        {StatePlanned, StateFailed},
	StatePlanned:       {StateExtracting, StateFailed},
	StateExtracting:    {StateCompleted, StateFailed},
	StateCompleted:     {StateCleaned},
	StateFailed:        {StateCleaned},
	StateCleaned:       {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateCleaned
}
