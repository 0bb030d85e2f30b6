package framepump

import "fmt"

// State is a FramePump state.
type State int

// Pump states. One successful iteration runs Idle, Acquiring, Recording,
// Submitting, Presenting and back to Idle. Invalidated is entered when the
// chain no longer matches the surface; Suspended while the surface has no
// area.
const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitting
	StatePresenting
	StateInvalidated
	StateSuspended
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateAcquiring:   "acquiring",
	StateRecording:   "recording",
	StateSubmitting:  "submitting",
	StatePresenting:  "presenting",
	StateInvalidated: "invalidated",
	StateSuspended:   "suspended",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// midFrame reports whether a frame has been acquired but not yet presented.
// Cancellation is not observed in these states.
func (s State) midFrame() bool {
	switch s {
	case StateAcquiring, StateRecording, StateSubmitting, StatePresenting:
		return true
	}
	return false
}
