package debug

// State is the state of a debug session.
type State uint8

const (
	StateDetached State = iota
	StateAttaching
	StatePaused
	StateStepping
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttaching:
		return "attaching"
	case StatePaused:
		return "paused"
	case StateStepping:
		return "stepping"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Reasons carried by Paused and Terminated events.
const (
	ReasonEntry         = "entry"
	ReasonBreakpoint    = "breakpoint"
	ReasonStep          = "step"
	ReasonCompleted     = "completed"
	ReasonTerminated    = "terminated"
	ReasonDetached      = "detached"
	ReasonStackOverflow = "stack overflow"
	ReasonStepLimit     = "step limit"
	ReasonError         = "error"
)
