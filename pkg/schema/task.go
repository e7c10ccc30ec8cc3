package schema

////////////////////////////////////////////////////////////////////////////////
// TYPES

// State is the lifecycle state of a task
type State uint

// Phase is the position of a task in the transfer state machine
type Phase uint

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	Pending State = iota
	InProgress
	Done
	Failed
)

const (
	PhaseStart Phase = iota
	PhaseUploading
	PhaseFinishing
	PhaseDone
	PhaseFailed
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Terminal returns true for Done and Failed
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "progress"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseUploading:
		return "uploading"
	case PhaseFinishing:
		return "finishing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
