package session

import "fmt"

// Phase identifies where a session is in its lifecycle.
type Phase int

// Lifecycle phases. Stopped and Error are terminal: no transition leaves
// them, and the state cell drops any write attempted afterwards.
const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhaseReceiving
	PhaseStopped
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaiting:
		return "waiting"
	case PhaseReceiving:
		return "receiving"
	case PhaseStopped:
		return "stopped"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is one published lifecycle value. Only the fields belonging to
// the phase are meaningful: Port while waiting; Width, Height, FPS, and
// Frames while receiving; Reason when stopped; Cause on error.
type State struct {
	Phase  Phase
	Port   int
	Width  int
	Height int
	FPS    int
	Frames int64
	Reason string
	Cause  error
}

// Terminal reports whether no further transition can leave this state.
func (s State) Terminal() bool {
	return s.Phase == PhaseStopped || s.Phase == PhaseError
}

func (s State) String() string {
	switch s.Phase {
	case PhaseWaiting:
		return fmt.Sprintf("waiting(port=%d)", s.Port)
	case PhaseReceiving:
		return fmt.Sprintf("receiving(%dx%d@%d, %d rendered)", s.Width, s.Height, s.FPS, s.Frames)
	case PhaseStopped:
		return fmt.Sprintf("stopped(%s)", s.Reason)
	case PhaseError:
		return fmt.Sprintf("error(%v)", s.Cause)
	default:
		return s.Phase.String()
	}
}
