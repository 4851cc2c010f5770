package entity

type ControllerState int

const (
	// StoppedState indicates that the controller does not regulate.
	StoppedState ControllerState = iota
	// RunningState indicates that the controller regulates towards its soll.
	RunningState
)

func (s ControllerState) String() string {
	switch s {
	case StoppedState:
		return "stopped"
	case RunningState:
		return "running"
	default:
		return "unknown"
	}
}
