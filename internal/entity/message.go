package entity

type MessageKind int

const (
	StartProfileMessage MessageKind = iota
	StopProfileMessage
	ManualValuesMessage
	ProfileSourceMessage
	LogDestinationMessage
	RecordingMessage
	StopControllerMessage
)

func (k MessageKind) String() string {
	switch k {
	case StartProfileMessage:
		return "start_profile"
	case StopProfileMessage:
		return "stop_profile"
	case ManualValuesMessage:
		return "manual_values"
	case ProfileSourceMessage:
		return "profile_source"
	case LogDestinationMessage:
		return "log_destination"
	case RecordingMessage:
		return "recording"
	case StopControllerMessage:
		return "stop_controller"
	default:
		return "unknown"
	}
}

// Message is a command for the dispatch loop. Payload depends on Kind:
//   - StartProfileMessage: Profile
//   - ManualValuesMessage: map[string]string
//   - ProfileSourceMessage, LogDestinationMessage, StopControllerMessage: string
//   - RecordingMessage: bool
type Message struct {
	Kind    MessageKind
	Payload interface{}
}
