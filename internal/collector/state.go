package collector

// State is the lifecycle phase of a Loop.
type State int

const (
	StateIdle State = iota
	StateEnumerating
	StateReady
	StateSampling
	StateRecording
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnumerating:
		return "enumerating"
	case StateReady:
		return "ready"
	case StateSampling:
		return "sampling"
	case StateRecording:
		return "recording"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
