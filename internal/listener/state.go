package listener

// State is the lifecycle state of a listener.
type State int

const (
	// StateStopped is the initial state; the listener holds no socket.
	StateStopped State = iota
	// StateRunning means the transport is bound and accepting.
	StateRunning
	// StateFailed means the last start could not bind.  Stop resets it.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	case StateFailed:
		return "Failed"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	switch s {
	case "Stopped":
		return StateStopped, true
	case "Running":
		return StateRunning, true
	case "Failed":
		return StateFailed, true
	}
	return StateStopped, false
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
