package delivery

// State is the delivery loop state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSending
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}
