package store

// State is the connection state of a [Client].
type State int32

const (
	// StateUnattempted means Connect has not been called yet.
	StateUnattempted State = iota
	// StateConnecting means candidates are being dialed.
	StateConnecting
	// StateConnected means a Redis candidate answered. Terminal.
	StateConnected
	// StateFallback means every candidate failed and the in-process map is
	// in use. Terminal.
	StateFallback
)

// String returns the lower-case state name used in logs and health output.
func (s State) String() string {
	switch s {
	case StateUnattempted:
		return "unattempted"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Terminal reports whether s can no longer change.
func (s State) Terminal() bool {
	return s == StateConnected || s == StateFallback
}
