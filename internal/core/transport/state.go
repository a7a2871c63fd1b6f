package transport

// ConnectionState is the transport lifecycle state.
//
//	disconnected -> connecting -> connected -> error -> connecting (timer)
//	                                        -> disconnected
//	connecting -> error (failed handshake)
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
