package connection

import "errors"

// Connection errors.
var (
	ErrManagerClosed    = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates the transport is being opened.
	StateConnecting

	// StateAwaitingAuthentication indicates the transport is open and the
	// authenticate request was sent, but not yet confirmed.
	StateAwaitingAuthentication

	// StateConnected indicates an authenticated connection.
	StateConnected

	// StateReconnecting indicates a reconnect is scheduled.
	StateReconnecting

	// StateClosed indicates the owner has been shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingAuthentication:
		return "AWAITING_AUTHENTICATION"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
