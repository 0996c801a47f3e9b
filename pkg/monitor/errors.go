package monitor

import (
	"errors"
	"fmt"
)

// Monitor errors.
var (
	ErrNotConnected          = errors.New("monitor: not connected")
	ErrAlreadyConnected      = errors.New("monitor: already connected")
	ErrAuthenticationFailed  = errors.New("monitor: authentication failed")
	ErrAuthenticationTimeout = errors.New("monitor: authentication timed out")
	ErrDisconnected          = errors.New("monitor: disconnected")
	ErrSubscriptionRejected  = errors.New("monitor: subscription rejected")
	ErrClosed                = errors.New("monitor: closed")
	ErrNoSimIDs              = errors.New("monitor: no sim ids given")
)

// RejectedError reports a SIM the remote side refused to attach.
// It matches ErrSubscriptionRejected.
type RejectedError struct {
	SimID   string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("monitor: subscription rejected for sim %s: %s", e.SimID, e.Message)
}

// Is reports whether target is ErrSubscriptionRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrSubscriptionRejected
}
