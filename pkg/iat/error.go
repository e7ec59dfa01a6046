package iat

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a send is attempted on a session
// whose socket is gone. The caller reconnects by dialing a new
// session; sessions never reconnect themselves.
var ErrNotConnected = errors.New("iat: not connected")

// Error is an explicit recognition error reported by the gateway in a
// message's error field.
type Error struct {
	// Message is the gateway's error string.
	Message string

	// ReqID identifies the session that saw the error.
	ReqID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("iat: recognition error: %s (reqid=%s)", e.Message, e.ReqID)
}

// AsError attempts to convert err to an *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
