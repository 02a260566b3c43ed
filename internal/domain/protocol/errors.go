package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAddressed means the message belongs to someone else on the shared
	// channel. Callers ignore it without logging.
	ErrNotAddressed = errors.New("message not addressed to host")
	// ErrMalformed means the message was addressed to the host but could not
	// be read.
	ErrMalformed = errors.New("malformed message")
)

// MalformedError carries the reason a host-bound message was rejected.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return "malformed message: " + e.Reason
}

// Unwrap lets errors.Is match both ErrMalformed and the parse cause.
func (e *MalformedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformed}
	}
	return []error{ErrMalformed, e.Err}
}
