package session

import "errors"

var (
	// ErrNoContentWindow is reported when the frame loaded without a
	// reachable content window.
	ErrNoContentWindow = errors.New("frame has no content window")
	// ErrNotInitialized is returned when sending before the handshake.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrDestroyed is returned when using a destroyed session.
	ErrDestroyed = errors.New("session destroyed")
)
