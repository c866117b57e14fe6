package transport

import "errors"

// Sentinel errors for session and event-log operations.
var (
	ErrUnknownSession    = errors.New("unknown session")
	ErrSessionTerminated = errors.New("session terminated")
	ErrSessionLimit      = errors.New("session limit reached")
	ErrAlreadyAttached   = errors.New("session already attached")
	ErrNotInitializing   = errors.New("session is not initializing")
	ErrLogClosed         = errors.New("event log closed")
)
