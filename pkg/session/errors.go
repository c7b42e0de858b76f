package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session name does not resolve to
	// a dump.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidDump is returned when a dump file is not an array of entries.
	ErrInvalidDump = errors.New("invalid session dump")
)

// LiveName is reserved for the live capture view and never names a dump.
const LiveName = "live"
