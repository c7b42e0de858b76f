package exchange

import (
	"errors"

	"github.com/getmockd/inspectd/internal/id"
)

var (
	// ErrNotFound is returned when no exchange is stored under a well-formed key.
	ErrNotFound = errors.New("exchange not found")

	// ErrInvalidKey is returned when a key cannot be parsed as a GUID.
	// It aliases id.ErrInvalidKey so that errors.Is works across packages.
	ErrInvalidKey = id.ErrInvalidKey

	// ErrNoData is returned when a raw field needed for an operation is absent
	// on an otherwise valid exchange.
	ErrNoData = errors.New("no data")
)
