package id

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned when a string cannot be parsed as an exchange GUID.
var ErrInvalidKey = errors.New("invalid key")

// GUID is the identifier type for captured exchanges.
type GUID = uuid.UUID

// Nil is the zero GUID. It is never assigned to an exchange.
var Nil = uuid.Nil

// New generates a random (version 4) GUID.
func New() GUID {
	return uuid.New()
}

// Parse parses the canonical textual form of a GUID. Surrounding braces and
// the "urn:uuid:" prefix are accepted, matching uuid.Parse. The nil GUID is
// rejected because it can never identify an exchange.
func Parse(s string) (GUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	g, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	if g == Nil {
		return Nil, fmt.Errorf("%w: nil guid", ErrInvalidKey)
	}
	return g, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}
