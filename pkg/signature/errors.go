package signature

import (
	"errors"
	"fmt"
)

// ErrSignatureParse is matched by every *ParseError.
var ErrSignatureParse = errors.New("signature rejected")

var (
	errMissingDelimiters = errors.New("expected text enclosed in '[' and ']'")
	errEmptyToken        = errors.New("empty value")
)

// Stage identifies which validation step rejected a submission.
type Stage string

const (
	StageLookup     Stage = "lookup"
	StageDelimiters Stage = "delimiters"
	StageToken      Stage = "token"
	StageStructure  Stage = "structure"
)

// ParseError describes a rejected signature submission.
type ParseError struct {
	Stage Stage
	// Index and Token are set for StageToken.
	Index int
	Token string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Stage == StageToken {
		return fmt.Sprintf("signature %s: value %d (%q): %v", e.Stage, e.Index, e.Token, e.Cause)
	}
	return fmt.Sprintf("signature %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the cause.
func (e *ParseError) Unwrap() error { return e.Cause }

// Is reports true for ErrSignatureParse.
func (e *ParseError) Is(target error) bool { return target == ErrSignatureParse }
