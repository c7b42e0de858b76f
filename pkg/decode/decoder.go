package decode

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted by New.
const (
	BackendBuiltin = "builtin"
	BackendProtoc  = "protoc"
)

// ErrDecode is matched by every error returned from a failed decode.
var ErrDecode = errors.New("decode failed")

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown decoder backend")

// Decoder converts raw payload bytes to text.
type Decoder interface {
	Decode(ctx context.Context, raw []byte) (string, error)
}

// Func adapts a function to the Decoder interface.
type Func func(ctx context.Context, raw []byte) (string, error)

// Decode calls f.
func (f Func) Decode(ctx context.Context, raw []byte) (string, error) {
	return f(ctx, raw)
}

// New returns the decoder for backend. protocPath is only used by the protoc
// backend and defaults to "protoc" on $PATH.
func New(backend, protocPath string) (Decoder, error) {
	switch backend {
	case "", BackendBuiltin:
		return Raw{}, nil
	case BackendProtoc:
		return &Protoc{Path: protocPath}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Field names the payload a decode operated on.
type Field string

const (
	FieldRequest  Field = "request"
	FieldResponse Field = "response"
)

// Error describes a failed decode of one exchange field.
type Error struct {
	Field Field
	ID    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode %s body of %s: %v", e.Field, e.ID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports true for ErrDecode.
func (e *Error) Is(target error) bool { return target == ErrDecode }
