package inspect

import (
	"context"
	"errors"
	"net/http"

	"github.com/getmockd/inspectd/pkg/decode"
	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/httputil"
	"github.com/getmockd/inspectd/pkg/session"
)

// Error codes returned in JSON error bodies.
const (
	CodeInvalidKey      = "invalid_key"
	CodeNotFound        = "not_found"
	CodeNoData          = "no_data"
	CodeDecodeFailed    = "decode_failed"
	CodeSessionNotFound = "session_not_found"
	CodeInvalidSession  = "invalid_session"
	CodeInvalidRequest  = "invalid_request"
	CodeNoCA            = "no_ca"
	CodeInternal        = "internal"
)

// writeErr maps domain errors onto HTTP responses. Unknown errors are logged
// and reported as a generic internal error.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, exchange.ErrInvalidKey):
		httputil.WriteBadRequest(w, CodeInvalidKey, "Malformed exchange id")
	case errors.Is(err, exchange.ErrNotFound):
		httputil.WriteNotFound(w, CodeNotFound, "Exchange not found")
	case errors.Is(err, exchange.ErrNoData):
		httputil.WriteNotFound(w, CodeNoData, "Exchange has no data for this field")
	case errors.Is(err, session.ErrSessionNotFound):
		httputil.WriteNotFound(w, CodeSessionNotFound, "Session not found")
	case errors.Is(err, session.ErrInvalidDump):
		s.log.Warn("unreadable session dump", "path", r.URL.Path, "error", err)
		httputil.WriteError(w, http.StatusUnprocessableEntity, CodeInvalidSession, "Session dump is not a list of exchanges")
	case errors.Is(err, decode.ErrDecode):
		msg := "Decoder failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "Decoder timed out"
		}
		httputil.WriteBadGateway(w, CodeDecodeFailed, msg)
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httputil.WriteInternalError(w, CodeInternal, "An internal error occurred")
	}
}
