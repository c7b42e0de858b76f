package inspect

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/getmockd/inspectd/pkg/httputil"
	"github.com/getmockd/inspectd/pkg/signature"
)

const maxSignatureBody = 1 << 20

// SignatureRequest is the JSON body of POST /details/signature/{guid}.
type SignatureRequest struct {
	Bytes string `json:"bytes"`
}

// SignatureResult reports the outcome of a submission. Exactly one of
// Signature and Error is set.
type SignatureResult struct {
	Success   bool            `json:"success"`
	Signature json.RawMessage `json:"signature,omitempty"`
	Error     *SignatureError `json:"error,omitempty"`
}

// SignatureError describes why a submission was rejected.
type SignatureError struct {
	Stage   signature.Stage `json:"stage"`
	Message string          `json:"message"`
	Index   *int            `json:"index,omitempty"`
	Token   *string         `json:"token,omitempty"`
}

// handleSubmitSignature handles POST /details/signature/{guid}. The byte list
// comes from a JSON body or the "bytes" form field. Rejections are reported
// with success=false rather than an HTTP error status.
func (s *Server) handleSubmitSignature(w http.ResponseWriter, r *http.Request) {
	text, err := readSignatureText(r)
	if err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}

	parsed, err := s.ingestor.Submit(r.PathValue("guid"), text)
	if err != nil {
		var pe *signature.ParseError
		if !errors.As(err, &pe) {
			s.writeErr(w, r, err)
			return
		}
		serr := &SignatureError{Stage: pe.Stage, Message: pe.Error()}
		if pe.Stage == signature.StageToken {
			serr.Index = &pe.Index
			serr.Token = &pe.Token
		}
		httputil.WriteOK(w, SignatureResult{Success: false, Error: serr})
		return
	}

	rendered, err := protojson.Marshal(parsed)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteOK(w, SignatureResult{Success: true, Signature: rendered})
}

func readSignatureText(r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxSignatureBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxSignatureBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return "", errors.New("invalid form body")
		}
		if !r.Form.Has("bytes") {
			return "", errors.New(`missing form field "bytes"`)
		}
		return r.Form.Get("bytes"), nil
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", errors.New("failed to read request body")
		}
		var req SignatureRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", errors.New("invalid JSON in request body")
		}
		return req.Bytes, nil
	}
}
