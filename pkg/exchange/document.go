package exchange

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/getmockd/inspectd/internal/id"
)

// Document is the structured export form of an exchange. Session dumps are
// ordered arrays of documents.
type Document struct {
	ID         string           `json:"id"`
	IsLive     bool             `json:"isLive"`
	CapturedAt time.Time        `json:"capturedAt"`
	Request    RequestDocument  `json:"request"`
	Response   ResponseDocument `json:"response"`
}

// RequestDocument is the request half of a Document. Body and
// DecryptedSignature are always emitted so that an empty payload ("") stays
// distinct from an absent one (null).
type RequestDocument struct {
	Method             string          `json:"method,omitempty"`
	URL                string          `json:"url,omitempty"`
	Host               string          `json:"host,omitempty"`
	Path               string          `json:"path,omitempty"`
	Headers            http.Header     `json:"headers,omitempty"`
	Body               []byte          `json:"body"`
	EncryptedSignature []byte          `json:"encryptedSignature,omitempty"`
	DecryptedSignature []byte          `json:"decryptedSignature"`
	Signature          json.RawMessage `json:"signature,omitempty"`
	DecodedBody        *string         `json:"decodedBody,omitempty"`
}

// ResponseDocument is the response half of a Document.
type ResponseDocument struct {
	StatusCode  int           `json:"statusCode,omitempty"`
	Status      string        `json:"status,omitempty"`
	Headers     http.Header   `json:"headers,omitempty"`
	Body        []byte        `json:"body"`
	Duration    time.Duration `json:"duration,omitempty"`
	DecodedBody *string       `json:"decodedBody,omitempty"`
}

// Document returns the export form of the exchange. Decoded bodies appear only
// once they are set; the parsed signature is rendered with protojson.
func (e *Exchange) Document() Document {
	doc := Document{
		ID:         e.id.String(),
		IsLive:     e.live,
		CapturedAt: e.capturedAt,
		Request: RequestDocument{
			Method:             e.Request.Method,
			URL:                e.Request.URL,
			Host:               e.Request.Host,
			Path:               e.Request.Path,
			Headers:            e.Request.Headers,
			Body:               e.Request.Body,
			EncryptedSignature: e.Request.EncryptedSignature,
		},
		Response: ResponseDocument{
			StatusCode: e.Response.StatusCode,
			Status:     e.Response.Status,
			Headers:    e.Response.Headers,
			Body:       e.Response.Body,
			Duration:   e.Response.Duration,
		},
	}

	if v, ok := e.Request.DecodedBody.Get(); ok {
		doc.Request.DecodedBody = &v
	}
	if v, ok := e.Response.DecodedBody.Get(); ok {
		doc.Response.DecodedBody = &v
	}

	raw, parsed := e.Request.Signature.Get()
	doc.Request.DecryptedSignature = raw
	if parsed != nil {
		if b, err := protojson.Marshal(parsed); err == nil {
			doc.Request.Signature = b
		}
	}
	return doc
}

// MarshalJSON encodes the exchange as its Document.
func (e *Exchange) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Document())
}

// FromDocument rebuilds a replayed exchange from a dump document. The result
// is never live, whatever the document says, and has its decoded bodies
// pre-filled when the document carries them. The parsed signature is not
// restored; only the raw decrypted bytes are.
func FromDocument(doc Document) (*Exchange, error) {
	guid, err := id.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("document id: %w", err)
	}

	e := NewReplay(guid, doc.CapturedAt)
	e.Request = RequestData{
		Method:             doc.Request.Method,
		URL:                doc.Request.URL,
		Host:               doc.Request.Host,
		Path:               doc.Request.Path,
		Headers:            doc.Request.Headers,
		Body:               doc.Request.Body,
		EncryptedSignature: doc.Request.EncryptedSignature,
	}
	e.Response = ResponseData{
		StatusCode: doc.Response.StatusCode,
		Status:     doc.Response.Status,
		Headers:    doc.Response.Headers,
		Body:       doc.Response.Body,
		Duration:   doc.Response.Duration,
	}

	if doc.Request.DecodedBody != nil {
		e.Request.DecodedBody.preset(*doc.Request.DecodedBody)
	}
	if doc.Response.DecodedBody != nil {
		e.Response.DecodedBody.preset(*doc.Response.DecodedBody)
	}
	if doc.Request.DecryptedSignature != nil {
		e.Request.Signature.Set(doc.Request.DecryptedSignature, nil)
	}
	return e, nil
}
