package exchange

import (
	"net/http"
	"time"

	"github.com/getmockd/inspectd/internal/id"
)

// Exchange is one captured request/response pair.
//
// Raw fields must not be modified after the exchange is inserted into a Store.
// Derived state is only reachable through the slots.
type Exchange struct {
	id         id.GUID
	live       bool
	capturedAt time.Time

	Request  RequestData
	Response ResponseData
}

// RequestData is the captured request side of an exchange.
type RequestData struct {
	Method  string
	URL     string
	Host    string
	Path    string
	Headers http.Header
	Body    []byte

	// EncryptedSignature is the signature blob extracted from Body at capture
	// time, if any.
	EncryptedSignature []byte

	DecodedBody TextSlot
	Signature   SignatureSlot
}

// ResponseData is the captured response side of an exchange. Body is nil when
// the response was never captured.
type ResponseData struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Duration   time.Duration

	DecodedBody TextSlot
}

// NewLive creates an exchange for the live capture feed with a fresh GUID.
func NewLive(capturedAt time.Time) *Exchange {
	return &Exchange{
		id:         id.New(),
		live:       true,
		capturedAt: capturedAt,
	}
}

// NewReplay creates an exchange read from a session dump under its recorded GUID.
func NewReplay(guid id.GUID, capturedAt time.Time) *Exchange {
	return &Exchange{
		id:         guid,
		capturedAt: capturedAt,
	}
}

// ID returns the exchange GUID.
func (e *Exchange) ID() id.GUID { return e.id }

// IsLive reports whether the exchange came from the live capture feed.
func (e *Exchange) IsLive() bool { return e.live }

// CapturedAt returns the capture timestamp.
func (e *Exchange) CapturedAt() time.Time { return e.capturedAt }

// CaptureRequest copies request details into the exchange. It must be called
// before the exchange is inserted.
func (e *Exchange) CaptureRequest(req *http.Request, body []byte) {
	e.Request.Method = req.Method
	e.Request.URL = req.URL.String()
	e.Request.Host = req.Host
	e.Request.Path = req.URL.Path
	e.Request.Headers = req.Header.Clone()
	e.Request.Body = body
}

// CaptureResponse copies response details into the exchange. It must be called
// before the exchange is inserted.
func (e *Exchange) CaptureResponse(resp *http.Response, body []byte, duration time.Duration) {
	e.Response.StatusCode = resp.StatusCode
	e.Response.Status = resp.Status
	e.Response.Headers = resp.Header.Clone()
	e.Response.Body = body
	e.Response.Duration = duration
}

// Summary is the lightweight listing view of an exchange.
type Summary struct {
	ID           string    `json:"id"`
	CapturedAt   time.Time `json:"capturedAt"`
	IsLive       bool      `json:"isLive"`
	Method       string    `json:"method,omitempty"`
	Host         string    `json:"host,omitempty"`
	Path         string    `json:"path,omitempty"`
	StatusCode   int       `json:"statusCode,omitempty"`
	RequestSize  int       `json:"requestSize"`
	ResponseSize int       `json:"responseSize"`
	HasResponse  bool      `json:"hasResponse"`
	HasSignature bool      `json:"hasSignature"`
	Decrypted    bool      `json:"decrypted"`
}

// Summary returns the listing view of the exchange.
func (e *Exchange) Summary() Summary {
	return Summary{
		ID:           e.id.String(),
		CapturedAt:   e.capturedAt,
		IsLive:       e.live,
		Method:       e.Request.Method,
		Host:         e.Request.Host,
		Path:         e.Request.Path,
		StatusCode:   e.Response.StatusCode,
		RequestSize:  len(e.Request.Body),
		ResponseSize: len(e.Response.Body),
		HasResponse:  e.Response.Body != nil,
		HasSignature: len(e.Request.EncryptedSignature) > 0,
		Decrypted:    e.Request.Signature.Raw() != nil,
	}
}
