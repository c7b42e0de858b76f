package inspect

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/httputil"
)

const binaryContentType = "application/binary"

func (s *Server) handleDownloadCert(w http.ResponseWriter, r *http.Request) {
	if s.ca == nil {
		httputil.WriteNotFound(w, CodeNoCA, "No root certificate configured")
		return
	}
	pem, err := s.ca.CACertPEM()
	if err != nil {
		s.log.Warn("root certificate unavailable", "error", err)
		httputil.WriteNotFound(w, CodeNoCA, "Root certificate not available")
		return
	}
	httputil.WriteAttachment(w, s.certName+".cer", "application/x-x509-ca-cert", pem)
}

// writeBytes sends raw as an attachment, or no_data when raw is nil.
func (s *Server) writeBytes(w http.ResponseWriter, r *http.Request, e *exchange.Exchange, suffix string, raw []byte) {
	if raw == nil {
		s.writeErr(w, r, fmt.Errorf("%s of %s: %w", suffix, e.ID(), exchange.ErrNoData))
		return
	}
	httputil.WriteAttachment(w, e.ID().String()+"-"+suffix+".bin", binaryContentType, raw)
}

func (s *Server) handleRequestRaw(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.lookup(w, r); ok {
		s.writeBytes(w, r, e, "request", e.Request.Body)
	}
}

func (s *Server) handleResponseRaw(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.lookup(w, r); ok {
		s.writeBytes(w, r, e, "response", e.Response.Body)
	}
}

func (s *Server) handleRawSignature(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.lookup(w, r); ok {
		s.writeBytes(w, r, e, "rawsignature", e.Request.EncryptedSignature)
	}
}

func (s *Server) handleDecryptedSignature(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.lookup(w, r); ok {
		s.writeBytes(w, r, e, "decryptedsignature", e.Request.Signature.Raw())
	}
}

type decodeFunc func(ctx context.Context, e *exchange.Exchange) (string, error)

func (s *Server) writeDecoded(w http.ResponseWriter, r *http.Request, suffix string, fn decodeFunc) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	text, err := fn(r.Context(), e)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	httputil.WriteAttachment(w, e.ID().String()+"-"+suffix+".txt", "text/plain; charset=utf-8", []byte(text))
}

func (s *Server) handleRequestDecoded(w http.ResponseWriter, r *http.Request) {
	s.writeDecoded(w, r, "request", s.decoder.RequestBody)
}

func (s *Server) handleResponseDecoded(w http.ResponseWriter, r *http.Request) {
	s.writeDecoded(w, r, "response", s.decoder.ResponseBody)
}
