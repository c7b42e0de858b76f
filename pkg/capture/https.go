package capture

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// handleConnect handles CONNECT requests, intercepting TLS when a CA is
// configured and tunneling otherwise.
func (p *Proxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	target := r.Host
	hostOnly, _, err := net.SplitHostPort(target)
	if err != nil {
		hostOnly = target
		target = net.JoinHostPort(target, "443")
	}

	if p.ca == nil {
		p.tunnelConnect(w, target)
		return
	}

	certPair, err := p.ca.GenerateHostCert(hostOnly)
	if err != nil {
		p.log.Error("generating host certificate failed", "host", hostOnly, "error", err)
		http.Error(w, "Error generating certificate", http.StatusInternalServerError)
		return
	}

	clientConn, ok := p.hijack(w)
	if !ok {
		return
	}

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		p.log.Warn("sending CONNECT response failed", "error", err)
		_ = clientConn.Close()
		return
	}

	//nolint:gosec // G402: clients negotiate whatever TLS version they support
	tlsConn := tls.Server(clientConn, &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{certPair.Cert.Raw},
			PrivateKey:  certPair.Key,
		}},
	})
	if err := tlsConn.Handshake(); err != nil {
		p.log.Debug("client TLS handshake failed", "host", hostOnly, "error", err)
		_ = clientConn.Close()
		return
	}

	p.log.Debug("intercepting", "target", target)
	p.handleTLSConnection(tlsConn, hostOnly, target)
}

// handleTLSConnection serves requests arriving on an intercepted connection
// until the client closes it.
func (p *Proxy) handleTLSConnection(clientConn *tls.Conn, hostOnly, target string) {
	defer func() { _ = clientConn.Close() }()

	reader := bufio.NewReader(clientConn)
	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.log.Debug("reading intercepted request failed", "host", hostOnly, "error", err)
			}
			return
		}

		req.URL.Scheme = "https"
		req.URL.Host = hostOnly
		req.Host = hostOnly

		if !p.handleHTTPSRequest(clientConn, req, hostOnly, target) || req.Close {
			return
		}
	}
}

// handleHTTPSRequest relays one intercepted request. It returns false when
// the client connection should be closed.
func (p *Proxy) handleHTTPSRequest(clientConn net.Conn, r *http.Request, hostOnly, target string) bool {
	started := p.now()

	reqBody, err := p.readBody(r.Body)
	if err != nil {
		p.log.Warn("reading intercepted request body failed", "host", hostOnly, "error", err)
		writeHTTPError(clientConn, http.StatusBadGateway, "Error reading request")
		return false
	}
	r.Body = http.NoBody
	if len(reqBody) > 0 {
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}
	r.ContentLength = int64(len(reqBody))
	r.TransferEncoding = nil
	removeHopByHopHeaders(r.Header)

	upstreamTLS := p.upstreamTLS.Clone()
	if upstreamTLS.ServerName == "" {
		upstreamTLS.ServerName = hostOnly
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 30 * time.Second},
		Config:    upstreamTLS,
	}
	targetConn, err := dialer.DialContext(r.Context(), "tcp", target)
	if err != nil {
		p.log.Warn("connecting to target failed", "target", target, "error", err)
		writeHTTPError(clientConn, http.StatusBadGateway, "Error connecting to target")
		return false
	}
	defer func() { _ = targetConn.Close() }()

	if err := r.Write(targetConn); err != nil {
		p.log.Warn("sending request to target failed", "target", target, "error", err)
		writeHTTPError(clientConn, http.StatusBadGateway, "Error sending request")
		return false
	}

	resp, err := http.ReadResponse(bufio.NewReader(targetConn), r)
	if err != nil {
		p.log.Warn("reading response from target failed", "target", target, "error", err)
		writeHTTPError(clientConn, http.StatusBadGateway, "Error reading response")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := p.readBody(resp.Body)
	if err != nil {
		p.log.Warn("reading response body failed", "target", target, "error", err)
		writeHTTPError(clientConn, http.StatusBadGateway, "Error reading response")
		return false
	}

	p.record(r, reqBody, resp, respBody, started, p.now().Sub(started))

	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	resp.ContentLength = int64(len(respBody))
	resp.TransferEncoding = nil
	if err := resp.Write(clientConn); err != nil {
		p.log.Debug("writing response to client failed", "error", err)
		return false
	}
	return !resp.Close
}

// tunnelConnect relays bytes between client and target without inspection.
func (p *Proxy) tunnelConnect(w http.ResponseWriter, target string) {
	targetConn, err := net.DialTimeout("tcp", target, 30*time.Second)
	if err != nil {
		p.log.Warn("connecting to target failed", "target", target, "error", err)
		http.Error(w, "Error connecting to target", http.StatusBadGateway)
		return
	}

	clientConn, ok := p.hijack(w)
	if !ok {
		_ = targetConn.Close()
		return
	}

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		_ = clientConn.Close()
		_ = targetConn.Close()
		return
	}

	p.log.Debug("tunneling", "target", target)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(targetConn, clientConn)
		_ = targetConn.Close()
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(clientConn, targetConn)
		_ = clientConn.Close()
	}()
	wg.Wait()
}

func (p *Proxy) hijack(w http.ResponseWriter) (net.Conn, bool) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		p.log.Error("response writer does not support hijacking")
		http.Error(w, "HTTP server does not support hijacking", http.StatusInternalServerError)
		return nil, false
	}
	conn, _, err := hijacker.Hijack()
	if err != nil {
		p.log.Error("hijacking connection failed", "error", err)
		http.Error(w, "Error hijacking connection", http.StatusInternalServerError)
		return nil, false
	}
	return conn, true
}

// writeHTTPError writes an HTTP error response to a raw connection.
func writeHTTPError(conn net.Conn, statusCode int, message string) {
	resp := &http.Response{
		StatusCode:    statusCode,
		Status:        http.StatusText(statusCode),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader([]byte(message))),
		ContentLength: int64(len(message)),
		Close:         true,
	}
	resp.Header.Set("Content-Type", "text/plain")
	_ = resp.Write(conn)
}
