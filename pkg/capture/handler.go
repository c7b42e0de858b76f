package capture

import (
	"bytes"
	"io"
	"net/http"
)

// handleHTTP forwards a plain HTTP proxy request and captures the exchange.
func (p *Proxy) handleHTTP(w http.ResponseWriter, r *http.Request) {
	started := p.now()

	reqBody, err := p.readBody(r.Body)
	if err != nil {
		p.log.Warn("reading request body failed", "host", r.Host, "error", err)
		http.Error(w, "Error reading request", http.StatusBadGateway)
		return
	}

	p.log.Debug("forwarding", "method", r.Method, "host", r.Host, "path", r.URL.Path)

	resp, err := p.forwardRequest(r, reqBody)
	if err != nil {
		p.log.Warn("forwarding request failed", "host", r.Host, "error", err)
		http.Error(w, "Error forwarding request: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := p.readBody(resp.Body)
	if err != nil {
		p.log.Warn("reading response body failed", "host", r.Host, "error", err)
		http.Error(w, "Error reading response", http.StatusBadGateway)
		return
	}

	p.record(r, reqBody, resp, respBody, started, p.now().Sub(started))

	copyHeaders(w.Header(), resp.Header)
	removeHopByHopHeaders(w.Header())
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}

// forwardRequest sends r with the buffered body to its target and returns the
// response.
func (p *Proxy) forwardRequest(r *http.Request, body []byte) (*http.Response, error) {
	targetURL := r.URL.String()
	if r.URL.Host == "" {
		targetURL = "http://" + r.Host + r.URL.RequestURI()
	}

	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, reader)
	if err != nil {
		return nil, err
	}
	copyHeaders(outReq.Header, r.Header)
	removeHopByHopHeaders(outReq.Header)
	outReq.Header.Set("X-Forwarded-For", r.RemoteAddr)
	outReq.Header.Set("X-Forwarded-Host", r.Host)

	return p.client.Do(outReq)
}

func (p *Proxy) readBody(body io.ReadCloser) ([]byte, error) {
	if body == nil || body == http.NoBody {
		return nil, nil
	}
	defer func() { _ = body.Close() }()
	return io.ReadAll(io.LimitReader(body, p.maxBody))
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopByHopHeaders(h http.Header) {
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}
