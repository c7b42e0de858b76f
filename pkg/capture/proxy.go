package capture

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/logging"
)

// DefaultMaxBodySize is the default maximum body size to capture (10MB).
const DefaultMaxBodySize = 10 * 1024 * 1024

// Mode represents the proxy operating mode.
type Mode string

const (
	// ModeCapture stores every filtered exchange in the store.
	ModeCapture Mode = "capture"
	// ModePassthrough forwards traffic without storing.
	ModePassthrough Mode = "passthrough"
)

// Options configures a Proxy.
type Options struct {
	// Mode is the initial operating mode. Defaults to ModeCapture.
	Mode Mode
	// Filter selects captured traffic. Nil captures everything.
	Filter *Filter
	// Store receives live exchanges. Required.
	Store *exchange.Store
	// CA enables HTTPS interception. Nil tunnels CONNECT requests.
	CA *CAManager
	// SignaturePath locates the encrypted signature in request bodies.
	SignaturePath FieldPath
	// Logger for traffic logging. Nil discards.
	Logger *slog.Logger
	// Transport forwards plain HTTP requests. Defaults to a transport that
	// ignores proxy environment variables.
	Transport http.RoundTripper
	// UpstreamTLS is used when dialing intercepted HTTPS targets. Defaults to
	// accepting any certificate.
	UpstreamTLS *tls.Config
	// MaxBodySize caps captured bodies. Defaults to DefaultMaxBodySize.
	MaxBodySize int64
}

// Proxy is an HTTP/HTTPS MITM proxy feeding live exchanges into a store.
type Proxy struct {
	mu      sync.RWMutex
	mode    Mode
	filter  *Filter
	store   *exchange.Store
	ca      *CAManager
	sigPath FieldPath
	log     *slog.Logger

	client      *http.Client
	upstreamTLS *tls.Config
	maxBody     int64
	now         func() time.Time
}

// New creates a Proxy with the given options.
func New(opts Options) *Proxy {
	mode := opts.Mode
	if mode == "" {
		mode = ModeCapture
	}
	filter := opts.Filter
	if filter == nil {
		filter = NewFilter()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = nil
		transport = t
	}
	upstreamTLS := opts.UpstreamTLS
	if upstreamTLS == nil {
		//nolint:gosec // G402: intercepting proxy accepts any upstream certificate
		upstreamTLS = &tls.Config{InsecureSkipVerify: true}
	}
	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	return &Proxy{
		mode:    mode,
		filter:  filter,
		store:   opts.Store,
		ca:      opts.CA,
		sigPath: opts.SignaturePath,
		log:     log,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		upstreamTLS: upstreamTLS,
		maxBody:     maxBody,
		now:         time.Now,
	}
}

// Mode returns the current proxy mode.
func (p *Proxy) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// SetMode changes the proxy operating mode at runtime.
func (p *Proxy) SetMode(mode Mode) {
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
	p.log.Info("proxy mode changed", "mode", mode)
}

// Filter returns the current filter.
func (p *Proxy) Filter() *Filter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

// SetFilter replaces the filter.
func (p *Proxy) SetFilter(filter *Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = filter
}

// Store returns the exchange store.
func (p *Proxy) Store() *exchange.Store {
	return p.store
}

// CAManager returns the CA manager, which may be nil.
func (p *Proxy) CAManager() *CAManager {
	return p.ca
}

// ServeHTTP implements http.Handler for the proxy.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
	} else {
		p.handleHTTP(w, r)
	}
}

// record turns a completed round trip into a live exchange when the mode and
// filter allow it.
func (p *Proxy) record(r *http.Request, reqBody []byte, resp *http.Response, respBody []byte, started time.Time, duration time.Duration) {
	p.mu.RLock()
	mode := p.mode
	filter := p.filter
	p.mu.RUnlock()

	if mode != ModeCapture {
		return
	}
	if filter != nil && !filter.ShouldCapture(r.Host, r.URL.Path) {
		return
	}

	e := exchange.NewLive(started)
	e.CaptureRequest(r, reqBody)
	e.CaptureResponse(resp, respBody, duration)
	e.Request.EncryptedSignature = p.sigPath.Extract(reqBody)

	if p.store.Insert(e) {
		p.log.Debug("captured",
			"id", e.ID(),
			"method", r.Method,
			"host", r.Host,
			"path", r.URL.Path,
			"status", resp.StatusCode,
			"duration", duration,
			"signature", e.Request.EncryptedSignature != nil,
		)
	}
}
