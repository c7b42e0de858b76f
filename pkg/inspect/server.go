package inspect

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmockd/inspectd/pkg/decode"
	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/logging"
	"github.com/getmockd/inspectd/pkg/session"
	"github.com/getmockd/inspectd/pkg/signature"
	"github.com/getmockd/inspectd/pkg/telemetry"
)

// DefaultCertName is the download name of the root certificate, without
// extension.
const DefaultCertName = "inspectd-root-ca"

// CertSource provides the root certificate offered for download.
type CertSource interface {
	CACertPEM() ([]byte, error)
}

// SessionLister enumerates session dumps.
type SessionLister interface {
	List() ([]session.Info, error)
}

// Options configures a Server. Store, Decoder, Ingestor and Loader are
// required.
type Options struct {
	Store    *exchange.Store
	Decoder  *decode.LazyDecoder
	Ingestor *signature.Ingestor
	Loader   *session.Loader
	Sessions SessionLister
	Feed     *Feed
	CA       CertSource
	CertName string
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Version  string
}

// Server is the inspection front-end.
type Server struct {
	store    *exchange.Store
	decoder  *decode.LazyDecoder
	ingestor *signature.Ingestor
	loader   *session.Loader
	sessions SessionLister
	feed     *Feed
	ca       CertSource
	certName string
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
	version  string

	handler http.Handler
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		store:    opts.Store,
		decoder:  opts.Decoder,
		ingestor: opts.Ingestor,
		loader:   opts.Loader,
		sessions: opts.Sessions,
		feed:     opts.Feed,
		ca:       opts.CA,
		certName: opts.CertName,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		log:      opts.Logger,
		version:  opts.Version,
	}
	if s.certName == "" {
		s.certName = DefaultCertName
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var h http.Handler = mux
	if s.metrics != nil {
		h = metricsMiddleware(s.metrics, h)
	}
	s.handler = loggingMiddleware(s.log, h)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Sessions
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /session/{session}", s.handleSession)
	mux.HandleFunc("GET /live/feed", s.handleLiveFeed)

	// Exchange details and signature submission
	mux.HandleFunc("GET /details/{guid}", s.handleDetails)
	mux.HandleFunc("POST /details/signature/{guid}", s.handleSubmitSignature)

	// Downloads
	mux.HandleFunc("GET /download/cert", s.handleDownloadCert)
	mux.HandleFunc("GET /download/request/raw/{guid}", s.handleRequestRaw)
	mux.HandleFunc("GET /download/request/decoded/{guid}", s.handleRequestDecoded)
	mux.HandleFunc("GET /download/response/raw/{guid}", s.handleResponseRaw)
	mux.HandleFunc("GET /download/response/decoded/{guid}", s.handleResponseDecoded)
	mux.HandleFunc("GET /download/rawsignature/{guid}", s.handleRawSignature)
	mux.HandleFunc("GET /download/decryptedrawsignature/{guid}", s.handleDecryptedSignature)
	mux.HandleFunc("GET /download/json/{guid}", s.handleDownloadJSON)
}
