package signature

import (
	"errors"
	"log/slog"

	"google.golang.org/protobuf/proto"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/logging"
)

// Observer is told the outcome of each submission: the rejecting stage, or
// "" when the signature was stored.
type Observer func(rejected Stage)

// Ingestor validates submitted signatures and stores them on exchanges.
type Ingestor struct {
	store    *exchange.Store
	parser   Parser
	log      *slog.Logger
	observer Observer
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets the ingestor logger.
func WithLogger(log *slog.Logger) IngestorOption {
	return func(in *Ingestor) {
		if log != nil {
			in.log = log
		}
	}
}

// WithObserver registers a submission observer.
func WithObserver(fn Observer) IngestorOption {
	return func(in *Ingestor) { in.observer = fn }
}

// NewIngestor creates an Ingestor writing into store.
func NewIngestor(store *exchange.Store, parser Parser, opts ...IngestorOption) *Ingestor {
	in := &Ingestor{
		store:  store,
		parser: parser,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Submit parses text as the decrypted signature of the exchange stored under
// key. On success the raw bytes and parsed structure replace whatever was
// stored before and the structure is returned. On failure the exchange is
// left untouched and the error is a *ParseError.
func (in *Ingestor) Submit(key, text string) (proto.Message, error) {
	e, err := in.store.Lookup(key)
	if err != nil {
		return nil, in.reject(key, &ParseError{Stage: StageLookup, Cause: err})
	}

	raw, err := ParseByteList(text)
	if err != nil {
		return nil, in.reject(key, err)
	}

	parsed, err := in.parser.Parse(raw)
	if err != nil {
		return nil, in.reject(key, &ParseError{Stage: StageStructure, Cause: err})
	}

	e.Request.Signature.Set(raw, parsed)
	in.log.Info("signature stored", "id", e.ID(), "bytes", len(raw))
	if in.observer != nil {
		in.observer("")
	}
	return parsed, nil
}

func (in *Ingestor) reject(key string, err error) error {
	stage := StageStructure
	var pe *ParseError
	if errors.As(err, &pe) {
		stage = pe.Stage
	}
	in.log.Info("signature rejected", "key", key, "stage", stage, "error", err)
	if in.observer != nil {
		in.observer(stage)
	}
	return err
}
