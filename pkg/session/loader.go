package session

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/protobuf/proto"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/logging"
)

// SignatureParser restores the structured signature of replayed exchanges
// whose dump carried decrypted signature bytes.
type SignatureParser interface {
	Parse(raw []byte) (proto.Message, error)
}

// Observer is told how many entries a load produced and how many of them
// were new to the store.
type Observer func(name string, loaded, inserted int)

// Loader merges session dumps into an exchange store.
type Loader struct {
	store    *exchange.Store
	resolver Resolver
	parser   SignatureParser
	log      *slog.Logger
	observer Observer
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the loader logger.
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithSignatureParser re-parses decrypted signatures found in dumps.
func WithSignatureParser(p SignatureParser) LoaderOption {
	return func(l *Loader) { l.parser = p }
}

// WithObserver registers a load observer.
func WithObserver(fn Observer) LoaderOption {
	return func(l *Loader) { l.observer = fn }
}

// NewLoader creates a Loader.
func NewLoader(store *exchange.Store, resolver Resolver, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:    store,
		resolver: resolver,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves name and inserts every valid entry into the store. Entries
// whose id is already stored are left as they are. The returned slice holds
// the valid entries in dump order whether or not they were new.
func (l *Loader) Load(ctx context.Context, name string) ([]*exchange.Exchange, error) {
	entries, err := l.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	loaded := make([]*exchange.Exchange, 0, len(entries))
	inserted := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		l.restoreSignature(e)
		if l.store.Insert(e) {
			inserted++
		}
		loaded = append(loaded, e)
	}

	l.log.Info("session loaded",
		"session", name,
		"entries", len(entries),
		"loaded", len(loaded),
		"inserted", inserted,
	)
	if l.observer != nil {
		l.observer(name, len(loaded), inserted)
	}
	return loaded, nil
}

func (l *Loader) restoreSignature(e *exchange.Exchange) {
	if l.parser == nil {
		return
	}
	raw, parsed := e.Request.Signature.Get()
	if raw == nil || parsed != nil {
		return
	}
	msg, err := l.parser.Parse(raw)
	if err != nil {
		l.log.Debug("stored signature does not parse", "id", e.ID(), "error", err)
		return
	}
	e.Request.Signature.Set(raw, msg)
}
