package exchange

import (
	"bytes"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/getmockd/inspectd/internal/id"
	"github.com/getmockd/inspectd/pkg/logging"
)

// InsertObserver is notified after every Insert call with the outcome.
type InsertObserver func(e *Exchange, inserted bool)

// Store is the process-wide association from GUID to Exchange. Create one at
// startup and pass it to every component that needs it. Entries are never
// evicted.
type Store struct {
	mu        sync.RWMutex
	exchanges map[id.GUID]*Exchange

	log       *slog.Logger
	observers []InsertObserver
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithInsertObserver registers a callback run after each Insert. Observers
// run in registration order.
func WithInsertObserver(fn InsertObserver) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		exchanges: make(map[id.GUID]*Exchange),
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert adds e under its GUID if no exchange is stored there yet. An existing
// entry is never replaced. Insert reports whether e was added.
func (s *Store) Insert(e *Exchange) bool {
	if e == nil || e.id == id.Nil {
		return false
	}

	s.mu.Lock()
	_, exists := s.exchanges[e.id]
	if !exists {
		s.exchanges[e.id] = e
	}
	s.mu.Unlock()

	if exists {
		s.log.Debug("duplicate exchange ignored", "id", e.id, "live", e.live)
	} else {
		s.log.Debug("exchange stored", "id", e.id, "live", e.live)
	}
	for _, fn := range s.observers {
		fn(e, !exists)
	}
	return !exists
}

// Get returns the exchange stored under guid.
func (s *Store) Get(guid id.GUID) (*Exchange, error) {
	s.mu.RLock()
	e, ok := s.exchanges[guid]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Lookup parses key and returns the matching exchange. A malformed key yields
// ErrInvalidKey; a well-formed unknown key yields ErrNotFound.
func (s *Store) Lookup(key string) (*Exchange, error) {
	guid, err := id.Parse(key)
	if err != nil {
		return nil, err
	}
	return s.Get(guid)
}

// Len returns the number of stored exchanges.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges)
}

// Live returns the live exchanges ordered by capture time, oldest first. The
// set is fixed when Live is called; exchanges inserted afterwards are not
// yielded.
func (s *Store) Live() iter.Seq[*Exchange] {
	s.mu.RLock()
	snapshot := make([]*Exchange, 0, len(s.exchanges))
	for _, e := range s.exchanges {
		if e.live {
			snapshot = append(snapshot, e)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(snapshot, compareCaptured)

	return func(yield func(*Exchange) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// LiveCount returns the number of live exchanges.
func (s *Store) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.exchanges {
		if e.live {
			n++
		}
	}
	return n
}

// compareCaptured orders by capture time, then by GUID so that exchanges
// captured in the same instant still have a stable order.
func compareCaptured(a, b *Exchange) int {
	if c := a.capturedAt.Compare(b.capturedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.id[:], b.id[:])
}
