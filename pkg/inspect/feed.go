package inspect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/httputil"
)

const (
	// DefaultFeedBuffer is the per-subscriber event buffer.
	DefaultFeedBuffer = 64

	feedWriteTimeout = 5 * time.Second
)

// Feed fans out summaries of newly captured live exchanges to subscribers.
// A subscriber that falls behind loses events rather than blocking capture.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan exchange.Summary]struct{}
	buffer int
}

// NewFeed creates a feed with the given per-subscriber buffer. A
// non-positive buffer means DefaultFeedBuffer.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{
		subs:   make(map[chan exchange.Summary]struct{}),
		buffer: buffer,
	}
}

// Publish is an exchange.InsertObserver. Replayed and duplicate exchanges
// are ignored.
func (f *Feed) Publish(e *exchange.Exchange, inserted bool) {
	if !inserted || !e.IsLive() {
		return
	}
	sum := e.Summary()

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- sum:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// must be called exactly once.
func (f *Feed) Subscribe() (<-chan exchange.Summary, func()) {
	ch := make(chan exchange.Summary, f.buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
	}
}

// Subscribers returns the current subscriber count.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (s *Server) handleLiveFeed(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		httputil.WriteNotFound(w, CodeNotFound, "Live feed is not enabled")
		return
	}

	// Subscribe before the handshake completes so nothing captured after the
	// client connects is missed.
	events, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.log.Debug("live feed upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// The feed is write-only; CloseRead handles control frames and cancels
	// ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case sum := <-events:
			if err := writeEvent(ctx, conn, sum); err != nil {
				s.log.Debug("live feed write failed", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, sum exchange.Summary) error {
	ctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, sum)
}
