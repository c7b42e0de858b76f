package decode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/logging"
)

// DefaultTimeout bounds a single decoder call.
const DefaultTimeout = 10 * time.Second

// Outcome classifies a LazyDecoder call for observers.
type Outcome string

const (
	OutcomeCached  Outcome = "cached"
	OutcomeDecoded Outcome = "decoded"
	OutcomeFailed  Outcome = "failed"
	OutcomeNoData  Outcome = "no_data"
)

// Observer receives one notification per LazyDecoder call. elapsed is zero
// unless the decoder ran.
type Observer func(field Field, outcome Outcome, elapsed time.Duration)

// Options configures a LazyDecoder.
type Options struct {
	// Timeout bounds each decoder call. Zero means DefaultTimeout; negative
	// disables the bound.
	Timeout  time.Duration
	Logger   *slog.Logger
	Observer Observer
}

// LazyDecoder computes decoded bodies on first demand and caches them on the
// exchange.
type LazyDecoder struct {
	decoder  Decoder
	timeout  time.Duration
	log      *slog.Logger
	observer Observer
}

// NewLazy wraps dec.
func NewLazy(dec Decoder, opts Options) *LazyDecoder {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &LazyDecoder{
		decoder:  dec,
		timeout:  timeout,
		log:      log,
		observer: opts.Observer,
	}
}

// RequestBody returns the decoded request body of e.
func (d *LazyDecoder) RequestBody(ctx context.Context, e *exchange.Exchange) (string, error) {
	return d.decode(ctx, e, FieldRequest, e.Request.Body, &e.Request.DecodedBody)
}

// ResponseBody returns the decoded response body of e.
func (d *LazyDecoder) ResponseBody(ctx context.Context, e *exchange.Exchange) (string, error) {
	return d.decode(ctx, e, FieldResponse, e.Response.Body, &e.Response.DecodedBody)
}

func (d *LazyDecoder) decode(ctx context.Context, e *exchange.Exchange, field Field, raw []byte, slot *exchange.TextSlot) (string, error) {
	if v, ok := slot.Get(); ok {
		d.observe(field, OutcomeCached, 0)
		return v, nil
	}
	if raw == nil {
		d.observe(field, OutcomeNoData, 0)
		return "", fmt.Errorf("%s body of %s: %w", field, e.ID(), exchange.ErrNoData)
	}

	var elapsed time.Duration
	text, computed, err := slot.Fill(func() (string, error) {
		start := time.Now()
		defer func() { elapsed = time.Since(start) }()
		return d.call(ctx, raw)
	})
	if err != nil {
		d.observe(field, OutcomeFailed, elapsed)
		d.log.Warn("decode failed", "id", e.ID(), "field", field, "error", err)
		return "", &Error{Field: field, ID: e.ID().String(), Err: err}
	}
	if computed {
		d.observe(field, OutcomeDecoded, elapsed)
		d.log.Debug("decoded", "id", e.ID(), "field", field, "bytes", len(raw), "elapsed", elapsed)
	} else {
		d.observe(field, OutcomeCached, 0)
	}
	return text, nil
}

type result struct {
	text string
	err  error
}

// call runs the decoder under the timeout. A decoder that overruns is
// abandoned and its eventual result dropped.
func (d *LazyDecoder) call(ctx context.Context, raw []byte) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("decoder panic: %v", r)}
			}
		}()
		text, err := d.decoder.Decode(ctx, raw)
		ch <- result{text: text, err: err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *LazyDecoder) observe(field Field, outcome Outcome, elapsed time.Duration) {
	if d.observer != nil {
		d.observer(field, outcome, elapsed)
	}
}
