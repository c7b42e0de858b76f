// Package telemetry provides the Prometheus collectors for inspectd.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/getmockd/inspectd/pkg/decode"
	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/signature"
)

// Namespace prefixes every metric name.
const Namespace = "inspectd"

// Metrics holds all Prometheus collectors for the inspector.
type Metrics struct {
	ExchangesInserted    *prometheus.CounterVec
	DuplicateInserts     prometheus.Counter
	StoredExchanges      prometheus.Gauge
	DecodeCalls          *prometheus.CounterVec
	DecodeDuration       *prometheus.HistogramVec
	SignatureSubmissions *prometheus.CounterVec
	SessionLoads         *prometheus.CounterVec
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExchangesInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "exchanges_inserted_total",
			Help:      "Exchanges added to the store, by source.",
		}, []string{"source"}),

		DuplicateInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "exchange_duplicate_inserts_total",
			Help:      "Inserts ignored because the id was already stored.",
		}),

		StoredExchanges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "stored_exchanges",
			Help:      "Number of exchanges currently held in the store.",
		}),

		DecodeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decode_calls_total",
			Help:      "Decoded body requests, by field and outcome.",
		}, []string{"field", "result"}),

		DecodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       Namespace,
			Name:                            "decode_duration_seconds",
			Help:                            "External decoder call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"field"}),

		SignatureSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "signature_submissions_total",
			Help:      "Signature submissions, by result.",
		}, []string{"result"}),

		SessionLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_entries_loaded_total",
			Help:      "Session dump entries loaded, split into inserted and already present.",
		}, []string{"result"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of front-end HTTP requests.",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       Namespace,
			Name:                            "http_request_duration_seconds",
			Help:                            "Front-end HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.ExchangesInserted,
		m.DuplicateInserts,
		m.StoredExchanges,
		m.DecodeCalls,
		m.DecodeDuration,
		m.SignatureSubmissions,
		m.SessionLoads,
		m.RequestsTotal,
		m.RequestDuration,
	)

	return m
}

// ObserveInsert is an exchange.InsertObserver.
func (m *Metrics) ObserveInsert(e *exchange.Exchange, inserted bool) {
	if !inserted {
		m.DuplicateInserts.Inc()
		return
	}
	source := "replay"
	if e.IsLive() {
		source = "live"
	}
	m.ExchangesInserted.WithLabelValues(source).Inc()
	m.StoredExchanges.Inc()
}

// ObserveDecode is a decode.Observer.
func (m *Metrics) ObserveDecode(field decode.Field, outcome decode.Outcome, elapsed time.Duration) {
	m.DecodeCalls.WithLabelValues(string(field), string(outcome)).Inc()
	if outcome == decode.OutcomeDecoded || outcome == decode.OutcomeFailed {
		m.DecodeDuration.WithLabelValues(string(field)).Observe(elapsed.Seconds())
	}
}

// ObserveSignature is a signature.Observer.
func (m *Metrics) ObserveSignature(rejected signature.Stage) {
	result := "stored"
	if rejected != "" {
		result = "rejected_" + string(rejected)
	}
	m.SignatureSubmissions.WithLabelValues(result).Inc()
}

// ObserveSessionLoad is a session.Observer.
func (m *Metrics) ObserveSessionLoad(_ string, loaded, inserted int) {
	m.SessionLoads.WithLabelValues("inserted").Add(float64(inserted))
	m.SessionLoads.WithLabelValues("present").Add(float64(loaded - inserted))
}
