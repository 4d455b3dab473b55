// Package observability provides the Prometheus metrics of the sentinel.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "pipeline_error"
	OutcomeVerified = "verified"
	OutcomeRejected = "unverified"
)

// Metrics holds every collector, registered on its own registry so tests
// can build as many instances as they need.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	// Submissions
	SubmissionsTotal *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	JournalErrors    prometheus.Counter

	// Market
	TradesOpened  *prometheus.CounterVec
	TradesSettled prometheus.Counter
	VolatilePrice prometheus.Gauge
	StablePrice   prometheus.Gauge

	// Ledger
	LedgerSize prometheus.Gauge

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	StreamConns  prometheus.Gauge
}

// NewMetrics creates a registry with the process/go collectors plus ours.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sentinel"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		SubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tips",
			Name:      "submissions_total",
			Help:      "Tip submissions by outcome",
		}, []string{"outcome"}),
		PipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Reasoning pipeline latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		}),
		JournalErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "journal_errors_total",
			Help:      "Pipeline runs that could not be journaled",
		}),

		TradesOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "trades_opened_total",
			Help:      "Simulated trades opened by origin",
		}, []string{"origin"}),
		TradesSettled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "trades_settled_total",
			Help:      "Simulated trades settled",
		}),
		VolatilePrice: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "volatile_price_usd",
			Help:      "Last observed price of the volatile asset",
		}),
		StablePrice: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "stable_price_usd",
			Help:      "Last observed price of the pegged asset",
		}),

		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "records",
			Help:      "Live records in the tip ledger",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		StreamConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "stream_connections",
			Help:      "Open websocket price streams",
		}),
	}
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// RecordSubmission counts one submission outcome.
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPipeline observes one pipeline call.
func (m *Metrics) RecordPipeline(d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.Observe(d.Seconds())
}

// RecordJournalError counts a journal write that failed.
func (m *Metrics) RecordJournalError() {
	if m == nil {
		return
	}
	m.JournalErrors.Inc()
}

// RecordTradeOpened counts a trade; origin is "intelligence" or "demo".
func (m *Metrics) RecordTradeOpened(origin string) {
	if m == nil {
		return
	}
	m.TradesOpened.WithLabelValues(origin).Inc()
}

// RecordTradeSettled counts a settlement.
func (m *Metrics) RecordTradeSettled() {
	if m == nil {
		return
	}
	m.TradesSettled.Inc()
}

// SetPrices updates both price gauges.
func (m *Metrics) SetPrices(volatile, stable float64) {
	if m == nil {
		return
	}
	m.VolatilePrice.Set(volatile)
	m.StablePrice.Set(stable)
}

// SetLedgerSize updates the ledger gauge.
func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.LedgerSize.Set(float64(n))
}

// RecordHTTP counts and times one request.
func (m *Metrics) RecordHTTP(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// StreamOpened / StreamClosed track live websocket connections.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.StreamConns.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.StreamConns.Dec()
}
