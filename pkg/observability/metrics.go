// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	RateLimited  prometheus.Counter

	// Wallet metrics
	Transfers      *prometheus.CounterVec
	Swaps          *prometheus.CounterVec
	AggregatorErrs *prometheus.CounterVec

	// Deposit metrics
	DepositsSeen     prometheus.Counter
	DepositLamports  prometheus.Counter
	DepositScanError prometheus.Counter
	LastDepositScan  prometheus.Gauge

	// Session metrics
	SessionsCreated prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on its own registry,
// together with the Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "veilfi"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),

		Transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "transfers_total",
			Help:      "Total number of outgoing transfers by kind and outcome",
		}, []string{"kind", "outcome"}),
		Swaps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "executions_total",
			Help:      "Total number of swap executions by provider and outcome",
		}, []string{"provider", "outcome"}),
		AggregatorErrs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "aggregator_errors_total",
			Help:      "Total number of failed aggregator calls by provider and operation",
		}, []string{"provider", "operation"}),

		DepositsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "seen_total",
			Help:      "Total number of incoming deposits recorded",
		}),
		DepositLamports: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "lamports_total",
			Help:      "Total lamports received by the deposit wallet",
		}),
		DepositScanError: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "scan_errors_total",
			Help:      "Total number of failed deposit scans",
		}),
		LastDepositScan: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "last_scan_timestamp",
			Help:      "Unix timestamp of the last completed deposit scan",
		}),

		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Total number of wallet sessions created",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordRateLimited counts a throttled request.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// RecordTransfer records an outgoing SOL or SPL transfer.
func (m *Metrics) RecordTransfer(kind string, err error) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordSwap records a swap execution.
func (m *Metrics) RecordSwap(provider string, err error) {
	if m == nil {
		return
	}
	m.Swaps.WithLabelValues(provider, outcome(err)).Inc()
}

// RecordAggregatorError records a failed quote or build call.
func (m *Metrics) RecordAggregatorError(provider, operation string) {
	if m == nil {
		return
	}
	m.AggregatorErrs.WithLabelValues(provider, operation).Inc()
}

// RecordDeposit records a newly seen deposit.
func (m *Metrics) RecordDeposit(lamports uint64) {
	if m == nil {
		return
	}
	m.DepositsSeen.Inc()
	m.DepositLamports.Add(float64(lamports))
}

// RecordDepositScan records the end of a deposit scan.
func (m *Metrics) RecordDepositScan(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DepositScanError.Inc()
		return
	}
	m.LastDepositScan.SetToCurrentTime()
}

// RecordSessionCreated counts a wallet import into a session.
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
