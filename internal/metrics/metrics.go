// Package metrics provides Prometheus metrics for the auction server
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Bid pipeline metrics
	BidSubmissions *prometheus.CounterVec
	BidOutcomes    *prometheus.CounterVec
	BidProcessing  *prometheus.HistogramVec

	// Sale metrics
	SalesTotal prometheus.Counter
	SaleAmount prometheus.Histogram

	// Broadcast metrics
	BroadcastClients prometheus.Gauge

	// Infrastructure metrics
	QueueErrors prometheus.Counter
	StoreErrors prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "auctiond"
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		BidSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bid_submissions_total",
				Help:      "Bid submissions by gateway result",
			},
			[]string{"result"},
		),
		BidOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bid_outcomes_total",
				Help:      "Processed bids by outcome",
			},
			[]string{"outcome"},
		),
		BidProcessing: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bid_processing_seconds",
				Help:      "Time to process one dequeued bid",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"outcome"},
		),

		SalesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sales_total",
				Help:      "Total finalized sales",
			},
		),
		SaleAmount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sale_amount",
				Help:      "Sale price distribution",
				Buckets:   prometheus.ExponentialBuckets(100000, 2, 12),
			},
		),

		BroadcastClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "broadcast_clients",
				Help:      "Connected websocket watchers",
			},
		),

		QueueErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_errors_total",
				Help:      "Ordering queue failures",
			},
		),
		StoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "State store failures",
			},
		),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.BidSubmissions,
		m.BidOutcomes,
		m.BidProcessing,
		m.SalesTotal,
		m.SaleAmount,
		m.BroadcastClients,
		m.QueueErrors,
		m.StoreErrors,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware that records request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so websocket upgrades
// work behind the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// RecordBidSubmission records one gateway submission result
func (m *Metrics) RecordBidSubmission(result string) {
	m.BidSubmissions.WithLabelValues(result).Inc()
}

// RecordBidOutcome records one processed bid
func (m *Metrics) RecordBidOutcome(outcome string, latency time.Duration) {
	m.BidOutcomes.WithLabelValues(outcome).Inc()
	m.BidProcessing.WithLabelValues(outcome).Observe(latency.Seconds())
}

// RecordSale records one finalized sale
func (m *Metrics) RecordSale(amount int64) {
	m.SalesTotal.Inc()
	m.SaleAmount.Observe(float64(amount))
}

// ClientConnected increments the watcher gauge
func (m *Metrics) ClientConnected() {
	m.BroadcastClients.Inc()
}

// ClientDisconnected decrements the watcher gauge
func (m *Metrics) ClientDisconnected() {
	m.BroadcastClients.Dec()
}

// RecordQueueError counts an ordering queue failure
func (m *Metrics) RecordQueueError() {
	m.QueueErrors.Inc()
}

// RecordStoreError counts a state store failure
func (m *Metrics) RecordStoreError() {
	m.StoreErrors.Inc()
}
