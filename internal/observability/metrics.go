// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingress metrics
	TransactionsReceived prometheus.Counter
	BatchesReceived      prometheus.Counter
	BatchesRejected      *prometheus.CounterVec

	// Registry metrics
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Fan-out metrics
	TransactionsPushed  prometheus.Counter
	PushErrors          prometheus.Counter
	WatchlistReadErrors prometheus.Counter

	// Notification metrics
	EmailsSent    prometheus.Counter
	EmailsFailed  prometheus.Counter
	EmailsSkipped prometheus.Counter

	// Status reconciliation metrics
	StatusChecks      *prometheus.CounterVec
	TrackedSignatures prometheus.Gauge

	// Latency metrics
	FanoutDuration      prometheus.Histogram
	CollaboratorLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "katlog"
	}

	return &Metrics{
		// Ingress metrics
		TransactionsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "transactions_received_total",
			Help:      "Total number of transactions received over the webhook",
		}),
		BatchesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "batches_received_total",
			Help:      "Total number of webhook batches accepted",
		}),
		BatchesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingress",
			Name:      "batches_rejected_total",
			Help:      "Total number of webhook batches rejected by reason",
		}, []string{"reason"}),

		// Registry metrics
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "active_connections",
			Help:      "Current number of registered WebSocket connections",
		}),
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "connections_total",
			Help:      "Total number of WebSocket connections accepted",
		}),

		// Fan-out metrics
		TransactionsPushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "transactions_pushed_total",
			Help:      "Total number of transactions pushed to clients",
		}),
		PushErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "push_errors_total",
			Help:      "Total number of failed pushes",
		}),
		WatchlistReadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "watchlist_read_errors_total",
			Help:      "Total number of watchlist store read failures",
		}),

		// Notification metrics
		EmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "emails_sent_total",
			Help:      "Total number of notification emails sent",
		}),
		EmailsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "emails_failed_total",
			Help:      "Total number of notification emails that failed to send",
		}),
		EmailsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "emails_skipped_total",
			Help:      "Total number of notifications skipped (no email on file)",
		}),

		// Status reconciliation metrics
		StatusChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "checks_total",
			Help:      "Total number of confirmation status checks by result",
		}, []string{"result"}),
		TrackedSignatures: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "tracked_signatures",
			Help:      "Current number of non-finalized tracked signatures",
		}),

		// Latency metrics
		FanoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "duration_seconds",
			Help:      "Fan-out duration per batch in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CollaboratorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "request_latency_seconds",
			Help:      "Watchlist and user collaborator request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBatchReceived increments the batch and transaction counters.
func RecordBatchReceived(size int) {
	DefaultMetrics.BatchesReceived.Inc()
	DefaultMetrics.TransactionsReceived.Add(float64(size))
}

// RecordBatchRejected records a rejected webhook batch.
func RecordBatchRejected(reason string) {
	DefaultMetrics.BatchesRejected.WithLabelValues(reason).Inc()
}

// RecordConnectionOpened increments the connection counters.
func RecordConnectionOpened() {
	DefaultMetrics.ConnectionsTotal.Inc()
	DefaultMetrics.ActiveConnections.Inc()
}

// RecordConnectionClosed decrements the active connection gauge.
func RecordConnectionClosed() {
	DefaultMetrics.ActiveConnections.Dec()
}

// RecordPush records a completed push of n transactions.
func RecordPush(n int) {
	DefaultMetrics.TransactionsPushed.Add(float64(n))
}

// RecordPushError increments the push error counter.
func RecordPushError() {
	DefaultMetrics.PushErrors.Inc()
}

// RecordWatchlistReadError increments the watchlist read error counter.
func RecordWatchlistReadError() {
	DefaultMetrics.WatchlistReadErrors.Inc()
}

// RecordEmailSent increments the emails sent counter.
func RecordEmailSent() {
	DefaultMetrics.EmailsSent.Inc()
}

// RecordEmailFailed increments the emails failed counter.
func RecordEmailFailed() {
	DefaultMetrics.EmailsFailed.Inc()
}

// RecordEmailSkipped increments the emails skipped counter.
func RecordEmailSkipped() {
	DefaultMetrics.EmailsSkipped.Inc()
}

// RecordStatusCheck records a confirmation status check result.
func RecordStatusCheck(result string) {
	DefaultMetrics.StatusChecks.WithLabelValues(result).Inc()
}

// UpdateTrackedSignatures updates the tracked signatures gauge.
func UpdateTrackedSignatures(n int) {
	DefaultMetrics.TrackedSignatures.Set(float64(n))
}
