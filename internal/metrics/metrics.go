package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks fill notifications accepted from the Tradix gateway.
	FillsProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tradix_fills_processed_total",
			Help: "Total number of fill notifications accepted and correlated.",
		},
	)

	// Tracks duplicate fill redeliveries discarded by the tracker.
	DuplicatesSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tradix_fill_duplicates_suppressed_total",
			Help: "Total number of duplicate fill notifications discarded.",
		},
	)

	// Tracks order events emitted to subscribers by status.
	OrderEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradix_order_events_total",
			Help: "Total number of order events emitted, by status.",
		},
		[]string{"status"},
	)

	// Tracks broker reports rejected as malformed.
	ReportsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradix_reports_rejected_total",
			Help: "Total number of broker reports rejected, by reason.",
		},
		[]string{"reason"},
	)

	// Tracks backfill round-trips to the Tradix history API.
	BackfillRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradix_backfill_requests_total",
			Help: "Total number of history backfill requests, by result.",
		},
		[]string{"result"}, // ok | error
	)

	BackfillDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradix_backfill_duration_seconds",
			Help:    "Duration of history backfill round-trips in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"result"},
	)

	// Measures execution history query latency as seen by callers.
	HistoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradix_history_query_duration_seconds",
			Help:    "Duration of execution history queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)
)

// ObserveDuration records the time taken since start on the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncOrderEvent(status string) {
	OrderEventsTotal.WithLabelValues(status).Inc()
	if status == "Filled" || status == "PartiallyFilled" {
		FillsProcessedTotal.Inc()
	}
}

func IncDuplicateSuppressed() {
	DuplicatesSuppressedTotal.Inc()
}

func IncReportRejected(reason string) {
	ReportsRejectedTotal.WithLabelValues(reason).Inc()
}

func IncBackfill(result string) {
	BackfillRequestsTotal.WithLabelValues(result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}
