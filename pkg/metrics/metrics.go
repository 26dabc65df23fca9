package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_published_total",
			Help: "Total number of envelopes appended to a stream (count)",
		},
		[]string{"stream", "mode", "status"},
	)

	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_consumed_total",
			Help: "Total number of records processed by a consumer (count)",
		},
		[]string{"stream", "group", "status"},
	)

	DeadLetterTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_dead_letter_total",
			Help: "Total number of records forwarded to the dead-letter stream (count)",
		},
		[]string{"stream", "reason"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "operation"},
	)

	RecordProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_record_processing_duration_ms",
			Help:    "Per-record processing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"stream", "group", "status"},
	)

	PublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_publish_duration_ms",
			Help:    "Append latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"stream", "mode"},
	)

	IdempotentInsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotent_inserts_total",
			Help: "Total number of insert-if-absent calls by outcome (count)",
		},
		[]string{"service", "entity", "outcome"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	CheckoutRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Total number of checkout completions (count)",
		},
		[]string{"status"},
	)
)

func RegisterStreamMetrics() {
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(EventsConsumedTotal)
	prometheus.MustRegister(DeadLetterTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(RecordProcessingDuration)
	prometheus.MustRegister(PublishDuration)
}

func RegisterSinkMetrics() {
	prometheus.MustRegister(IdempotentInsertsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterCheckoutMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(CheckoutRequestsTotal)
}

func ObserveRecordProcessing(stream, group, status string, duration time.Duration) {
	RecordProcessingDuration.WithLabelValues(stream, group, status).Observe(float64(duration.Milliseconds()))
}

func ObservePublish(stream, mode string, duration time.Duration) {
	PublishDuration.WithLabelValues(stream, mode).Observe(float64(duration.Milliseconds()))
}

func IncEventConsumed(stream, group, status string) {
	EventsConsumedTotal.WithLabelValues(stream, group, status).Inc()
}

func IncEventPublished(stream, mode, status string) {
	EventsPublishedTotal.WithLabelValues(stream, mode, status).Inc()
}

func IncDeadLetter(stream, reason string) {
	DeadLetterTotal.WithLabelValues(stream, reason).Inc()
}

func IncIdempotentInsert(service, entity, outcome string) {
	IdempotentInsertsTotal.WithLabelValues(service, entity, outcome).Inc()
}
