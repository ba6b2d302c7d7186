package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeOK        = "ok"
	OutcomeError     = "error"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctxrelay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctxrelay_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	ContextsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctxrelay_contexts_published_total",
			Help: "Number of contexts stored by Publish",
		},
	)

	// Deliveries counts webhook deliveries by outcome
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctxrelay_deliveries_total",
			Help: "Number of webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctxrelay_delivery_duration_seconds",
			Help:    "Duration of single webhook deliveries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctxrelay_subscribers",
			Help: "Number of registered subscriber endpoints",
		},
	)

	// Fetches counts retrieval client fetches on the agent side
	Fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctxrelay_fetches_total",
			Help: "Number of context fetches by outcome",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(
		HTTPRequests,
		RequestDuration,
		ContextsPublished,
		Deliveries,
		DeliveryDuration,
		Subscribers,
		Fetches,
	)
}
