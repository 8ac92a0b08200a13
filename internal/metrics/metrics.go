package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinic_queue"

// Metrics holds all Prometheus metrics for the queue service.
type Metrics struct {
	VisitsCreated       *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	SequenceRetries     prometheus.Counter
	SequenceConflicts   prometheus.Counter
	CalledInvariantHits *prometheus.CounterVec
	StaleVisitsClosed   prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPLatency         *prometheus.HistogramVec
}

// New registers every collector on reg. Tests pass a fresh registry so
// repeated construction does not panic on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		VisitsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_created_total",
			Help:      "Total number of visits admitted into a clinic queue",
		}, []string{"clinic"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_transitions_total",
			Help:      "Total number of applied visit status transitions",
		}, []string{"action"}),
		SequenceRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_retries_total",
			Help:      "Queue number assignments retried after a uniqueness conflict",
		}),
		SequenceConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_conflicts_total",
			Help:      "Queue number assignments that exhausted their retries",
		}),
		CalledInvariantHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "called_invariant_violations_total",
			Help:      "Times a clinic-day was observed with more than one called visit",
		}, []string{"clinic"}),
		StaleVisitsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_visits_closed_total",
			Help:      "Visits from past days closed by the sweeper",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// NewNop returns metrics bound to a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
