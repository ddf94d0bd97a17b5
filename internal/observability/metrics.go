package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Subsystem: "pipeline",
		Name:      "transitions_total",
		Help:      "Submission state machine transitions",
	}, []string{"to"})

	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Subsystem: "pipeline",
		Name:      "submissions_total",
		Help:      "Submissions by terminal disposition",
	}, []string{"outcome"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillforge",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skillforge",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	queueEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skillforge",
		Subsystem: "pipeline",
		Name:      "queue_escalations_total",
		Help:      "Submissions escalated to the durable reprocess queue",
	})
)

// PipelineTransition records a state machine transition.
func PipelineTransition(to string) {
	pipelineTransitions.WithLabelValues(to).Inc()
}

// PipelineOutcome records a submission reaching completed, queued or errored.
func PipelineOutcome(outcome string) {
	pipelineOutcomes.WithLabelValues(outcome).Inc()
}

// QueueEscalation records one escalation to the reprocess queue.
func QueueEscalation() {
	queueEscalations.Inc()
}

// HTTPRequest records one completed API request.
func HTTPRequest(method, route, status string) {
	httpRequests.WithLabelValues(method, route, status).Inc()
}

// HTTPLatency records the wall time of one API request.
func HTTPLatency(method, route string, seconds float64) {
	httpLatency.WithLabelValues(method, route).Observe(seconds)
}
