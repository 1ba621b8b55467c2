// Package metrics exposes Prometheus metrics for workflow transitions and event handling.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "buildflow"

// Outcome labels for transitions.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnsupported = "unsupported"
	OutcomeNotFound    = "not_found"
	OutcomeConflict    = "conflict"
	OutcomeError       = "error"
)

// Metrics records transition and event-handler activity.
type Metrics struct {
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	ruleRejections     *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	publishFailures    *prometheus.CounterVec
	handlerRuns        *prometheus.CounterVec
}

// New registers the metrics with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Workflow transitions requested, by action type and outcome.",
		}, []string{"action", "outcome"}),
		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transition_duration_seconds",
			Help:      "Time spent running one workflow transition, including persistence.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		ruleRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "rejections_total",
			Help:      "Transitions rejected by a rule, by rule name.",
		}, []string{"rule"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published, by event type.",
		}, []string{"event_type"}),
		publishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Domain events that could not be published after a committed transition.",
		}, []string{"event_type"}),
		handlerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_runs_total",
			Help:      "Event handler invocations, by handler and outcome.",
		}, []string{"handler", "outcome"}),
	}
}

// NewNop returns metrics registered with a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveTransition(action, outcome string, elapsed time.Duration) {
	m.transitions.WithLabelValues(action, outcome).Inc()
	m.transitionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *Metrics) RuleRejected(rule string) {
	m.ruleRejections.WithLabelValues(rule).Inc()
}

func (m *Metrics) EventPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) PublishFailed(eventType string) {
	m.publishFailures.WithLabelValues(eventType).Inc()
}

// HandlerRan counts one handler invocation; failed covers both errors and panics.
func (m *Metrics) HandlerRan(handler string, failed bool) {
	outcome := OutcomeSuccess
	if failed {
		outcome = OutcomeError
	}

	m.handlerRuns.WithLabelValues(handler, outcome).Inc()
}
