package realtimedata

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	eventLabel    = "event"
	resultLabel   = "result"
	hasStateLabel = "has_state"
)

const (
	loadResultOK            = "ok"
	loadResultFailed        = "load_failed"
	loadResultInvalidConfig = "invalid_config"
)

// moduleMetrics are registered on the host gatherer when one is provided.
// Without a gatherer the counters still count, they just are not exported.
type moduleMetrics struct {
	connectorLoads    *prometheus.CounterVec
	events            *prometheus.CounterVec
	targetingRequests *prometheus.CounterVec
}

func newModuleMetrics(registry *prometheus.Registry) *moduleMetrics {
	m := &moduleMetrics{
		connectorLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "receptivity",
			Name:      "connector_loads",
			Help:      "Count of connector boot attempts labeled by result.",
		}, []string{resultLabel}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "receptivity",
			Name:      "connector_events",
			Help:      "Count of connector events received labeled by event type.",
		}, []string{eventLabel}),
		targetingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "receptivity",
			Name:      "targeting_requests",
			Help:      "Count of targeting data requests labeled by whether a receptivity state was known.",
		}, []string{hasStateLabel}),
	}

	if registry != nil {
		registry.MustRegister(m.connectorLoads, m.events, m.targetingRequests)
	}

	return m
}

func (m *moduleMetrics) recordConnectorLoad(result string) {
	m.connectorLoads.With(prometheus.Labels{resultLabel: result}).Inc()
}

func (m *moduleMetrics) recordEvent(event string) {
	m.events.With(prometheus.Labels{eventLabel: event}).Inc()
}

func (m *moduleMetrics) recordTargetingRequest(hasState bool) {
	m.targetingRequests.With(prometheus.Labels{hasStateLabel: strconv.FormatBool(hasState)}).Inc()
}
