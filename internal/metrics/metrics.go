// Package metrics exposes the agent's Prometheus instrumentation on a
// dedicated registry so the /metrics endpoint only carries agent series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the agent instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec
	SessionsStopped   prometheus.Counter
	SessionErrors     prometheus.Counter

	ReadingsTotal  *prometheus.CounterVec
	ParseFailures  prometheus.Counter
	EventsReceived *prometheus.CounterVec
	EventsDropped  prometheus.Counter

	StreamConnected  prometheus.Gauge
	StreamReconnects prometheus.Counter

	CommandDuration prometheus.Histogram
	CommandTimeouts prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_inspection_sessions_started_total",
			Help: "Inspection sessions started.",
		}),
		SessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_inspection_sessions_completed_total",
			Help: "Inspection sessions completed, by overall verdict.",
		}, []string{"verdict"}),
		SessionsStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_inspection_sessions_stopped_total",
			Help: "Inspection sessions stopped by the operator.",
		}),
		SessionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_inspection_session_errors_total",
			Help: "Inspection sessions terminated with an error.",
		}),
		ReadingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_readings_total",
			Help: "Readings recorded, by verdict.",
		}, []string{"verdict"}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_response_parse_failures_total",
			Help: "Instrument responses that could not be parsed.",
		}),
		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_stream_events_received_total",
			Help: "Stream events received, by type.",
		}, []string{"type"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_stream_events_dropped_total",
			Help: "Stream events dropped because no session accepted them.",
		}),
		StreamConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agent_stream_connected",
			Help: "Whether the driver event stream is connected.",
		}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_stream_reconnects_total",
			Help: "Operator-triggered stream reconnect attempts.",
		}),
		CommandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_command_round_trip_seconds",
			Help:    "Duration of instrument command round trips.",
			Buckets: prometheus.DefBuckets,
		}),
		CommandTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_command_timeouts_total",
			Help: "Instrument command round trips that exceeded their budget.",
		}),
	}
}

// Registry returns the dedicated registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
