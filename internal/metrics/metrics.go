package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors exposed on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	EventsProcessed   *prometheus.CounterVec
	EventFailures     prometheus.Counter
	EventsDeadLetter  prometheus.Counter
	SweepRuns         prometheus.Counter
	SweepBacklog      prometheus.Gauge
	NotificationsSent *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outage_events_processed_total",
			Help: "Events processed by the correlation engine, by classification.",
		}, []string{"class"}),
		EventFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outage_event_failures_total",
			Help: "Event processing attempts that failed and will be retried.",
		}),
		EventsDeadLetter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outage_events_dead_letter_total",
			Help: "Events parked after exhausting their retry budget.",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outage_sweep_runs_total",
			Help: "Completed sweep passes over the unprocessed event backlog.",
		}),
		SweepBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outage_sweep_backlog",
			Help: "Unprocessed events seen by the most recent sweep pass.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outage_notifications_sent_total",
			Help: "Outage notifications delivered, by template type.",
		}, []string{"message_type"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsProcessed,
		m.EventFailures,
		m.EventsDeadLetter,
		m.SweepRuns,
		m.SweepBacklog,
		m.NotificationsSent,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
