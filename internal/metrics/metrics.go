// Package metrics holds the Prometheus collectors of the template service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "doctemplate"

// Metrics groups the collectors. Each instance owns its registry so tests and
// embedded servers do not collide on the default registerer.
type Metrics struct {
	Registry *prometheus.Registry

	CommandsDispatched *prometheus.CounterVec
	ClicksIgnored      *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	SessionsOpened     prometheus.Counter
	SessionInitErrors  prometheus.Counter
	FilterDuration     prometheus.Histogram
	FillResults        *prometheus.CounterVec
	EventsDropped      prometheus.Counter
}

// New creates and registers all collectors. withRuntime adds the Go runtime
// and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CommandsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_commands_total",
			Help:      "Form-field commands queued to connected editors, by kind.",
		}, []string{"kind"}),
		ClicksIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_clicks_ignored_total",
			Help:      "Field clicks that produced no command, by reason.",
		}, []string{"reason"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions_active",
			Help:      "Editor sessions currently open.",
		}),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_sessions_opened_total",
			Help:      "Editor sessions opened since start.",
		}),
		SessionInitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_session_init_errors_total",
			Help:      "Editor sessions that failed to initialise.",
		}),
		FilterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "field_filter_duration_seconds",
			Help:      "Time spent deriving a filtered field tree.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		FillResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_fills_total",
			Help:      "Template fill requests, by result.",
		}, []string{"result"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Domain events dropped because the bus buffer was full.",
		}),
	}
	m.Registry.MustRegister(
		m.CommandsDispatched,
		m.ClicksIgnored,
		m.ActiveSessions,
		m.SessionsOpened,
		m.SessionInitErrors,
		m.FilterDuration,
		m.FillResults,
		m.EventsDropped,
	)
	if withRuntime {
		m.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
