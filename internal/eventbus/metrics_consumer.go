package eventbus

import (
	"context"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/metrics"
)

// MetricsConsumer classifies domain events onto Prometheus collectors.
type MetricsConsumer struct {
	m *metrics.Metrics
}

func NewMetricsConsumer(m *metrics.Metrics) *MetricsConsumer {
	return &MetricsConsumer{m: m}
}

func (c *MetricsConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	switch evt.EventType {
	case event.TypeSessionOpened:
		c.m.SessionsOpened.Inc()
		c.m.ActiveSessions.Inc()
	case event.TypeSessionClosed:
		c.m.ActiveSessions.Dec()
	case event.TypeCommandDispatched:
		var p event.CommandDispatchedPayload
		if err := event.Decode(evt, &p); err != nil {
			return err
		}
		c.m.CommandsDispatched.WithLabelValues(p.Kind).Inc()
	case event.TypeClickIgnored:
		var p event.ClickIgnoredPayload
		if err := event.Decode(evt, &p); err != nil {
			return err
		}
		c.m.ClicksIgnored.WithLabelValues(p.Reason).Inc()
	case event.TypeTemplateFilled:
		var p event.TemplateFilledPayload
		if err := event.Decode(evt, &p); err != nil {
			return err
		}
		result := "ok"
		if !p.Succeeded() {
			result = "error"
		}
		c.m.FillResults.WithLabelValues(result).Inc()
	}
	return nil
}
