package eventbus

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	log logr.Logger
}

func NewLogConsumer(log logr.Logger) *LogConsumer {
	return &LogConsumer{log: log.WithName("events")}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	kv := []any{"type", evt.EventType, "id", evt.ID}
	if evt.SessionID != "" {
		kv = append(kv, "session_id", evt.SessionID)
	}
	if evt.TemplateID != "" {
		kv = append(kv, "template_id", evt.TemplateID)
	}
	if evt.Model != "" {
		kv = append(kv, "model", evt.Model)
	}
	// Per-click events are chatty; keep them below the default level.
	v := 0
	if evt.EventType == event.TypeCommandDispatched || evt.EventType == event.TypeClickIgnored {
		v = 1
	}
	c.log.V(v).Info(evt.Summary, kv...)
	return nil
}
