package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionOpened(t *testing.T) {
	evt := NewSessionOpened(SessionOpenedPayload{
		SessionID:  "0123456789abcdef",
		TemplateID: "tpl-1",
		Model:      "sale.order",
		FieldCount: 12,
	})
	assert.Equal(t, TypeSessionOpened, evt.EventType)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "sale.order", evt.Model)
	assert.Equal(t, "Editor session 01234567 opened on sale.order (12 fields)", evt.Summary)
	assert.WithinDuration(t, time.Now(), evt.OccurredAt, time.Second)

	var p SessionOpenedPayload
	require.NoError(t, Decode(evt, &p))
	assert.Equal(t, 12, p.FieldCount)
}

func TestNewTemplateFilled(t *testing.T) {
	ok := NewTemplateFilled(TemplateFilledPayload{TemplateID: "abc", Model: "sale.order", Href: "http://x"})
	assert.Equal(t, "Template abc filled from sale.order", ok.Summary)

	failed := NewTemplateFilled(TemplateFilledPayload{TemplateID: "abc", Error: "Invalid token."})
	assert.Equal(t, "Template abc fill failed: Invalid token.", failed.Summary)

	var p TemplateFilledPayload
	require.NoError(t, Decode(failed, &p))
	assert.False(t, p.Succeeded())
}

func TestDecodeError(t *testing.T) {
	err := Decode(DomainEvent{EventType: "x", Payload: []byte("{")}, &struct{}{})
	assert.ErrorContains(t, err, "decoding x payload")
}

func TestPublisherFunc(t *testing.T) {
	var got []string
	p := PublisherFunc(func(_ context.Context, evt DomainEvent) { got = append(got, evt.EventType) })
	p.Publish(context.Background(), NewClickIgnored(ClickIgnoredPayload{Key: "k", Reason: "no_connector"}))
	Discard.Publish(context.Background(), DomainEvent{})
	assert.Equal(t, []string{TypeClickIgnored}, got)
}
