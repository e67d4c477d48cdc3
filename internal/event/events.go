// Package event defines the domain events of editing sessions and templates.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeSessionOpened     = "session_opened"
	TypeSessionClosed     = "session_closed"
	TypeCommandDispatched = "command_dispatched"
	TypeClickIgnored      = "click_ignored"
	TypeTemplateFilled    = "template_filled"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID         string
	EventType  string
	OccurredAt time.Time
	SessionID  string
	TemplateID string
	Model      string
	Summary    string
	Payload    json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// short trims IDs for summaries.
func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── Session events ───────────────────────────────────────────────────────────

// SessionOpenedPayload carries event-specific data for SessionOpened.
type SessionOpenedPayload struct {
	SessionID  string `json:"session_id"`
	TemplateID string `json:"template_id"`
	Model      string `json:"model"`
	FieldCount int    `json:"field_count"`
	User       string `json:"user,omitempty"`
}

func NewSessionOpened(p SessionOpenedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeSessionOpened,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		TemplateID: p.TemplateID,
		Model:      p.Model,
		Summary:    fmt.Sprintf("Editor session %s opened on %s (%d fields)", short(p.SessionID), p.Model, p.FieldCount),
		Payload:    mustJSON(p),
	}
}

// SessionClosedPayload carries event-specific data for SessionClosed.
type SessionClosedPayload struct {
	SessionID  string        `json:"session_id"`
	TemplateID string        `json:"template_id"`
	Reason     string        `json:"reason"`
	Duration   time.Duration `json:"duration"`
	Commands   int           `json:"commands"`
}

func NewSessionClosed(p SessionClosedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeSessionClosed,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		TemplateID: p.TemplateID,
		Summary:    fmt.Sprintf("Editor session %s closed (%s) after %d commands", short(p.SessionID), p.Reason, p.Commands),
		Payload:    mustJSON(p),
	}
}

// ── Field click events ───────────────────────────────────────────────────────

// CommandDispatchedPayload carries event-specific data for CommandDispatched.
type CommandDispatchedPayload struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	Tag       string `json:"tag"`
}

func NewCommandDispatched(p CommandDispatchedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeCommandDispatched,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		Model:      p.Tag,
		Summary:    fmt.Sprintf("%s for %q", p.Kind, p.Key),
		Payload:    mustJSON(p),
	}
}

// ClickIgnoredPayload carries event-specific data for ClickIgnored.
type ClickIgnoredPayload struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
}

func NewClickIgnored(p ClickIgnoredPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeClickIgnored,
		OccurredAt: time.Now(),
		SessionID:  p.SessionID,
		Summary:    fmt.Sprintf("click on %q (%s) ignored: %s", p.Key, p.Type, p.Reason),
		Payload:    mustJSON(p),
	}
}

// ── Template events ──────────────────────────────────────────────────────────

// TemplateFilledPayload carries event-specific data for TemplateFilled.
type TemplateFilledPayload struct {
	TemplateID string `json:"template_id"`
	JobID      string `json:"job_id"`
	Model      string `json:"model"`
	Href       string `json:"href,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Succeeded reports whether the fill produced a document.
func (p TemplateFilledPayload) Succeeded() bool { return p.Error == "" }

func NewTemplateFilled(p TemplateFilledPayload) DomainEvent {
	summary := fmt.Sprintf("Template %s filled from %s", short(p.TemplateID), p.Model)
	if !p.Succeeded() {
		summary = fmt.Sprintf("Template %s fill failed: %s", short(p.TemplateID), p.Error)
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeTemplateFilled,
		OccurredAt: time.Now(),
		TemplateID: p.TemplateID,
		Model:      p.Model,
		Summary:    summary,
		Payload:    mustJSON(p),
	}
}

// Decode unmarshals the payload of evt into v.
func Decode(evt DomainEvent, v any) error {
	if err := json.Unmarshal(evt.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", evt.EventType, err)
	}
	return nil
}
