// Package bridge turns merge-field clicks into editor form-field commands.
package bridge

import (
	"context"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

// Connector is a live handle on a connected editor that can run commands.
// Execute queues cmd and returns without waiting for the editor.
type Connector interface {
	Execute(cmd Command) error
}

// IgnoreReason says why a click produced no command.
type IgnoreReason string

const (
	ReasonNoConnector     IgnoreReason = "no_connector"
	ReasonUnsupportedType IgnoreReason = "unsupported_type"
	ReasonConnectorError  IgnoreReason = "connector_error"
)

// Observer is told about every click outcome. Implementations must be safe for
// concurrent use.
type Observer interface {
	Dispatched(ctx context.Context, field schema.FieldDescriptor, cmd Command)
	Ignored(ctx context.Context, field schema.FieldDescriptor, reason IgnoreReason)
}

// Builder makes the command for a field.
type Builder func(field schema.FieldDescriptor) Command

// Bridge maps field types to command builders.
type Bridge struct {
	builders map[schema.FieldType]Builder
	observer Observer
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithObserver attaches an observer for click outcomes.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// WithBuilder registers or replaces the builder for a field type.
func WithBuilder(ft schema.FieldType, build Builder) Option {
	return func(b *Bridge) { b.builders[ft] = build }
}

// textTypes insert as text forms.
var textTypes = []schema.FieldType{
	schema.FieldChar,
	schema.FieldText,
	schema.FieldSelection,
	schema.FieldInteger,
	schema.FieldFloat,
	schema.FieldMonetary,
	schema.FieldDate,
	schema.FieldDatetime,
	schema.FieldMany2One,
	schema.FieldOne2Many,
	schema.FieldMany2Many,
}

// New creates a Bridge with the text and checkbox builders registered.
// Types without a builder (binary, html, image, ...) produce no command.
func New(opts ...Option) *Bridge {
	b := &Bridge{builders: make(map[schema.FieldType]Builder)}
	for _, ft := range textTypes {
		b.builders[ft] = TextForm
	}
	b.builders[schema.FieldBoolean] = CheckBoxForm
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Supports reports whether clicks on fields of type ft produce a command.
func (b *Bridge) Supports(ft schema.FieldType) bool {
	_, ok := b.builders[ft]
	return ok
}

// Command returns the command for field, or false for unsupported types.
func (b *Bridge) Command(field schema.FieldDescriptor) (Command, bool) {
	build, ok := b.builders[field.Type]
	if !ok {
		return Command{}, false
	}
	return build(field), true
}

// Click sends the command for field to conn. A nil connector, an unsupported
// type or a failing connector make the click a no-op; none of them is an error
// for the caller. It reports whether a command was queued.
func (b *Bridge) Click(ctx context.Context, conn Connector, field schema.FieldDescriptor) bool {
	log := logger.FromContext(ctx).WithValues("key", field.Key, "type", field.Type.String())
	if conn == nil {
		log.V(1).Info("field click without connector")
		b.ignored(ctx, field, ReasonNoConnector)
		return false
	}
	cmd, ok := b.Command(field)
	if !ok {
		log.V(1).Info("field type has no form command")
		b.ignored(ctx, field, ReasonUnsupportedType)
		return false
	}
	if err := conn.Execute(cmd); err != nil {
		log.V(1).Info("connector rejected command", "error", err.Error())
		b.ignored(ctx, field, ReasonConnectorError)
		return false
	}
	if b.observer != nil {
		b.observer.Dispatched(ctx, field, cmd)
	}
	return true
}

func (b *Bridge) ignored(ctx context.Context, field schema.FieldDescriptor, reason IgnoreReason) {
	if b.observer != nil {
		b.observer.Ignored(ctx, field, reason)
	}
}

// TextForm builds a text form bound to the field key, labelled with the field
// label and tagged with the owning model.
func TextForm(field schema.FieldDescriptor) Command {
	label := PlainText(field.String)
	return Command{
		Kind: KindTextForm,
		Form: FormSpec{
			Key:         formKey(field),
			Placeholder: label,
			Tip:         label,
			Tag:         field.Model,
		},
		Insert: InsertOptions{KeepTextOnly: true},
	}
}

// CheckBoxForm builds an inline checkbox form bound to the field key.
func CheckBoxForm(field schema.FieldDescriptor) Command {
	return Command{
		Kind: KindCheckBoxForm,
		Form: FormSpec{
			Key: formKey(field),
			Tip: PlainText(field.String),
			Tag: field.Model,
		},
		Inline: true,
		Insert: InsertOptions{KeepTextOnly: true},
	}
}

func formKey(field schema.FieldDescriptor) string {
	if field.Key != "" {
		return field.Key
	}
	return field.Name
}

var (
	labelPolicyOnce sync.Once
	labelPolicy     *bluemonday.Policy
)

// PlainText strips markup from a label before it reaches the editor.
func PlainText(raw string) string {
	labelPolicyOnce.Do(func() {
		labelPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(raw)))
}
