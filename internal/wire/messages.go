// Package wire defines the WebSocket protocol between the editor page and an
// editor session.
package wire

import (
	"encoding/json"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/bridge"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
)

// Client message types.
const (
	TypeDocumentReady = "document_ready"
	TypeFieldClick    = "field_click"
	TypeSearch        = "search"
	TypeScriptError   = "script_error"
	TypePing          = "ping"
)

// Server message types.
const (
	TypeSession = "session"
	TypeTree    = "tree"
	TypeCommand = "command"
	TypeError   = "error"
	TypePong    = "pong"
)

// Error codes.
const (
	CodeEditorUnavailable = "EDITOR_UNAVAILABLE"
	CodeInvalidData       = "invalid_data"
	CodeUnknownType       = "unknown_type"
	CodeUnknownField      = "unknown_field"
	CodeSessionClosed     = "session_closed"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id"` // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// FieldClickData is the payload for "field_click" messages.
type FieldClickData struct {
	Key string `json:"key"`
}

// SearchData is the payload for "search" messages.
type SearchData struct {
	Search          string `json:"search"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty"`
	Match           string `json:"match,omitempty"` // "segment" (default) or "label"
}

// ScriptErrorData is the payload for "script_error" messages, sent when the
// editor script fails to load or start.
type ScriptErrorData struct {
	Message string `json:"message"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData opens every connection.
type SessionData struct {
	SessionID  string         `json:"session_id"`
	TemplateID string         `json:"template_id"`
	Model      string         `json:"model"`
	Editor     session.Editor `json:"editor"`
}

// TreeData carries the visible field tree. Tree is null when nothing matched.
type TreeData struct {
	Search string            `json:"search"`
	Count  int               `json:"count"`
	Tree   *schema.ModelNode `json:"tree"`
}

// CommandData asks the page to run Script through connector.callCommand.
type CommandData struct {
	bridge.Command
	Script string `json:"script"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
