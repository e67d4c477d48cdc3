package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

// UserHeader names the request header carrying the end user.
const UserHeader = "X-User"

const outboxSize = 64

// Handler manages WebSocket connections for editor sessions.
type Handler struct {
	sessions       *session.Manager
	originPatterns []string
}

// NewHandler creates a WebSocket handler. originPatterns defaults to any
// origin.
func NewHandler(sessions *session.Manager, originPatterns ...string) *Handler {
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return &Handler{sessions: sessions, originPatterns: originPatterns}
}

// ServeHTTP upgrades to WebSocket, opens a session for the "template" query
// parameter and runs the message loop until either side closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := *logger.FromContext(ctx)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Error(err, "websocket accept")
		return
	}
	defer conn.CloseNow()

	templateID := r.URL.Query().Get("template")
	sess, err := h.sessions.Open(ctx, templateID, r.Header.Get(UserHeader))
	if err != nil {
		_ = wsjson.Write(ctx, conn, ServerMessage{
			Type: TypeError,
			Data: ErrorData{Code: CodeEditorUnavailable, Message: err.Error()},
		})
		conn.Close(websocket.StatusInternalError, "editor unavailable")
		return
	}

	log = log.WithValues(logger.SessionKey, sess.ID())
	ctx = logger.WithLogger(ctx, &log)

	out := newOutbox(conn, outboxSize, log)
	go out.run(ctx)

	// Close the socket when the session ends elsewhere (REST, expiry).
	exiting := make(chan struct{})
	go func() {
		select {
		case <-sess.Done():
			conn.Close(websocket.StatusNormalClosure, "session closed")
		case <-exiting:
		case <-out.done:
		}
	}()

	c := &conversation{sess: sess, out: out}
	_ = out.send(ctx, ServerMessage{
		Type: TypeSession,
		Data: SessionData{
			SessionID:  sess.ID(),
			TemplateID: sess.TemplateID(),
			Model:      sess.Model(),
			Editor:     sess.Editor(),
		},
	})
	view, search := sess.Visible()
	c.sendTree(ctx, "", view, search)

	// Messages queued by the last handled message (an error for the page)
	// must be written before the session close tears the socket down.
	reason := session.ReasonDisconnected
	stopped := false
	defer func() {
		close(exiting)
		out.close()
		sess.Close(ctx, reason)
		if stopped {
			conn.Close(websocket.StatusNormalClosure, reason)
		}
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				log.V(1).Info("websocket closed", "status", status.String())
			}
			return
		}
		sess.Touch()

		if stop := c.handle(ctx, msg); stop != "" {
			reason, stopped = stop, true
			return
		}
	}
}

// conversation handles the messages of one connection.
type conversation struct {
	sess *session.Session
	out  *outbox
}

// handle processes one client message. A non-empty result ends the
// connection with that close reason.
func (c *conversation) handle(ctx context.Context, msg ClientMessage) string {
	switch msg.Type {
	case TypeDocumentReady:
		if err := c.sess.AttachConnector(newConnector(c.out)); err != nil {
			c.sendError(ctx, msg.ID, CodeSessionClosed, err.Error())
			return session.ReasonDisconnected
		}
	case TypeFieldClick:
		var data FieldClickData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Key == "" {
			c.sendError(ctx, msg.ID, CodeInvalidData, "invalid field_click data")
			return ""
		}
		if _, ok := fieldtree.Lookup(c.sess.GroundTruth(), data.Key); !ok {
			c.sendError(ctx, msg.ID, CodeUnknownField, fmt.Sprintf("unknown field %q", data.Key))
			return ""
		}
		select {
		case c.sess.Clicks() <- session.FieldClick{Key: data.Key}:
		case <-c.sess.Done():
		case <-ctx.Done():
		}
	case TypeSearch:
		var data SearchData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(ctx, msg.ID, CodeInvalidData, "invalid search data")
			return ""
		}
		view := c.sess.Search(ctx, data.Search, SearchOptions(data)...)
		c.sendTree(ctx, msg.ID, view, data.Search)
	case TypeScriptError:
		var data ScriptErrorData
		_ = json.Unmarshal(msg.Data, &data)
		logger.FromContext(ctx).Info("editor script failed", "message", data.Message)
		c.sendError(ctx, msg.ID, CodeEditorUnavailable, session.ErrEditorUnavailable.Error())
		return session.ReasonScriptError
	case TypePing:
		_ = c.out.send(ctx, ServerMessage{Type: TypePong, RequestID: msg.ID})
	default:
		c.sendError(ctx, msg.ID, CodeUnknownType, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
	return ""
}

// SearchOptions turns the flags of a search request into filter options.
func SearchOptions(data SearchData) []fieldtree.Option {
	var opts []fieldtree.Option
	if data.CaseInsensitive {
		opts = append(opts, fieldtree.CaseInsensitive())
	}
	if data.Match != "" {
		opts = append(opts, fieldtree.MatchOn(fieldtree.ParseMatchTarget(data.Match)))
	}
	return opts
}

func (c *conversation) sendTree(ctx context.Context, requestID string, view *schema.ModelNode, search string) {
	_ = c.out.send(ctx, ServerMessage{
		Type:      TypeTree,
		RequestID: requestID,
		Data:      TreeData{Search: search, Count: fieldtree.Count(view), Tree: view},
	})
}

func (c *conversation) sendError(ctx context.Context, requestID, code, message string) {
	if err := c.out.send(ctx, ServerMessage{
		Type:      TypeError,
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	}); err != nil && !errors.Is(err, ErrConnectorClosed) {
		logger.FromContext(ctx).V(1).Info("error message not sent", "code", code, "error", err.Error())
	}
}
