// Package session owns the state of an open template editor: the field tree
// of its model, the current search view and the connector to the editor.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/bridge"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/metrics"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

var (
	// ErrEditorUnavailable means a session could not be initialised. It wraps
	// the underlying cause.
	ErrEditorUnavailable = errors.New("editor unavailable")
	ErrNotFound          = errors.New("session not found")
	ErrClosed            = errors.New("session closed")
	ErrUnknownField      = errors.New("unknown field")
)

// Close reasons.
const (
	ReasonClient       = "client_closed"
	ReasonDisconnected = "disconnected"
	ReasonScriptError  = "script_error"
	ReasonExpired      = "expired"
	ReasonIdle         = "idle"
	ReasonShutdown     = "shutdown"
)

// Connector is the live link to the editor page.
type Connector interface {
	bridge.Connector
	// Disconnect releases the link. It must be safe to call more than once.
	Disconnect()
}

// Editor is what the page needs to start the document editor.
type Editor struct {
	Config   string `json:"editorConfig"`
	DocAPIJS string `json:"docApiJS"`
}

// FieldClick asks the session to insert the form for the field with Key.
// Reply, when set, receives whether a command was queued; it should be
// buffered.
type FieldClick struct {
	Key   string
	Reply chan<- bool
}

// Info is a point-in-time view of a session for listings.
type Info struct {
	ID           string    `json:"id"`
	TemplateID   string    `json:"template_id"`
	Model        string    `json:"model"`
	User         string    `json:"user,omitempty"`
	Search       string    `json:"search"`
	Connected    bool      `json:"connected"`
	Commands     int       `json:"commands"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Session is the explicitly owned handle of one open editor.
type Session struct {
	id         string
	templateID string
	model      string
	user       string
	editor     Editor
	truth      *schema.ModelNode
	createdAt  time.Time

	bridge     *bridge.Bridge
	publisher  event.Publisher
	metrics    *metrics.Metrics
	filterOpts []fieldtree.Option
	now        func() time.Time
	onClose    func(*Session)

	mu         sync.Mutex
	visible    *schema.ModelNode
	search     string
	conn       Connector
	lastActive time.Time
	commands   int

	clicks    chan FieldClick
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSession(m *Manager, p Params) *Session {
	now := m.now()
	s := &Session{
		id:         uuid.New().String(),
		templateID: p.TemplateID,
		model:      p.Model,
		user:       p.User,
		editor:     p.Editor,
		truth:      p.Tree,
		createdAt:  now,
		publisher:  m.publisher,
		metrics:    m.metrics,
		filterOpts: m.filterOpts,
		now:        m.now,
		onClose:    m.remove,
		visible:    p.Tree,
		lastActive: now,
		clicks:     make(chan FieldClick, m.clickBuffer),
		done:       make(chan struct{}),
	}
	s.bridge = bridge.New(append(append([]bridge.Option(nil), m.bridgeOpts...), bridge.WithObserver(s))...)
	return s
}

func (s *Session) ID() string         { return s.id }
func (s *Session) TemplateID() string { return s.templateID }
func (s *Session) Model() string      { return s.model }
func (s *Session) Editor() Editor     { return s.editor }

// GroundTruth returns the full field tree. Callers must not modify it.
func (s *Session) GroundTruth() *schema.ModelNode { return s.truth }

// Visible returns the current view and the search that produced it. The view
// is nil when the search matched nothing.
func (s *Session) Visible() (*schema.ModelNode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible, s.search
}

// Search replaces the visible view with the ground truth filtered by query.
// Extra options are applied after the manager defaults.
func (s *Session) Search(ctx context.Context, query string, opts ...fieldtree.Option) *schema.ModelNode {
	start := time.Now()
	all := append(append([]fieldtree.Option(nil), s.filterOpts...), opts...)
	view := fieldtree.Filter(s.truth, query, all...)
	if s.metrics != nil {
		s.metrics.FilterDuration.Observe(time.Since(start).Seconds())
	}

	s.mu.Lock()
	s.visible = view
	s.search = query
	s.lastActive = s.now()
	s.mu.Unlock()

	logger.FromContext(ctx).V(1).Info("field search", logger.SessionKey, s.id, "search", query, "visible", fieldtree.Count(view))
	return view
}

// AttachConnector binds the editor connector, replacing and disconnecting any
// previous one. It fails once the session is closed.
func (s *Session) AttachConnector(c Connector) error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return ErrClosed
	default:
	}
	prev := s.conn
	s.conn = c
	s.lastActive = s.now()
	s.mu.Unlock()

	if prev != nil && prev != c {
		prev.Disconnect()
	}
	return nil
}

// Connected reports whether a connector is attached.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Session) connector() bridge.Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn
}

// Clicks is the inbound click channel, drained by one goroutine per session.
// Senders should select on Done as well; the channel is never closed.
func (s *Session) Clicks() chan<- FieldClick { return s.clicks }

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Click sends a click for key through the click channel and waits for the
// outcome. Unknown keys are rejected before queueing.
func (s *Session) Click(ctx context.Context, key string) (bool, error) {
	if _, ok := fieldtree.Lookup(s.truth, key); !ok {
		return false, ErrUnknownField
	}
	reply := make(chan bool, 1)
	select {
	case s.clicks <- FieldClick{Key: key, Reply: reply}:
	case <-s.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-s.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Session) start(ctx context.Context) {
	s.wg.Add(1)
	go s.consume(ctx)
}

func (s *Session) consume(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case c := <-s.clicks:
			ok := s.handleClick(ctx, c.Key)
			if c.Reply != nil {
				select {
				case c.Reply <- ok:
				default:
				}
			}
		}
	}
}

func (s *Session) handleClick(ctx context.Context, key string) bool {
	s.touch()
	field, ok := fieldtree.Lookup(s.truth, key)
	if !ok {
		logger.FromContext(ctx).V(1).Info("click on unknown field", logger.SessionKey, s.id, "key", key)
		return false
	}
	return s.bridge.Click(ctx, s.connector(), field)
}

// Dispatched implements bridge.Observer.
func (s *Session) Dispatched(ctx context.Context, field schema.FieldDescriptor, cmd bridge.Command) {
	s.mu.Lock()
	s.commands++
	s.mu.Unlock()
	s.publisher.Publish(ctx, event.NewCommandDispatched(event.CommandDispatchedPayload{
		SessionID: s.id,
		Key:       field.Key,
		Kind:      string(cmd.Kind),
		Tag:       cmd.Form.Tag,
	}))
}

// Ignored implements bridge.Observer.
func (s *Session) Ignored(ctx context.Context, field schema.FieldDescriptor, reason bridge.IgnoreReason) {
	s.publisher.Publish(ctx, event.NewClickIgnored(event.ClickIgnoredPayload{
		SessionID: s.id,
		Key:       field.Key,
		Type:      field.Type.String(),
		Reason:    string(reason),
	}))
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// Touch marks the session active.
func (s *Session) Touch() { s.touch() }

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.id,
		TemplateID:   s.templateID,
		Model:        s.model,
		User:         s.user,
		Search:       s.search,
		Connected:    s.conn != nil,
		Commands:     s.commands,
		CreatedAt:    s.createdAt,
		LastActiveAt: s.lastActive,
	}
}

func (s *Session) expired(maxAge, idle time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if maxAge > 0 && now.Sub(s.createdAt) > maxAge {
		return ReasonExpired, true
	}
	if idle > 0 && now.Sub(s.lastActive) > idle {
		return ReasonIdle, true
	}
	return "", false
}

// Close ends the session: the click consumer stops, the connector is
// disconnected and a session_closed event is published. Later calls are
// no-ops.
func (s *Session) Close(ctx context.Context, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		s.wg.Wait()
		if conn != nil {
			conn.Disconnect()
		}
		if s.onClose != nil {
			s.onClose(s)
		}

		info := s.Info()
		s.publisher.Publish(ctx, event.NewSessionClosed(event.SessionClosedPayload{
			SessionID:  s.id,
			TemplateID: s.templateID,
			Reason:     reason,
			Duration:   s.now().Sub(s.createdAt),
			Commands:   info.Commands,
		}))
		logger.FromContext(ctx).Info("editor session closed", logger.SessionKey, s.id, "reason", reason)
	})
}
