package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/bridge"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/metrics"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

// Params is everything a session needs at open time.
type Params struct {
	TemplateID string
	Model      string
	User       string
	// Tree is the ground-truth field tree, keys set and sorted.
	Tree   *schema.ModelNode
	Editor Editor
}

// Loader gathers session parameters: schema, template, editor config and a
// document server health check. Any error aborts the open.
type Loader interface {
	Load(ctx context.Context, templateID, user string) (Params, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(ctx context.Context, templateID, user string) (Params, error)

func (f LoaderFunc) Load(ctx context.Context, templateID, user string) (Params, error) {
	return f(ctx, templateID, user)
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	loader      Loader
	maxAge      time.Duration
	idleTimeout time.Duration
	clickBuffer int
	publisher   event.Publisher
	metrics     *metrics.Metrics
	bridgeOpts  []bridge.Option
	filterOpts  []fieldtree.Option
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeouts sets the maximum session age and idle timeout. Zero disables
// the respective check.
func WithTimeouts(maxAge, idle time.Duration) Option {
	return func(m *Manager) { m.maxAge, m.idleTimeout = maxAge, idle }
}

// WithClickBuffer sets the click channel capacity of new sessions.
func WithClickBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.clickBuffer = n
		}
	}
}

func WithPublisher(p event.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithBridgeOptions configures the click bridge of every session.
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(m *Manager) { m.bridgeOpts = append(m.bridgeOpts, opts...) }
}

// WithFilterOptions sets default search options for every session.
func WithFilterOptions(opts ...fieldtree.Option) Option {
	return func(m *Manager) { m.filterOpts = append(m.filterOpts, opts...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager.
func NewManager(loader Loader, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		loader:      loader,
		clickBuffer: 16,
		publisher:   event.Discard,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open initialises and registers a session for a template. Any failure is
// returned wrapped in ErrEditorUnavailable and leaves nothing registered.
func (m *Manager) Open(ctx context.Context, templateID, user string) (*Session, error) {
	log := logger.FromContext(ctx).WithValues("template_id", templateID)

	p, err := m.loader.Load(ctx, templateID, user)
	if err == nil && p.Tree == nil {
		err = fmt.Errorf("template %s: no field tree", templateID)
	}
	if err != nil {
		if m.metrics != nil {
			m.metrics.SessionInitErrors.Inc()
		}
		log.Error(err, "editor session init failed")
		return nil, fmt.Errorf("%w: %w", ErrEditorUnavailable, err)
	}
	if p.TemplateID == "" {
		p.TemplateID = templateID
	}
	if p.User == "" {
		p.User = user
	}

	s := newSession(m, p)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	// The consumer outlives the request that opened the session.
	s.start(context.WithoutCancel(ctx))

	m.publisher.Publish(ctx, event.NewSessionOpened(event.SessionOpenedPayload{
		SessionID:  s.id,
		TemplateID: s.templateID,
		Model:      s.model,
		FieldCount: fieldtree.Count(s.truth),
		User:       s.user,
	}))
	log.Info("editor session opened", logger.SessionKey, s.id, "model", s.model)
	return s, nil
}

// Get retrieves a session by ID. Expired or idle sessions are closed and
// reported as not found.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if reason, expired := s.expired(m.maxAge, m.idleTimeout); expired {
		s.Close(ctx, reason)
		return nil, ErrNotFound
	}
	return s, nil
}

// Close closes the session with id.
func (m *Manager) Close(ctx context.Context, id, reason string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	s.Close(ctx, reason)
	return nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List snapshots open sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Cleanup closes all expired and idle sessions and returns how many.
func (m *Manager) Cleanup(ctx context.Context) int {
	type victim struct {
		s      *Session
		reason string
	}
	var victims []victim
	m.mu.RLock()
	for _, s := range m.sessions {
		if reason, expired := s.expired(m.maxAge, m.idleTimeout); expired {
			victims = append(victims, victim{s, reason})
		}
	}
	m.mu.RUnlock()

	for _, v := range victims {
		v.s.Close(ctx, v.reason)
	}
	return len(victims)
}

// CloseAll closes every open session.
func (m *Manager) CloseAll(ctx context.Context, reason string) {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()
	for _, s := range all {
		s.Close(ctx, reason)
	}
}

// Run calls Cleanup every interval until ctx is done, then closes all
// sessions.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll(context.WithoutCancel(ctx), ReasonShutdown)
			return
		case <-ticker.C:
			if n := m.Cleanup(ctx); n > 0 {
				logger.FromContext(ctx).V(1).Info("expired editor sessions closed", "count", n)
			}
		}
	}
}
