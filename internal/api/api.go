// Package api serves the REST and WebSocket endpoints of the template
// service: the model catalog, template storage, editor sessions, document
// server callbacks and template fills.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/auth"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/docserver"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fieldtree"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fill"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/template"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/wire"
)

// Deps are the collaborators shared by the editor loader and the handlers.
type Deps struct {
	Registry  *schema.Registry
	Templates template.Store
	DocServer *docserver.Client
	Tokens    *auth.Tokens
	// PublicURL is where the document server reaches this service.
	PublicURL string
	MaxDepth  int
	Lang      string
	// TokenTTL bounds fill tokens; EditorTTL the download and save tokens
	// handed to an editor, which outlive the editing session.
	TokenTTL  time.Duration
	EditorTTL time.Duration
}

func (d Deps) url(path string) string {
	return strings.TrimRight(d.PublicURL, "/") + path
}

func (d Deps) tokenTTL() time.Duration {
	if d.TokenTTL <= 0 {
		return 5 * time.Minute
	}
	return d.TokenTTL
}

func (d Deps) editorTTL() time.Duration {
	if d.EditorTTL <= 0 {
		return 8 * time.Hour
	}
	return d.EditorTTL
}

// tree returns the ground-truth field tree of model.
func (d Deps) tree(model string) (*schema.ModelNode, error) {
	raw, err := d.Registry.Tree(model, d.MaxDepth)
	if err != nil {
		return nil, err
	}
	return fieldtree.Build(raw), nil
}

// API holds the HTTP handlers.
type API struct {
	Deps
	sessions  *session.Manager
	jobs      *fill.Jobs
	publisher event.Publisher
	ws        *wire.Handler
}

// Option configures an API.
type Option func(*API)

func WithPublisher(p event.Publisher) Option {
	return func(a *API) { a.publisher = p }
}

// WithOriginPatterns restricts the origins allowed to open editor sockets.
func WithOriginPatterns(patterns ...string) Option {
	return func(a *API) { a.ws = wire.NewHandler(a.sessions, patterns...) }
}

// New creates the API. sessions must have been created with an EditorLoader
// over the same deps.
func New(deps Deps, sessions *session.Manager, jobs *fill.Jobs, opts ...Option) *API {
	a := &API{
		Deps:      deps,
		sessions:  sessions,
		jobs:      jobs,
		publisher: event.Discard,
	}
	a.ws = wire.NewHandler(sessions)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes registers every endpoint under /api.
func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/models", a.ListModels)
		r.Get("/models/{model}/fields", a.ModelFields)
		r.Get("/models/{model}/complete", a.CompleteField)

		r.Post("/templates", a.CreateTemplate)
		r.Get("/templates", a.ListTemplates)
		r.Route("/templates/{id}", func(r chi.Router) {
			r.Get("/", a.GetTemplate)
			r.Patch("/", a.RenameTemplate)
			r.Delete("/", a.DeleteTemplate)
			r.Get("/download", a.DownloadTemplate)
			r.Get("/inspect", a.InspectTemplate)
			r.Post("/editor", a.EditorConfig)
			r.Post("/callback", a.Callback)
			r.Post("/fill", a.FillTemplate)
		})

		r.Get("/fill/{job}/script", a.FillScript)

		r.Method(http.MethodGet, "/editor/ws", a.ws)
		r.Get("/sessions", a.ListSessions)
		r.Post("/sessions/{id}/search", a.SearchSession)
		r.Post("/sessions/{id}/click", a.ClickSession)
		r.Delete("/sessions/{id}", a.CloseSession)
	})
}
