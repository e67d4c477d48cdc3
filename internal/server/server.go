// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/api"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/auth"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/catalog"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/config"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/docserver"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/docx"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/event"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/eventbus"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/fill"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/metrics"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/schema"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/session"
	"github.com/hundred-solutions/onlyoffice-odoo/internal/template"
	"github.com/hundred-solutions/onlyoffice-odoo/pkg/logger"
)

// cleanupInterval is how often expired sessions and fill jobs are swept.
const cleanupInterval = time.Minute

// Server owns the long-lived parts of the service.
type Server struct {
	cfg      config.Config
	handler  http.Handler
	registry *schema.Registry
	store    template.Store
	closers  []func() error
	bus      *eventbus.Bus
	metrics  *metrics.Metrics
	sessions *session.Manager
	jobs     *fill.Jobs
}

// New wires the service from cfg. Nothing runs until Run.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	log := *logger.FromContext(ctx)

	reg, err := catalog.LoadFile(ctx, cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	log.Info("catalog loaded", "models", reg.Len(), "path", cfg.Catalog.Path)

	s := &Server{cfg: cfg, registry: reg, metrics: metrics.New(true)}

	if cfg.Database.URL == "" {
		s.store = template.NewMemoryStore()
		log.Info("templates kept in memory")
	} else {
		sqlStore, err := template.OpenSQLite(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		s.store = sqlStore
		s.closers = append(s.closers, sqlStore.Close)
		log.Info("template database ready")
	}

	tokens, err := auth.NewTokens(cfg.Fill.TokenSecret)
	if err != nil {
		return nil, err
	}
	if cfg.Fill.TokenSecret == "" {
		log.Info("no fill.token_secret set; callback tokens will not survive a restart")
	}

	if cfg.Docx.LicenseKey == "" {
		log.Info("no docx.license_key set; template inspection is unavailable")
	} else if err := docx.SetLicenseKey(cfg.Docx.LicenseKey); err != nil {
		log.Error(err, "template inspection is unavailable")
	}

	s.bus = eventbus.New(0, log)
	s.bus.OnDrop(func(event.DomainEvent) { s.metrics.EventsDropped.Inc() })
	s.bus.Subscribe("log", eventbus.NewLogConsumer(log))
	s.bus.Subscribe("metrics", eventbus.NewMetricsConsumer(s.metrics))

	deps := api.Deps{
		Registry:  reg,
		Templates: s.store,
		DocServer: docserver.New(docserver.Config{
			URL:       cfg.DocServerURL(),
			JWTSecret: cfg.DocServer.JWTSecret,
			JWTHeader: cfg.DocServer.JWTHeader,
			Timeout:   cfg.DocServer.Timeout,
		}),
		Tokens:    tokens,
		PublicURL: cfg.PublicURL(),
		MaxDepth:  cfg.Catalog.MaxDepth,
		Lang:      cfg.DocServer.Lang,
		TokenTTL:  cfg.Fill.TTL,
		EditorTTL: cfg.Session.MaxAge,
	}
	if !deps.DocServer.Configured() {
		log.Info("no document server configured; editor sessions and fills are unavailable")
	}

	s.sessions = session.NewManager(api.NewEditorLoader(deps),
		session.WithTimeouts(cfg.Session.MaxAge, cfg.Session.IdleTimeout),
		session.WithClickBuffer(cfg.Session.ClickBuffer),
		session.WithPublisher(s.bus),
		session.WithMetrics(s.metrics),
	)
	s.jobs = fill.NewJobs(cfg.Fill.TTL)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, api.Logging, api.Recovery)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	api.New(deps, s.sessions, s.jobs, api.WithPublisher(s.bus)).Routes(r)

	s.handler = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Registry returns the loaded model catalog.
func (s *Server) Registry() *schema.Registry { return s.registry }

// Run serves until ctx is done, then shuts down gracefully: open sessions are
// closed, queued events are flushed and the store is closed.
func (s *Server) Run(ctx context.Context) error {
	log := *logger.FromContext(ctx)

	// The bus outlives ctx so session_closed events from shutdown are flushed.
	s.bus.Start(context.WithoutCancel(ctx))
	go s.sessions.Run(ctx, cleanupInterval)
	go s.jobs.Run(ctx, cleanupInterval)

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", server.Addr, "public_url", s.cfg.PublicURL())
		errCh <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.sessions.CloseAll(shutdownCtx, session.ReasonShutdown)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "http shutdown")
	}
	s.bus.Stop()
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			log.Error(err, "closing resource")
		}
	}
	return serveErr
}

// Run builds a Server from cfg and runs it until ctx is done.
func Run(ctx context.Context, cfg config.Config) error {
	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
