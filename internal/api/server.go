package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/plugbus/internal/auth"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/component"
	"github.com/mattjoyce/plugbus/internal/dispatch"
	"github.com/mattjoyce/plugbus/internal/events"
	"github.com/mattjoyce/plugbus/internal/ownership"
	"github.com/mattjoyce/plugbus/internal/plugins/timerestriction"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

// ComponentRegistry is the read side of the component registry.
type ComponentRegistry interface {
	All() []component.Component
	Lookup(id string) (component.Component, bool)
	Len() int
}

// ChannelRegistry lists defined channels.
type ChannelRegistry interface {
	Channels() []*channel.Channel
}

// OwnerResolver maps handler origins to component ids.
type OwnerResolver interface {
	OwnerOf(origin string) (string, bool)
	Stats() ownership.Stats
}

// EngineStats exposes dispatch engine counters.
type EngineStats interface {
	Stats() dispatch.Stats
}

// TenantStore defines the tenant operations the API exposes.
type TenantStore interface {
	Upsert(ctx context.Context, t tenant.Tenant) error
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
	List(ctx context.Context) ([]tenant.Tenant, error)
	Enable(ctx context.Context, tenantID, componentID string) error
	Disable(ctx context.Context, tenantID, componentID string) error
	EnabledComponents(ctx context.Context, tenantID string) ([]string, error)
}

// RestrictionStore manages per-tenant time restrictions.
type RestrictionStore interface {
	Add(ctx context.Context, tenantID string, r timerestriction.Restriction) (int64, error)
	ForItem(ctx context.Context, tenantID, item string) ([]timerestriction.Restriction, error)
}

// Sender dispatches a JSON payload on a channel for a tenant.
type Sender interface {
	SendJSON(ctx context.Context, channelName, tenantID string, payload json.RawMessage) (dispatch.Result, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is an admin bearer token. With no APIKey and no Tokens auth is disabled.
	APIKey string
	Tokens []auth.TokenConfig
}

// Deps are the services the API serves.
type Deps struct {
	Components   ComponentRegistry
	Channels     ChannelRegistry
	Owners       OwnerResolver
	Tenants      TenantStore
	Restrictions RestrictionStore
	Sender       Sender
	Engine       EngineStats
	Events       *events.Hub
}

// Server represents the HTTP API server.
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Events == nil {
		deps.Events = events.NewHub(0)
	}
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/openapi.json", s.handleOpenAPI)
		r.With(s.requireScopes(auth.ScopeComponentsRO)).Get("/components", s.handleListComponents)
		r.With(s.requireScopes(auth.ScopeComponentsRO)).Get("/channels", s.handleListChannels)

		r.Route("/tenants", func(r chi.Router) {
			r.With(s.requireScopes(auth.ScopeTenantsRO)).Get("/", s.handleListTenants)
			r.Route("/{tenantID}", func(r chi.Router) {
				r.With(s.requireScopes(auth.ScopeTenantsRO)).Get("/", s.handleGetTenant)
				r.With(s.requireScopes(auth.ScopeTenantsRW)).Put("/", s.handlePutTenant)
				r.With(s.requireScopes(auth.ScopeTenantsRW)).Put("/components/{componentID}", s.handleEnableComponent)
				r.With(s.requireScopes(auth.ScopeTenantsRW)).Delete("/components/{componentID}", s.handleDisableComponent)
				r.With(s.requireScopes(auth.ScopeDispatch)).Post("/channels/{channel}", s.handleSend)
				r.With(s.requireScopes(auth.ScopeTenantsRO)).Get("/restrictions", s.handleListRestrictions)
				r.With(s.requireScopes(auth.ScopeTenantsRW)).Post("/restrictions", s.handleAddRestriction)
			})
		})

		r.With(s.requireScopes(auth.ScopeEventsRO)).Get("/events", s.handleEventSnapshot)
		r.With(s.requireScopes(auth.ScopeEventsRO)).Get("/events/stream", s.handleEventStream)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
