package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pressadmin/internal/activity"
	"pressadmin/internal/clock"
	"pressadmin/internal/store"
	"pressadmin/internal/themes"
	"pressadmin/pkg/plugin"
	"pressadmin/pkg/theme"

	"go.uber.org/zap"
)

// Deps are the components the API reads and mutates.
type Deps struct {
	Registry      *plugin.Registry
	Catalog       *plugin.Catalog
	PluginContext *plugin.Context
	Loader        *theme.Loader
	Themes        *themes.Catalog
	Document      *theme.Document

	// Settings persists admin choices. Nil disables persistence.
	Settings *store.Settings
	Activity *activity.Tracker

	// Live serves /api/live. Nil disables the live feed.
	Live  http.Handler
	Clock clock.Clock
}

// Options configure the listener and access control.
type Options struct {
	Port     int
	ReadOnly bool

	// Token enables bearer auth when non-empty.
	Token string

	// AllowLoopback skips auth for requests from loopback addresses.
	AllowLoopback bool

	ShutdownTimeout time.Duration

	// ActivationTimeout bounds POST /api/theme.
	ActivationTimeout time.Duration
}

// Server provides the admin HTTP API
type Server struct {
	deps    Deps
	opts    Options
	logger  *zap.Logger
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(deps Deps, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewRealClock()
	}
	if deps.Activity == nil {
		deps.Activity = activity.NewTracker(deps.Clock, logger, 0)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.ActivationTimeout <= 0 {
		opts.ActivationTimeout = 30 * time.Second
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /admin", s.handleAdmin)

	mux.HandleFunc("GET /api/plugins", s.handleListPlugins)
	mux.HandleFunc("GET /api/plugins/{name}", s.handleGetPlugin)
	mux.HandleFunc("POST /api/plugins/{name}", s.handleRegisterPlugin)
	mux.HandleFunc("DELETE /api/plugins/{name}", s.handleUnregisterPlugin)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)

	mux.HandleFunc("GET /api/hooks", s.handleListHooks)
	mux.HandleFunc("POST /api/hooks/{name}", s.handleExecuteHook)

	mux.HandleFunc("GET /api/themes", s.handleListThemes)
	mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	mux.HandleFunc("POST /api/theme", s.handleActivateTheme)

	mux.HandleFunc("GET /api/activity", s.handleActivity)
	if deps.Live != nil {
		mux.Handle("GET /api/live", deps.Live)
	}

	s.handler = s.withAuth(s.withReadOnly(mux))
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: opts.ActivationTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap"},
	{Path: "/health", Method: "GET", Description: "Health check, returns {\"status\": \"ok\"}"},
	{Path: "/admin", Method: "GET", Description: "Admin shell with the active theme's resources"},
	{Path: "/api/plugins", Method: "GET", Description: "Registered plugins (paginated)"},
	{Path: "/api/plugins/{name}", Method: "GET", Description: "One registered plugin"},
	{Path: "/api/plugins/{name}", Method: "POST", Description: "Register a catalog plugin"},
	{Path: "/api/plugins/{name}", Method: "DELETE", Description: "Unregister a plugin"},
	{Path: "/api/catalog", Method: "GET", Description: "Built-in plugins available to register"},
	{Path: "/api/hooks", Method: "GET", Description: "Hook names and callback counts"},
	{Path: "/api/hooks/{name}", Method: "POST", Description: "Run a hook with a JSON array of arguments"},
	{Path: "/api/themes", Method: "GET", Description: "Installed themes (paginated)"},
	{Path: "/api/theme", Method: "GET", Description: "Active theme and attached resources"},
	{Path: "/api/theme", Method: "POST", Description: "Activate a theme, body {\"name\": \"...\"}"},
	{Path: "/api/activity", Method: "GET", Description: "Recent admin actions (paginated)"},
	{Path: "/api/live", Method: "GET", Description: "Websocket feed of plugin and theme snapshots"},
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	// Only handle requests to the root path
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "pressadmin",
		"readOnly":  s.opts.ReadOnly,
		"endpoints": endpoints,
	})
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server",
		zap.String("addr", s.server.Addr),
		zap.Bool("read_only", s.opts.ReadOnly),
		zap.Bool("auth", s.opts.Token != ""))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
