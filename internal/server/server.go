package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angriff36/manifest/internal/auth"
	"github.com/angriff36/manifest/internal/ratelimit"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

// Server is the Manifest HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds all dependencies and configuration for creating a Server.
// Limiter is optional; nil disables rate limiting.
type Config struct {
	DB       *storage.DB
	Executor *runtime.Executor
	Registry *runtime.Registry
	JWTMgr   *auth.JWTManager
	Logger   *slog.Logger
	Limiter  ratelimit.Limiter

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte

	// ExtraRoutes are called after the built-in routes are registered, so
	// embedders can add endpoints on the shared mux.
	ExtraRoutes []func(mux *http.ServeMux)
	// Middlewares wrap the root handler outermost-first.
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := &Handlers{
		DB:                  cfg.DB,
		Executor:            cfg.Executor,
		Registry:            cfg.Registry,
		JWTMgr:              cfg.JWTMgr,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	}

	commandRL := ratelimit.Middleware(cfg.Limiter, tenantKeyFunc)
	authRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc)

	mux := http.NewServeMux()

	// Token issuance (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.HandleAuthToken)))

	// Commands. One handler; the entity slug and command name ride the path.
	command := commandRL(http.HandlerFunc(h.HandleCommand))
	mux.Handle("POST /v1/kitchen/{entity}/commands/{command}", command)
	mux.Handle("POST /v1/logistics/{entity}/commands/{command}", command)
	mux.Handle("POST /v1/staff/{entity}/commands/{command}", command)

	// Manifest state and command discovery.
	mux.Handle("GET /v1/state/{entity}/{id}", http.HandlerFunc(h.HandleGetState))
	mux.Handle("GET /v1/commands", http.HandlerFunc(h.HandleListCommands))

	// Entity creation and reads (CRUD surface outside the command runtime).
	mux.Handle("POST /v1/kitchen/recipes", http.HandlerFunc(h.HandleCreateRecipe))
	mux.Handle("GET /v1/kitchen/recipes/{id}", http.HandlerFunc(h.HandleGetRecipe))
	mux.Handle("POST /v1/kitchen/dishes", http.HandlerFunc(h.HandleCreateDish))
	mux.Handle("GET /v1/kitchen/dishes/{id}", http.HandlerFunc(h.HandleGetDish))
	mux.Handle("POST /v1/kitchen/menus", http.HandlerFunc(h.HandleCreateMenu))
	mux.Handle("GET /v1/kitchen/menus/{id}", http.HandlerFunc(h.HandleGetMenu))
	mux.Handle("POST /v1/kitchen/prep-tasks", http.HandlerFunc(h.HandleCreatePrepTask))
	mux.Handle("GET /v1/kitchen/prep-tasks/{id}", http.HandlerFunc(h.HandleGetPrepTask))
	mux.Handle("POST /v1/kitchen/prep-list-items", http.HandlerFunc(h.HandleCreatePrepListItem))
	mux.Handle("POST /v1/logistics/shipments", http.HandlerFunc(h.HandleCreateShipment))

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	// Embedder middlewares wrap everything; first registered is outermost.
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// tenantKeyFunc extracts the tenant ID from the request context for rate limiting.
func tenantKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return "tenant:" + claims.TenantID
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
