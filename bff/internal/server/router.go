package server

import (
	"net/http"

	"github.com/avika-ai/avika-bff/bff/internal/auth"
	"github.com/avika-ai/avika-bff/bff/internal/handlers"
	bffmiddleware "github.com/avika-ai/avika-bff/bff/internal/middleware"
	"github.com/avika-ai/avika-bff/bff/internal/ratelimit"
	"github.com/avika-ai/avika-bff/common/logging"
	"github.com/avika-ai/avika-bff/common/middleware"
)

// RouterConfig holds dependencies needed to configure routes.
// Sessions and Updates may be nil when their backing store is not configured.
type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	StreamHandler   *handlers.StreamHandler
	AgentsHandler   *handlers.AgentsHandler
	RulesHandler    *handlers.RulesHandler
	ReportsHandler  *handlers.ReportsHandler
	SessionsHandler *handlers.SessionsHandler
	HealthHandler   *handlers.HealthHandler
	UpdatesHandler  http.Handler
	MetricsHandler  http.Handler
	AuthMiddleware  *auth.Middleware
}

// NewRouter constructs a ServeMux with gateway routes registered.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.Handler {
		return cfg.AuthMiddleware.Protect(h)
	}

	// Session endpoints are owned by the backend and forwarded as-is
	mux.HandleFunc("GET /api/auth/csrf-token", cfg.AuthHandler.GetCSRFToken)
	mux.HandleFunc("POST /api/auth/login", cfg.AuthHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", cfg.AuthHandler.Logout)
	mux.HandleFunc("POST /api/auth/change-password", cfg.AuthHandler.ChangePassword)
	mux.HandleFunc("GET /api/auth/me", cfg.AuthHandler.Me)

	// Analytics event stream (protected)
	mux.Handle("GET /api/analytics/stream", protect(cfg.StreamHandler.Stream))
	if cfg.SessionsHandler != nil {
		mux.Handle("GET /api/analytics/sessions", protect(cfg.SessionsHandler.List))
	}

	// Agent management (protected)
	mux.Handle("GET /api/agents", protect(cfg.AgentsHandler.List))
	mux.Handle("PATCH /api/agents/{id}", protect(cfg.AgentsHandler.Update))

	// Alert rules (protected)
	mux.Handle("GET /api/rules", protect(cfg.RulesHandler.List))
	mux.Handle("POST /api/rules", protect(cfg.RulesHandler.Create))

	// Reports (protected)
	mux.Handle("POST /api/reports", protect(cfg.ReportsHandler.Generate))
	mux.Handle("GET /api/reports/download", protect(cfg.ReportsHandler.Download))

	// Agent binary distribution
	if cfg.UpdatesHandler != nil {
		mux.Handle("GET /updates/", http.StripPrefix("/updates", cfg.UpdatesHandler))
	}

	// Probes and metrics
	mux.HandleFunc("GET /health", cfg.HealthHandler.Health)
	mux.HandleFunc("GET /ready", cfg.HealthHandler.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	return mux
}

// ProbePaths are never rate limited.
var ProbePaths = []string{"/health", "/ready", "/metrics"}

// ChainConfig configures the middleware wrapped around the router.
type ChainConfig struct {
	CORS        middleware.CORSConfig
	Security    bffmiddleware.SecurityConfig
	CSRF        func(http.Handler) http.Handler
	RateLimiter ratelimit.RateLimiter
	Logger      *logging.Logger
}

// Chain wraps mux as RequestID -> AccessLog -> CORS -> SecurityHeaders ->
// RateLimit -> CSRF -> routes. Nothing between AccessLog and mux replaces
// the request, so the access log sees the matched route pattern.
func Chain(mux http.Handler, cfg ChainConfig) http.Handler {
	handler := mux
	if cfg.CSRF != nil {
		handler = cfg.CSRF(handler)
	}
	if cfg.RateLimiter != nil {
		handler = bffmiddleware.RateLimit(cfg.RateLimiter, cfg.Logger, ProbePaths...)(handler)
	}
	handler = bffmiddleware.SecurityHeaders(cfg.Security)(handler)
	handler = middleware.CORS(cfg.CORS)(handler)
	handler = bffmiddleware.AccessLog(cfg.Logger)(handler)
	return middleware.RequestID(handler)
}
