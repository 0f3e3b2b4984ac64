// Package api implements the JSON HTTP surface: authentication, session and
// message endpoints, chat turns, per-message actions, profile, and settings.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/patooworld/omni/internal/auth"
	"github.com/patooworld/omni/internal/profile"
	"github.com/patooworld/omni/internal/settings"
)

// TokenVerifier validates access tokens. Implemented by *auth.Service.
type TokenVerifier interface {
	VerifyToken(token string) (auth.User, error)
}

// Authenticator covers the account operations the auth endpoints need.
// Implemented by *auth.Service.
type Authenticator interface {
	TokenVerifier
	SignUp(ctx context.Context, email, password, displayName string) (auth.User, string, error)
	SignIn(ctx context.Context, email, password string) (auth.User, string, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Auth        Authenticator   // Required
	Controllers *Registry       // Required
	Profiles    *profile.Store  // Required
	Settings    *settings.Store // Required

	TrustProxy         bool
	RateLimitPerSecond float64 // 0 = default 5/s
	RateLimitBurst     int     // 0 = default 10
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Controllers == nil {
		return nil, errors.New("controller registry is required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("settings store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{
		logger:      logger,
		auth:        cfg.Auth,
		controllers: cfg.Controllers,
		profiles:    cfg.Profiles,
		settings:    cfg.Settings,
	}

	// Authenticated routes.
	authed := http.NewServeMux()
	authed.HandleFunc("GET /api/sessions", h.listSessions)
	authed.HandleFunc("POST /api/sessions", h.createSession)
	authed.HandleFunc("POST /api/sessions/{id}/select", h.selectSession)
	authed.HandleFunc("PATCH /api/sessions/{id}", h.renameSession)
	authed.HandleFunc("DELETE /api/sessions/{id}", h.deleteSession)
	authed.HandleFunc("GET /api/sessions/current/messages", h.currentMessages)
	authed.HandleFunc("POST /api/chat", h.sendTurn)
	authed.HandleFunc("POST /api/messages/{id}/action", h.messageAction)
	authed.HandleFunc("GET /api/playback", h.getPlayback)
	authed.HandleFunc("GET /api/profile", h.getProfile)
	authed.HandleFunc("PUT /api/profile", h.putProfile)
	authed.HandleFunc("GET /api/settings", h.getSettings)
	authed.HandleFunc("PUT /api/settings", h.putSettings)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signup", h.signUp)
	mux.HandleFunc("POST /api/auth/signin", h.signIn)
	// Theme is a device preference, readable and writable before sign-in.
	mux.HandleFunc("GET /api/theme", h.getTheme)
	mux.HandleFunc("PUT /api/theme", h.putTheme)
	mux.Handle("/api/", authMiddleware(cfg.Auth, logger)(authed))

	rps := cfg.RateLimitPerSecond
	if rps <= 0 {
		rps = 5.0
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	throttle := newIPThrottle(rps, burst, cfg.TrustProxy, logger)

	// Middleware stack, outermost first:
	//   Recovery -> Logging -> RateLimit -> Routes
	var handler http.Handler = mux
	handler = throttle.middleware(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probe bypasses the middleware stack.
	top := http.NewServeMux()
	top.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	top.Handle("/", final)

	return &Server{mux: top}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
