package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quoteshare/apiserver/config"
	"github.com/quoteshare/apiserver/internal/handlers"
	"github.com/quoteshare/apiserver/internal/services"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	app        *App
}

// Routes lists what the router serves.
type Routes struct {
	Auth        handlers.Authenticator
	Quotes      handlers.QuoteBrowser
	Cards       handlers.ShareCards
	Validator   services.CredentialValidator
	DB          handlers.Pinger
	CORSOrigins []string
	Logger      *slog.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	router := NewRouter(Routes{
		Auth:        app.Auth,
		Quotes:      app.Quotes,
		Cards:       app.Cards,
		Validator:   app.Tokens,
		DB:          app.DB,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      app.Logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		app:        app,
	}, nil
}

// NewRouter builds the chi router. The API is mounted at the root and again
// under /api.
func NewRouter(routes Routes) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		handlers.CORS(routes.CORSOrigins),
	)

	health := handlers.Health(routes.DB)
	router.Get("/healthz", health)
	router.Get("/health", health)

	api := func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, routes.Auth, routes.Validator, routes.Logger)
		})
		r.Route("/quotes", func(r chi.Router) {
			handlers.QuoteRouter(r, routes.Quotes, routes.Cards, handlers.RequireAuth(routes.Validator), routes.Logger)
		})
	}
	api(router)
	router.Route("/api", api)

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the app's connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.app != nil {
		err = errors.Join(err, s.app.Close())
	}
	return err
}
