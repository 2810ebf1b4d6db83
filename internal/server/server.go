package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/cambosugarscan/apiserver/internal/handlers"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/metrics"
	"github.com/cambosugarscan/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	deps       *Deps
	log        logging.Logger
}

// Routes groups what NewRouter mounts.
type Routes struct {
	Products *services.ProductService
	Users    *services.UserService
	Auth     *handlers.Authenticator
	Metrics  *metrics.Metrics
	Log      logging.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	deps, err := OpenDeps(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	router := NewRouter(Routes{
		Products: deps.Products,
		Users:    deps.Users,
		Auth:     handlers.NewAuthenticator(deps.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Metrics:  deps.Metrics,
		Log:      log,
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
		deps:       deps,
		log:        log,
	}, nil
}

// NewRouter mounts the public API under /api next to the health and
// metrics endpoints.
func NewRouter(rt Routes) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	if rt.Metrics != nil {
		router.Handle("/metrics", rt.Metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Healthz)
		r.Get("/sugar-score/{value}", handlers.SugarScore)
		r.Route("/products", func(r chi.Router) {
			handlers.ProductRouter(r, rt.Products, rt.Auth, rt.Log)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, rt.Users, rt.Auth, rt.Log)
		})
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, rt.Users, rt.Auth, rt.Log)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr reports the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the database and event
// backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.deps.Close())
}
