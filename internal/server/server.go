package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tasklane/apiserver/config"
	"github.com/tasklane/apiserver/internal/auth"
	"github.com/tasklane/apiserver/internal/db"
	"github.com/tasklane/apiserver/internal/events"
	"github.com/tasklane/apiserver/internal/handlers"
	"github.com/tasklane/apiserver/internal/services"
	"github.com/tasklane/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *events.Bus
	log        *slog.Logger
}

// Services are the use-cases exposed over HTTP.
type Services struct {
	Auth  *services.AuthService
	Tasks *services.TaskService
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET is required: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.Database); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		log.InfoContext(ctx, "database migrations applied")
	}

	bus, err := events.Open(ctx, cfg.Events, log)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	userService := services.NewUserService(store.NewUserRepository(dbConn), hasher)
	authService, err := services.NewAuthService(userService, hasher, tokens, bus, log)
	if err != nil {
		_ = bus.Close()
		_ = dbConn.Close()
		return nil, err
	}
	taskService := services.NewTaskService(store.NewTaskRepository(cfg.Tasks.File), bus, log)

	router := NewRouter(Services{Auth: authService, Tasks: taskService}, log)

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
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
		log:        log,
	}, nil
}

// NewRouter mounts every route on a chi router.
func NewRouter(svc Services, log *slog.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/", handlers.Root)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, svc.Auth, log)
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, svc.Tasks, log)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, then releases the database and broker connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.bus != nil {
		err = errors.Join(err, s.bus.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
