package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/tendant/filemanager/pkg/filemanager"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Service filemanager.Service
	Logger  *slog.Logger

	// MultipartMemory bounds the in-memory part of upload forms
	MultipartMemory int64

	// AllowedOrigins configures CORS; empty allows every origin
	AllowedOrigins []string

	// AccessLog wraps every request, e.g. httplog.RequestLogger
	AccessLog func(http.Handler) http.Handler

	// Metrics serves /metrics when set
	Metrics http.Handler

	// Objects serves stored objects under /objects when set, for the fs driver
	Objects http.Handler

	// ReadyChecks run on /healthz/ready in addition to the service ping
	ReadyChecks []func(context.Context) error
}

// NewRouter builds the root router with middleware, health and file routes
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	if cfg.AccessLog != nil {
		r.Use(cfg.AccessLog)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"message": MsgWelcome})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := append([]func(context.Context) error{cfg.Service.Ping}, cfg.ReadyChecks...)
		for _, check := range checks {
			if err := check(ctx); err != nil {
				logger.ErrorContext(r.Context(), "Readiness check failed", "request_id", RequestID(r.Context()), "error", err)
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, map[string]string{"status": "unavailable"})
				return
			}
		}
		render.JSON(w, r, map[string]string{"status": "ready"})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.Objects != nil {
		r.Mount("/objects", http.StripPrefix("/objects", cfg.Objects))
	}

	r.Mount("/file", NewFilesHandler(cfg.Service, logger, cfg.MultipartMemory).Routes())

	return r
}
