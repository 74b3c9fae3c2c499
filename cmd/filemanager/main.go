package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/joho/godotenv"
	"github.com/tendant/filemanager/pkg/filemanager"
	"github.com/tendant/filemanager/pkg/filemanager/api"
	"github.com/tendant/filemanager/pkg/filemanager/config"
	"github.com/tendant/filemanager/pkg/filemanager/metrics"
	"github.com/tendant/filemanager/pkg/filemanager/reconcile"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// pinger is implemented by object stores that can verify their bucket
type pinger interface {
	Ping(ctx context.Context) error
}

func run() error {
	// A missing .env file is fine; the environment may be set directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("filemanager", httplog.Options{
		JSON:     cfg.IsProduction(),
		LogLevel: level,
		Concise:  true,
	})
	slog.SetDefault(logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := cfg.BuildRepository(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer closeRepo()

	store, err := cfg.BuildObjectStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	m := metrics.New()

	opts := append(cfg.ServiceOptions(),
		filemanager.WithRepository(repo),
		filemanager.WithObjectStore(store),
		filemanager.WithHooks(m),
		filemanager.WithLogger(logger.Logger),
	)
	svc, err := filemanager.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if cfg.ReconcileSchedule != "" {
		sweeper := reconcile.NewSweeper(repo, store,
			reconcile.WithLogger(logger.Logger),
			reconcile.WithObserver(func(r *reconcile.Report) {
				m.ObserveReconcile(len(r.Orphans), len(r.Dangling), len(r.Unparseable))
			}),
		)
		c, err := reconcile.Schedule(ctx, cfg.ReconcileSchedule, sweeper)
		if err != nil {
			return err
		}
		defer c.Stop()
		slog.Info("Reconcile scheduled", "schedule", cfg.ReconcileSchedule)
	}

	var readyChecks []func(context.Context) error
	if p, ok := store.(pinger); ok {
		readyChecks = append(readyChecks, p.Ping)
	}

	var objects http.Handler
	if cfg.StorageDriver == config.DriverFS {
		objects = http.FileServer(http.Dir(cfg.FS.BaseDir))
	}

	router := api.NewRouter(api.RouterConfig{
		Service:         svc,
		Logger:          logger.Logger,
		MultipartMemory: cfg.MultipartMemory,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		AccessLog:       httplog.RequestLogger(logger, []string{"/healthz", "/healthz/ready", "/metrics"}),
		Metrics:         m.Handler(),
		Objects:         objects,
		ReadyChecks:     readyChecks,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Middleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"storage_driver", cfg.StorageDriver,
			"postgres", cfg.UsesPostgres())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server exiting")
	return nil
}
