package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicdocs/internal/api"
	"clinicdocs/internal/auth"
	"clinicdocs/internal/calc"
	"clinicdocs/internal/config"
	"clinicdocs/internal/db"
	"clinicdocs/internal/jobs"
	"clinicdocs/internal/prefill"
	"clinicdocs/internal/pubsub"
	"clinicdocs/internal/schema"
	"clinicdocs/internal/service"
	"clinicdocs/internal/storage"
	"clinicdocs/internal/submission"
	"clinicdocs/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runServer(cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	dbPool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	artifacts, err := storage.NewLocalStorage(cfg.StorageDir, cfg.StorageBaseURL)
	if err != nil {
		return err
	}

	bus := pubsub.New(rdb, logger)
	calculator := calc.New(nil)

	// WebSocket hub
	hub := ws.NewHub(calculator, logger)
	go hub.Run()
	bus.SetWSHub(hub)

	// Background jobs
	renderer := jobs.NewRenderer(dbPool.Queries, artifacts, bus, logger)
	jobServer, jobClient := jobs.NewJobServer(cfg.RedisAddr, renderer, logger)
	go func() {
		if err := jobServer.Start(); err != nil {
			logger.Error("Job server failed", zap.Error(err))
		}
	}()
	defer jobServer.Stop()

	loader := prefill.NewLoader(dbPool.Queries, nil, logger)
	loader.SetDefaultPlace(cfg.ClinicPlace)
	compiler := schema.NewCompilerWithCache(cfg.SchemaCacheSize)
	submissions := submission.NewValidator(loader, compiler, calculator, logger)

	templateSvc := service.NewTemplateService(dbPool.Queries, bus, logger)
	documentSvc := service.NewDocumentService(dbPool.Queries, dbPool.Queries, loader, submissions, calculator, bus, logger)
	documentSvc.SetJobClient(service.NewAsynqJobClient(jobClient))
	hub.SetTemplateLoader(templateSvc)
	hub.SetPrefillLoader(loader)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Timeout middleware - skip for WebSocket upgrades
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, req)
				return
			}
			middleware.Timeout(60*time.Second)(next).ServeHTTP(w, req)
		})
	})

	r.Mount("/v1", api.Routes(api.Dependencies{
		Templates: templateSvc,
		Documents: documentSvc,
		Calc:      calculator,
		Hub:       hub,
		Storage:   artifacts,
		Activity:  bus.Activity(),
		JWT:       auth.NewJWTConfig(cfg.JWTSecret, cfg.IsDev()),
		Log:       logger,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("Starting server", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}
