// Package main provides the entry point for the migration API server.
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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitmaskhq/migration-api/internal/admin"
	"github.com/bitmaskhq/migration-api/internal/analytics"
	"github.com/bitmaskhq/migration-api/internal/api"
	"github.com/bitmaskhq/migration-api/internal/config"
	"github.com/bitmaskhq/migration-api/internal/metrics"
	"github.com/bitmaskhq/migration-api/internal/middleware"
	"github.com/bitmaskhq/migration-api/internal/migrate"
	"github.com/bitmaskhq/migration-api/internal/storage"
	"github.com/bitmaskhq/migration-api/internal/verify"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migration-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(parseLogLevel(cfg.LogLevel))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("migration API starting",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"database_path", cfg.DatabasePath,
		"dev_mode", cfg.DevMode,
	)

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if cfg.BootstrapAdminEmail != "" {
		code, err := admin.Bootstrap(context.Background(), store, cfg.BootstrapAdminEmail)
		if err != nil {
			return err
		}
		if code != "" {
			// Shown once; operators must store it now.
			logger.Info("bootstrap superadmin created", "email", cfg.BootstrapAdminEmail)
			fmt.Printf("Bootstrap superadmin %s access code: %s\n", cfg.BootstrapAdminEmail, code)
		}
	}

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}

	limiter := middleware.NewRateLimiter()
	defer limiter.Close()

	pipeline := verify.NewPipeline(store, logger)
	service := migrate.NewService(store, pipeline, logger)
	aggregator := analytics.NewAggregator(store)

	publicHandler := api.NewHandler(pipeline, service, store, logger)
	adminHandler := admin.NewHandler(store, aggregator, logLevel, logger, cfg.DevMode)

	root := chi.NewRouter()
	root.Use(chimw.Recoverer)
	root.Use(metrics.Middleware)
	root.Mount("/admin", adminHandler.NewRouter(limiter))
	root.Mount("/", api.NewRouter(publicHandler, limiter, logger))

	apiServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("API listener started", "addr", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("API server failed: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listener started", "addr", cfg.MetricsListenAddr)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
