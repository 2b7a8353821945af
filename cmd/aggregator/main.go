// Package main is the entry point for the EpiGrid collector.
//
// It assembles the aggregate store, spatial summarizer, forecast engine, and
// archive exporter behind the shared HTTP chassis, then serves the collector
// API with Prometheus metrics and graceful shutdown on SIGINT/SIGTERM.
//
// The collector only ever sees noised aggregates; raw symptom records stay
// on the clinic nodes.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"epigrid/internal/api/handlers"
	"epigrid/internal/config"
	"epigrid/internal/core"
	"epigrid/internal/export"
	"epigrid/internal/forecasts"
	"epigrid/internal/metrics"
	"epigrid/internal/spatial"
	"epigrid/internal/store"
	"epigrid/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("collector starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	registry := prometheus.NewRegistry()
	instruments := metrics.NewCollector(registry)

	clock := types.RealClock{}
	aggStore := store.New(clock)
	summaries := spatial.NewAggregator(aggStore)
	engine := forecasts.NewEngine(aggStore, forecasts.Config{
		MinHistory:      cfg.Forecast.MinHistory,
		BootstrapTarget: cfg.Forecast.BootstrapTarget,
		Confidence:      cfg.Forecast.Confidence,
		FitConcurrency:  cfg.Forecast.FitConcurrency,
	}, clock, logger, instruments)
	exporter := export.NewExporter(aggStore, clock)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = instruments
	srv.Limiter = core.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)
	srv.HealthProbes = []core.HealthProbe{
		&handlers.StoreProbe{Store: aggStore},
		&handlers.ForecastProbe{Engine: engine},
	}

	aggregateHandler := handlers.NewAggregateHandler(aggStore, srv.Validator, instruments, logger)
	statsHandler := handlers.NewStatsHandler(summaries, cfg.Stats.RecentWindow, logger)
	forecastHandler := handlers.NewForecastHandler(engine, logger)
	exportHandler := handlers.NewExportHandler(exporter, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		aggregateHandler.RegisterRoutes,
		statsHandler.RegisterRoutes,
		forecastHandler.RegisterRoutes,
		exportHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	srv.Router().Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return serve(srv, cfg.Server.Port, cfg.Server.ShutdownGrace, logger)
}

// serve runs the HTTP server until a shutdown signal or listener error.
func serve(srv *core.Server, port string, grace time.Duration, logger *slog.Logger) error {
	addr := ":" + port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
