// Package main is the entry point for an EpiGrid clinic node.
//
// It assembles the local record log, risk scorer, Laplace mechanism, and the
// background delivery dispatcher behind the shared HTTP chassis. The node
// requires an identity and a coordinate from the environment; everything
// else falls back to defaults.
//
// Raw symptom records never leave this process. Only noised window
// aggregates are pushed to the collector, and the push path is
// fire-and-forget: a dead collector never blocks intake.
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
	"epigrid/internal/metrics"
	"epigrid/internal/node"
	"epigrid/internal/privacy"
	"epigrid/internal/risk"
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
	if err := cfg.ValidateNode(); err != nil {
		return fmt.Errorf("validating node configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("clinic node starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"node_id", cfg.Node.ID,
		"port", cfg.Server.NodePort,
		"aggregator_url", cfg.Node.AggregatorURL,
	)

	registry := prometheus.NewRegistry()
	instruments := metrics.NewCollector(registry)

	clock := types.RealClock{}
	mech := privacy.NewMechanism(privacy.Params{
		Epsilon:     cfg.Privacy.Epsilon,
		Sensitivity: cfg.Privacy.Sensitivity,
	})
	clinic := node.New(cfg.Node.ID, types.Location{
		Lat:         cfg.Node.Lat,
		Lon:         cfg.Node.Lon,
		DisplayName: cfg.Node.DisplayName,
	}, risk.NewScorer(), mech, clock)

	pusher := node.NewPusher(cfg.Node.AggregatorURL, nil, cfg.Node.PushTimeout)
	dispatcher := node.NewDispatcher(node.DispatcherConfig{
		Builder:   clinic,
		Sender:    pusher,
		Window:    cfg.Node.ReportWindow,
		QueueSize: cfg.Node.QueueSize,
		Logger:    logger,
		Observer:  instruments,
	})
	dispatcher.Start()

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = instruments
	srv.Limiter = core.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)
	srv.HealthProbes = []core.HealthProbe{
		&handlers.NodeProbe{Node: clinic},
		&handlers.DeliveryProbe{Dispatcher: dispatcher, Pusher: pusher},
	}

	nodeHandler := handlers.NewNodeHandler(handlers.NodeHandlerConfig{
		Intake:     clinic,
		Dispatcher: dispatcher,
		Builder:    clinic,
		Sender:     pusher,
		Window:     cfg.Node.ReportWindow,
		Validator:  srv.Validator,
		Metrics:    instruments,
		Logger:     logger,
	})
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, nodeHandler.RegisterRoutes)

	srv.MountRoutes()
	srv.Router().Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return serve(srv, dispatcher, cfg.Server.NodePort, cfg.Server.ShutdownGrace, logger)
}

// serve runs the HTTP server until a shutdown signal or listener error, then
// drains requests and the delivery dispatcher in that order.
func serve(srv *core.Server, dispatcher *node.Dispatcher, port string, grace time.Duration, logger *slog.Logger) error {
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
	if err := dispatcher.Shutdown(ctx); err != nil {
		logger.Error("delivery dispatcher shutdown error", "error", err)
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
