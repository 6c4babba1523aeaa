// Package main is the entry point for the Growgent map API server.
//
// It loads the configuration, wires the zone store, the backend client, the
// optional SQS and CloudWatch integrations and the HTTP handlers, and serves
// until SIGINT or SIGTERM. On shutdown, open map sessions are cancelled
// before the server resources are released.
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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"growgent/internal/api/handlers"
	"growgent/internal/backend"
	"growgent/internal/config"
	"growgent/internal/core"
	"growgent/internal/db"
	"growgent/internal/queue"
	"growgent/internal/zones"
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
	logger.Info("growgent map API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"zone_store", cfg.Zones.Store,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return runHTTPServer(ctx, srv, cfg, logger)
}

// buildServer wires every dependency into a mounted core.Server. ctx bounds
// the lifetime of map sessions and background workers.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	repo, err := newZoneRepository(ctx, cfg, srv)
	if err != nil {
		return nil, err
	}

	var awsCfg aws.Config
	if cfg.AWS.ZoneEventsQueue != "" || cfg.Observability.MetricsEnabled {
		awsCfg, err = loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
	}

	var publisher zones.EventPublisher
	if cfg.AWS.ZoneEventsQueue != "" {
		publisher = queue.NewZonePublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.ZoneEventsQueue, logger)
	}

	if cfg.Observability.MetricsEnabled {
		metrics := core.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
		go metrics.Run(ctx)
		srv.Metrics = metrics
		srv.Closers = append(srv.Closers, func(ctx context.Context) error {
			metrics.Flush(ctx)
			return nil
		})
	}

	client := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.URL,
		Timeout:   cfg.Backend.Timeout,
		Retry:     backend.RetryPolicy{Attempts: cfg.Backend.RetryAttempts, Backoff: cfg.Backend.RetryBackoff},
		UserAgent: cfg.Backend.UserAgent,
	}, logger)
	srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("backend", client.Health))
	srv.RateLimitStore = core.NewMemoryRateLimitStore()

	zoneSvc := zones.NewService(repo, publisher, cfg.Map.Center(), logger)

	zoneHandler := handlers.NewZoneHandler(zoneSvc, srv.Validator, logger)
	mapHandler := handlers.NewMapHandler(ctx, client, zoneSvc, handlers.MapSettings{
		FarmID:   cfg.Backend.FarmID,
		StyleURL: cfg.Map.StyleURL,
		Center:   cfg.Map.Center(),
		Zoom:     cfg.Map.Zoom,
		Palette:  cfg.Map.Palette,
		Tiles:    cfg.Map.Tiles(),
		Layers:   cfg.Map.Layers,
	}, cfg.Security.CorsAllowedOrigins, logger)
	dashboardHandler := handlers.NewDashboardHandler(client, cfg.Backend.FarmID, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { zoneHandler.RegisterRoutes(r) },
		func(r chi.Router) { mapHandler.RegisterRoutes(r) },
		func(r chi.Router) { dashboardHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()
	return srv, nil
}

// newZoneRepository selects the zone store. The postgres store registers its
// pool for health checks and shutdown on srv.
func newZoneRepository(ctx context.Context, cfg *config.Config, srv *core.Server) (zones.ZoneRepository, error) {
	if cfg.Zones.Store != config.ZoneStorePostgres {
		return zones.NewMemoryRepository(), nil
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to zone database: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("database", pool.Ping))
	srv.Closers = append(srv.Closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	return db.NewZoneRepository(pool), nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	// LocalStack
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// runHTTPServer serves until ctx is cancelled or the listener fails, then
// shuts down gracefully. Map sessions observe the same ctx and close first.
//
// No read or write timeout is set on the server: it would apply to hijacked
// WebSocket connections. Request handlers are bounded by the ContextTimeout
// middleware instead.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
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
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
