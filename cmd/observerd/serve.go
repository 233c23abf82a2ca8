package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/analysis"
	"github.com/fyrsmithlabs/observerd/internal/config"
	httpserver "github.com/fyrsmithlabs/observerd/internal/http"
	"github.com/fyrsmithlabs/observerd/internal/ingest"
	"github.com/fyrsmithlabs/observerd/internal/stream"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the observerd server",
		Long: `Start the HTTP server that ingests events and serves dashboards.

Examples:
  # In-memory state on 127.0.0.1:8888
  observerd serve

  # Redis-backed state
  OBSERVERD_STORE_BACKEND=redis OBSERVERD_STORE_REDIS_ADDR=localhost:6379 observerd serve

  # Single node with embedded NATS and live dashboards
  OBSERVERD_STORE_BACKEND=nats OBSERVERD_STORE_NATS_EMBEDDED=true OBSERVERD_INGEST_PUBLISH=true observerd serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

// run starts observerd and blocks until ctx is cancelled.
//
// This function:
//  1. Initializes logger and telemetry
//  2. Connects to infrastructure (NATS, state store)
//  3. Builds the ingest service over the writing reducers
//  4. Starts the HTTP server
//  5. Shuts down gracefully on context cancellation
func run(ctx context.Context, cfg *config.Config) error {
	obs, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	logger := obs.logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		obs.Close(shutdownCtx)
	}()

	logger.Info(ctx, "starting observerd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Backend),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	ingestOpts := []ingest.Option{
		ingest.WithLogger(logger.Named("ingest")),
		ingest.WithMetrics(stream.NewMetrics()),
		ingest.WithTracer(obs.tel.Tracer(stream.InstrumentationName)),
	}
	if cfg.Ingest.Publish {
		ingestOpts = append(ingestOpts, ingest.WithPublisher(ingest.NewNATSPublisher(deps.natsConn, cfg.Dashboard.SubjectPrefix)))
	}
	svc, err := ingest.NewService(deps.store, analysis.Registrations(cfg.Reducers), cfg.Ingest, ingestOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize ingest: %w", err)
	}

	serverOpts := []httpserver.Option{
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(obs.tel.Meter(httpserver.InstrumentationName), logger)),
	}
	if deps.natsConn != nil {
		serverOpts = append(serverOpts, httpserver.WithNATS(deps.natsConn))
	}
	srv, err := httpserver.NewServer(svc, logger.Named("http"), &httpserver.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		SubjectPrefix: cfg.Dashboard.SubjectPrefix,
		Client:        cfg.Client,
	}, serverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

// waitReady polls url until it answers 200 or timeout passes.
func waitReady(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s not ready after %s", url, timeout)
}
