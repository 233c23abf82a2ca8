package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/fyrsmithlabs/observerd/internal/logging"
	"github.com/fyrsmithlabs/observerd/internal/telemetry"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// observability holds the logger and telemetry providers.
type observability struct {
	logger *logging.Logger
	tel    *telemetry.Telemetry
}

func initObservability(ctx context.Context, cfg *config.Config) (*observability, error) {
	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromObservability(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &observability{logger: logger, tel: tel}, nil
}

// Close flushes telemetry and logs.
func (o *observability) Close(ctx context.Context) {
	if err := o.tel.Shutdown(ctx); err != nil {
		o.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	_ = o.logger.Sync()
}

// dependencies holds all infrastructure dependencies.
type dependencies struct {
	natsServer *natsserver.Server
	natsConn   *nats.Conn
	store      kvs.Store
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.natsServer != nil {
		d.natsServer.Shutdown()
	}
}

// needsNATS reports whether any configured component talks to NATS.
func needsNATS(cfg *config.Config) bool {
	return cfg.Store.Backend == config.BackendNATS || cfg.Ingest.Publish || cfg.Store.NATS.Embedded
}

// initDependencies connects to NATS when needed and opens the state store.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if needsNATS(cfg) {
		url := cfg.Store.NATS.URL
		if cfg.Store.NATS.Embedded {
			ns, err := kvs.StartEmbeddedNATS(kvs.EmbeddedOptions{StoreDir: cfg.Store.NATS.StoreDir})
			if err != nil {
				return nil, err
			}
			deps.natsServer = ns
			url = ns.ClientURL()
			logger.Info(ctx, "embedded nats started", zap.String("url", url))
		}

		nc, err := nats.Connect(url,
			nats.Name("observerd"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
		}
		deps.natsConn = nc
		logger.Info(ctx, "connected to nats", zap.String("url", url))
	}

	store, err := kvs.Open(ctx, cfg.Store, deps.natsConn)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	deps.store = store
	logger.Info(ctx, "state store ready", zap.String("backend", cfg.Store.Backend))

	return deps, nil
}
