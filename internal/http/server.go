// Package http provides the observerd HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/fyrsmithlabs/observerd/internal/ingest"
	"github.com/fyrsmithlabs/observerd/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// UserHeader carries the safe user id resolved by the upstream auth proxy.
const UserHeader = "X-Safe-User-Id"

// Server provides HTTP endpoints for observerd.
type Server struct {
	echo     *echo.Echo
	ingest   *ingest.Service
	nc       *nats.Conn
	gatherer prometheus.Gatherer
	metrics  *HTTPMetrics
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host          string
	Port          int
	BodyLimit     string
	SubjectPrefix string
	Heartbeat     time.Duration
	Client        config.ClientConfig
}

// Option configures a Server.
type Option func(*Server)

// WithNATS enables the live dashboard stream.
func WithNATS(nc *nats.Conn) Option {
	return func(s *Server) { s.nc = nc }
}

// WithGatherer sets the registry served at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHTTPMetrics records OpenTelemetry request metrics.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new HTTP server.
func NewServer(svc *ingest.Service, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("ingest service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8888,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "4M"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "dashboard"
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}

	s := &Server{
		ingest:   svc,
		gatherer: prometheus.DefaultGatherer,
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s.echo = e
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/config.json", s.handleClientConfig)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/events", s.handleEvents)
	v1.GET("/events/ws", s.handleEventsWS)
	v1.GET("/dashboard/:user", s.handleDashboard)
	v1.GET("/dashboard/:user/stream", s.handleDashboardStream)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleClientConfig(c echo.Context) error {
	cc := s.config.Client
	return c.JSON(http.StatusOK, ClientConfigResponse{
		Mode: "server",
		Modules: map[string]map[string]any{
			"wobserver": {"hide-labels": cc.HideLabels},
		},
		GoogleOAuth:   cc.GoogleOAuth,
		PasswordAuth:  cc.PasswordAuth,
		HTTPBasicAuth: cc.HTTPBasicAuth,
		Theme:         cc.Theme,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
