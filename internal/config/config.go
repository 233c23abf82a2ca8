// Package config provides configuration loading for observerd.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then OBSERVERD_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Store backends understood by the kvs factory.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

// Config holds the complete observerd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Store         StoreConfig         `koanf:"store"`
	Reducers      ReducersConfig      `koanf:"reducers"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Dashboard     DashboardConfig     `koanf:"dashboard"`
	Client        ClientConfig        `koanf:"client"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig selects and configures the reducer state store.
type StoreConfig struct {
	Backend string           `koanf:"backend"`
	TTL     Duration         `koanf:"ttl"` // 0 keeps state forever
	Redis   RedisStoreConfig `koanf:"redis"`
	NATS    NATSStoreConfig  `koanf:"nats"`
}

// RedisStoreConfig configures the Redis backend.
type RedisStoreConfig struct {
	Addr     string `koanf:"addr"`
	Password Secret `koanf:"password"`
	DB       int    `koanf:"db"`
}

// NATSStoreConfig configures the NATS JetStream key-value backend and the
// connection used to fan projections out to dashboards.
type NATSStoreConfig struct {
	URL      string `koanf:"url"`
	Bucket   string `koanf:"bucket"`
	Embedded bool   `koanf:"embedded"` // run an in-process nats-server
	StoreDir string `koanf:"store_dir"`
}

// ReducersConfig tunes the writing-analysis reducers.
type ReducersConfig struct {
	TimeOnTaskThreshold Duration `koanf:"time_on_task_threshold"`
	TypingThreshold     Duration `koanf:"typing_threshold"`
	DefaultFrames       int      `koanf:"default_frames"`
}

// IngestConfig bounds event ingestion per session.
type IngestConfig struct {
	RateLimit float64 `koanf:"rate_limit"` // events per second, 0 disables
	Burst     int     `koanf:"burst"`
	Publish   bool    `koanf:"publish"` // fan projections out over NATS
	MaxBatch  int     `koanf:"max_batch"`
}

// DashboardConfig configures live projection streaming.
type DashboardConfig struct {
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ClientConfig is served verbatim-ish to browser clients at /config.json.
type ClientConfig struct {
	Theme         string `koanf:"theme"`
	HideLabels    bool   `koanf:"hide_labels"`
	GoogleOAuth   bool   `koanf:"google_oauth"`
	PasswordAuth  bool   `koanf:"password_auth"`
	HTTPBasicAuth bool   `koanf:"http_basic_auth"`
}

// ObservabilityConfig holds logging and OpenTelemetry settings.
type ObservabilityConfig struct {
	ServiceName     string  `koanf:"service_name"`
	LogLevel        string  `koanf:"log_level"`
	LogFormat       string  `koanf:"log_format"`
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8888,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis: RedisStoreConfig{
				Addr: "localhost:6379",
			},
			NATS: NATSStoreConfig{
				URL:    "nats://localhost:4222",
				Bucket: "observerd_state",
			},
		},
		Reducers: ReducersConfig{
			// 60-300s is more reasonable in production; 5s is convenient
			// while debugging a live session.
			TimeOnTaskThreshold: Duration(5 * time.Second),
			TypingThreshold:     Duration(5 * time.Second),
			DefaultFrames:       4,
		},
		Ingest: IngestConfig{
			RateLimit: 200,
			Burst:     400,
			MaxBatch:  1000,
		},
		Dashboard: DashboardConfig{
			SubjectPrefix: "dashboard",
		},
		Client: ClientConfig{
			Theme: "default",
		},
		Observability: ObservabilityConfig{
			ServiceName:  "observerd",
			LogLevel:     "info",
			LogFormat:    "json",
			OTLPEndpoint: "localhost:4317",
			OTLPProtocol: "grpc",
			SamplingRate: 1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	case BackendNATS:
		if c.Store.NATS.Bucket == "" {
			return errors.New("store.nats.bucket is required for the nats backend")
		}
		if c.Store.NATS.URL == "" && !c.Store.NATS.Embedded {
			return errors.New("store.nats.url is required unless store.nats.embedded is set")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want memory, redis or nats)", c.Store.Backend)
	}

	if c.Reducers.TimeOnTaskThreshold <= 0 {
		return errors.New("reducers.time_on_task_threshold must be positive")
	}
	if c.Reducers.TypingThreshold <= 0 {
		return errors.New("reducers.typing_threshold must be positive")
	}
	if c.Reducers.DefaultFrames < 0 {
		return fmt.Errorf("reducers.default_frames must be >= 0, got %d", c.Reducers.DefaultFrames)
	}

	if c.Ingest.RateLimit < 0 {
		return fmt.Errorf("ingest.rate_limit must be >= 0, got %v", c.Ingest.RateLimit)
	}
	if c.Ingest.RateLimit > 0 && c.Ingest.Burst < 1 {
		return errors.New("ingest.burst must be >= 1 when rate limiting is enabled")
	}
	if c.Ingest.MaxBatch < 1 {
		return fmt.Errorf("ingest.max_batch must be >= 1, got %d", c.Ingest.MaxBatch)
	}
	if c.Ingest.Publish && c.Dashboard.SubjectPrefix == "" {
		return errors.New("dashboard.subject_prefix is required when ingest.publish is set")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}
