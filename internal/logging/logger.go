// internal/logging/logger.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the observerd logger. Every method takes the request context so
// session, user and document ids follow an event through ingestion and
// reduction without being passed by hand.
type Logger struct {
	zap *zap.Logger
}

// NewLogger builds a logger writing to stdout and, when otelProvider is
// non-nil and cfg.Output.OTEL is set, to the OpenTelemetry log pipeline.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	core, err := newDualCore(cfg, otelProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	var opts []zap.Option
	if cfg.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip))
	}
	if cfg.Stacktrace.Level != 0 {
		opts = append(opts, zap.AddStacktrace(cfg.Stacktrace.Level))
	}

	base := make([]zap.Field, 0, len(cfg.Fields))
	for k, v := range cfg.Fields {
		base = append(base, zap.String(k, v))
	}
	return &Logger{zap: zap.New(core, opts...).With(base...)}, nil
}

// NewNop returns a logger that discards everything. Packages use it when no
// logger option was given.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// emit prepends the context ids. Check first so disabled levels cost no
// field allocation on the per-keystroke path.
func (l *Logger) emit(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	if ce := l.zap.Check(level, msg); ce != nil {
		ce.Write(append(ContextFields(ctx), fields...)...)
	}
}

// Trace logs per-reducer detail, below Debug.
func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	l.emit(ctx, TraceLevel, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.emit(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.emit(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.emit(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.emit(ctx, zapcore.ErrorLevel, msg, fields)
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Named returns a child logger for one component ("http", "ingest").
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. Terminal stdout cannot be synced on Linux;
// that error is swallowed.
func (l *Logger) Sync() error {
	if err := l.zap.Sync(); err != nil && !isStdoutSyncError(err) {
		return err
	}
	return nil
}

func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY)
}
