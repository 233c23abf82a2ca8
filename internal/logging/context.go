// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if userID := UserIDFromContext(ctx); userID != "" {
		fields = append(fields, zap.String("user.id", userID))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}
	if docID := DocumentIDFromContext(ctx); docID != "" {
		fields = append(fields, zap.String("doc.id", docID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}
	return fields
}

type userCtxKey struct{}
type sessionCtxKey struct{}
type documentCtxKey struct{}
type requestCtxKey struct{}

const maxIDLen = 128

// idPattern allows alphanumeric, hyphen, underscore.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateID validates a server-generated session or request ID.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// clientID reports whether a client-supplied identifier is fit to log.
// Safe user ids and Google doc ids are opaque, so only size and encoding are checked.
func clientID(id string) bool {
	return id != "" && len(id) <= maxIDLen && utf8.ValidString(id)
}

// WithUserID adds the safe user id to context. Unloggable ids are dropped.
func WithUserID(ctx context.Context, userID string) context.Context {
	if !clientID(userID) {
		return ctx
	}
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserIDFromContext extracts the safe user id from context.
func UserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithDocumentID adds a document id to context. Unloggable ids are dropped.
func WithDocumentID(ctx context.Context, docID string) context.Context {
	if !clientID(docID) {
		return ctx
	}
	return context.WithValue(ctx, documentCtxKey{}, docID)
}

// DocumentIDFromContext extracts the document id from context.
func DocumentIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(documentCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSessionID adds session ID to context.
// Panics if sessionID is empty or contains invalid characters.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if err := validateID(sessionID, "sessionID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext extracts session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithRequestID adds request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
