package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type userCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := UserIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("user.id", id))
	}

	return fields
}

// validID reports whether id is safe to emit as a log field.
func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && utf8.ValidString(id) && idPattern.MatchString(id)
}

// WithUserID adds the authenticated user to context.
// Invalid ids are dropped so untrusted input never reaches log output.
func WithUserID(ctx context.Context, userID string) context.Context {
	if !validID(userID) {
		return ctx
	}
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserIDFromContext extracts the user id from context.
func UserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithRequestID adds the request id to context. Invalid ids are dropped.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !validID(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

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
