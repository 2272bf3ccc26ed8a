package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns ctx carrying logger for FromContext.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogMutation logs a successful create/update/delete against the budget API.
func (sl *StructuredLogger) LogMutation(ctx context.Context, op, resource string, id int64) {
	fields := NewFields().
		WithResource(resource, id).
		WithOperation(op).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.InfoContext(ctx, "Mutation succeeded", fields.ToSlice()...)
}

// LogAuthDecision logs the gate's verdict for one navigation.
func (sl *StructuredLogger) LogAuthDecision(ctx context.Context, path string, signedIn bool, redirect string) {
	fields := NewFields().
		WithOperation(OpResolve).
		WithComponent(ComponentAuth)
	fields[FieldPath] = path
	fields[FieldSignedIn] = signedIn
	if redirect != "" {
		fields[FieldRedirect] = redirect
	}

	sl.logger.Logger.DebugContext(ctx, "Auth gate decision", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
