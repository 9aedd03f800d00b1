package logger

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys used in logging
type ContextKey string

const (
	// LeadIDKey is the context key for lead_id
	LeadIDKey ContextKey = "lead_id"
	// CorrelationIDKey is the context key for correlation_id
	CorrelationIDKey ContextKey = "correlation_id"
)

var defaultLogger = logrus.New()

// Init initializes the global structured logger
func Init(level, format string) {
	if format == "text" {
		defaultLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		defaultLogger.SetFormatter(&logrus.JSONFormatter{})
	}
	defaultLogger.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	defaultLogger.SetLevel(parsed)
}

// WithContext creates an entry carrying context values (lead_id, correlation_id)
func WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(defaultLogger)

	if leadID, ok := ctx.Value(LeadIDKey).(int64); ok {
		entry = entry.WithField("lead_id", leadID)
	}

	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok {
		entry = entry.WithField("correlation_id", correlationID)
	}

	return entry
}

// fields converts alternating key/value args into logrus fields
func fields(args []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

// Info logs an info message with context
func Info(ctx context.Context, msg string, args ...interface{}) {
	WithContext(ctx).WithFields(fields(args)).Info(msg)
}

// Error logs an error message with context
func Error(ctx context.Context, msg string, args ...interface{}) {
	WithContext(ctx).WithFields(fields(args)).Error(msg)
}

// Warn logs a warning message with context
func Warn(ctx context.Context, msg string, args ...interface{}) {
	WithContext(ctx).WithFields(fields(args)).Warn(msg)
}

// Debug logs a debug message with context
func Debug(ctx context.Context, msg string, args ...interface{}) {
	WithContext(ctx).WithFields(fields(args)).Debug(msg)
}

// LogError logs an error with its message attached as a field
func LogError(ctx context.Context, msg string, err error, args ...interface{}) {
	WithContext(ctx).WithFields(fields(args)).WithError(err).Error(msg)
}

// LogStatusTransition logs an enrollment or lead status transition
func LogStatusTransition(ctx context.Context, entity string, id int64, oldStatus, newStatus string) {
	WithContext(ctx).WithFields(logrus.Fields{
		"entity":     entity,
		"entity_id":  id,
		"old_status": oldStatus,
		"new_status": newStatus,
	}).Info("Status transition")
}

// LogSlowOperation logs operations that exceed the threshold
func LogSlowOperation(ctx context.Context, operation string, duration time.Duration) {
	if duration > time.Second {
		WithContext(ctx).WithFields(logrus.Fields{
			"operation":   operation,
			"duration_ms": duration.Milliseconds(),
		}).Warn("Slow operation detected")
	}
}
