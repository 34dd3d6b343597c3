package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel names a minimum severity.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level      LogLevel
	Format     string // "json" or "text"
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultLoggerConfig is JSON to stdout at info, with source locations.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      LevelInfo,
		Format:     "json",
		Output:     os.Stdout,
		AddSource:  true,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with solver-specific event helpers.
type Logger struct {
	*slog.Logger
	config *LoggerConfig
}

// NewLogger builds a structured logger from config (nil gets defaults).
func NewLogger(config *LoggerConfig) *Logger {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	level, ok := slogLevels[config.Level]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: config.AddSource}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(config.Output, opts)
	} else {
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	return &Logger{Logger: slog.New(handler), config: config}
}

// WithContext attaches request-scoped identifiers carried in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{Logger: l.Logger.With(contextFields(ctx)...), config: l.config}
}

// WithFields attaches a set of fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.Logger.With(args...), config: l.config}
}

// WithField attaches one field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(key, value), config: l.config}
}

// LogError logs err at error level with extra fields.
func (l *Logger) LogError(err error, message string, fields map[string]interface{}) {
	args := []interface{}{"error", err}
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.Error(message, args...)
}

// LogAudit records one audit-trail line.
func (l *Logger) LogAudit(action, resource, resourceID, userID string, fields map[string]interface{}) {
	args := []interface{}{
		"audit_type", "security",
		"action", action,
		"resource", resource,
		"resource_id", resourceID,
		"user_id", userID,
	}
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.Info("audit event", args...)
}

// LogSolveRun records the outcome of one solve run: how long the search
// ran, how many generations it got through, and the best accepted cost.
func (l *Logger) LogSolveRun(runID, status string, generations int64, bestCost float64, took time.Duration) {
	args := []interface{}{
		"run_id", runID,
		"status", status,
		"generations", generations,
		"best_cost", bestCost,
		"duration_ms", took.Milliseconds(),
	}
	if status == "failed" {
		l.Error("solve run finished", args...)
		return
	}
	l.Info("solve run finished", args...)
}

func contextFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)
	if requestID := ctx.Value("request_id"); requestID != nil {
		fields = append(fields, "request_id", requestID)
	}
	if userID := ctx.Value("user_id"); userID != nil {
		fields = append(fields, "user_id", userID)
	}
	if runID := ctx.Value("run_id"); runID != nil {
		fields = append(fields, "run_id", runID)
	}
	return fields
}

var defaultLogger *Logger

// InitDefaultLogger sets the package-level logger.
func InitDefaultLogger(config *LoggerConfig) {
	defaultLogger = NewLogger(config)
}

// GetLogger returns the package-level logger, creating it on first use.
func GetLogger() *Logger {
	if defaultLogger == nil {
		defaultLogger = NewLogger(DefaultLoggerConfig())
	}
	return defaultLogger
}

func Debug(msg string, args ...interface{}) { GetLogger().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { GetLogger().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { GetLogger().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { GetLogger().Error(msg, args...) }

// WithFields returns the package-level logger with fields attached.
func WithFields(fields map[string]interface{}) *Logger {
	return GetLogger().WithFields(fields)
}

// WithField returns the package-level logger with one field attached.
func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}
