package logging

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/logger"
)

// SlowQueryLogger adapts Logger to gorm's logger.Interface so queries
// against the problem/solution tables surface in the same structured
// stream as everything else. Queries past slowThreshold log at warn.
type SlowQueryLogger struct {
	logger        *Logger
	slowThreshold time.Duration
	logLevel      logger.LogLevel
}

func NewSlowQueryLogger(log *Logger, slowThreshold time.Duration) *SlowQueryLogger {
	return &SlowQueryLogger{
		logger:        log,
		slowThreshold: slowThreshold,
		logLevel:      logger.Warn,
	}
}

func (l *SlowQueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *SlowQueryLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *SlowQueryLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *SlowQueryLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs failed queries at error, slow queries at warn, and the rest
// at debug when the level allows it.
func (l *SlowQueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := map[string]interface{}{
		"duration_ms": elapsed.Milliseconds(),
		"rows":        rows,
	}
	if requestID := ctx.Value("request_id"); requestID != nil {
		fields["request_id"] = requestID
	}

	switch {
	case err != nil && l.logLevel >= logger.Error:
		fields["error"] = err
		l.logger.WithFields(fields).Error("query failed: " + sql)
	case elapsed > l.slowThreshold:
		fields["threshold_ms"] = l.slowThreshold.Milliseconds()
		l.logger.WithFields(fields).Warn("slow query: " + sql)
	case l.logLevel >= logger.Info:
		l.logger.WithFields(fields).Debug("query: " + sql)
	}
}
