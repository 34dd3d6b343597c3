package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLoggingMiddleware assigns each request an id and logs one line
// per request with timing and caller fields. Request bodies are never
// captured: problem documents routinely run to megabytes of JSON.
func RequestLoggingMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)

		start := time.Now()
		c.Next()
		took := time.Since(start)

		fields := map[string]interface{}{
			"request_id":    requestID,
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"query":         c.Request.URL.RawQuery,
			"status":        c.Writer.Status(),
			"duration_ms":   took.Milliseconds(),
			"client_ip":     c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
			"response_size": c.Writer.Size(),
		}
		if userID, ok := c.Get("user_id"); ok {
			fields["user_id"] = userID
		}
		if runID := c.Param("runID"); runID != "" {
			fields["run_id"] = runID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("http request")
		case c.Writer.Status() >= 400:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}

// PerformanceLoggingMiddleware warns when a request runs past threshold.
// Solve submission enqueues and returns, so even POST /solves should stay
// well under it; a slow request here means the API itself is unhealthy,
// not that a search is long.
func PerformanceLoggingMiddleware(logger *Logger, threshold time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// streaming endpoints hold the connection open on purpose
		if strings.HasSuffix(c.Request.URL.Path, "/stream") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		if took := time.Since(start); took > threshold {
			logger.Warn("slow request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"duration_ms", took.Milliseconds(),
				"threshold_ms", threshold.Milliseconds(),
				"status", c.Writer.Status(),
			)
		}
	}
}

// ErrorLoggingMiddleware logs every error a handler attached to the
// context.
func ErrorLoggingMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			logger.Error("request error",
				"error", err.Err,
				"type", err.Type,
				"meta", err.Meta,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}
	}
}

// RecoveryLoggingMiddleware turns a handler panic into a logged 500.
func RecoveryLoggingMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"client_ip", c.ClientIP(),
				)
				c.AbortWithStatus(500)
			}
		}()
		c.Next()
	}
}
