package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewLogger(&LoggerConfig{
		Level:  level,
		Format: "json",
		Output: buf,
	}), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]interface{}
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	return lines
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "kept", lines[0]["msg"])
}

func TestNewLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(&LoggerConfig{Level: "verbose", Format: "json", Output: buf})

	logger.Debug("dropped")
	logger.Info("kept")

	require.Len(t, decodeLines(t, buf), 1)
}

func TestWithFields(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.WithFields(map[string]interface{}{"run_id": "run-1", "worker": 3}).Info("step")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, float64(3), lines[0]["worker"])
}

func TestLogError(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.LogError(errors.New("matrix profile missing"), "solve aborted", map[string]interface{}{"run_id": "run-2"})

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "solve aborted", lines[0]["msg"])
	assert.Equal(t, "matrix profile missing", lines[0]["error"])
	assert.Equal(t, "run-2", lines[0]["run_id"])
}

func TestLogSolveRun(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.LogSolveRun("run-3", "completed", 1500, 421.5, 2*time.Second)
	logger.LogSolveRun("run-4", "failed", 0, 0, time.Millisecond)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, float64(1500), lines[0]["generations"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "run-4", lines[1]["run_id"])
}

func TestRequestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, buf := newBufferLogger(LevelInfo)

	r := gin.New()
	r.Use(RequestLoggingMiddleware(logger))
	r.GET("/api/v1/solves/:runID", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "running"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/solves/run-9?fields=status", nil)
	r.ServeHTTP(w, req)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "http request", lines[0]["msg"])
	assert.Equal(t, "GET", lines[0]["method"])
	assert.Equal(t, "/api/v1/solves/run-9", lines[0]["path"])
	assert.Equal(t, float64(http.StatusOK), lines[0]["status"])
	assert.Equal(t, "run-9", lines[0]["run_id"])
	assert.NotEmpty(t, lines[0]["request_id"])
}

func TestRequestLoggingMiddlewareStatusLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, buf := newBufferLogger(LevelInfo)

	r := gin.New()
	r.Use(RequestLoggingMiddleware(logger))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/missing", "/broken"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestPerformanceLoggingMiddlewareSkipsStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, buf := newBufferLogger(LevelInfo)

	r := gin.New()
	r.Use(PerformanceLoggingMiddleware(logger, 0))
	r.GET("/api/v1/solves/:runID/stream", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/solves/run-1/stream", nil))

	assert.Empty(t, decodeLines(t, buf))
}

func TestRecoveryLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, buf := newBufferLogger(LevelInfo)

	r := gin.New()
	r.Use(RecoveryLoggingMiddleware(logger))
	r.GET("/panic", func(c *gin.Context) { panic("unexpected") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "panic recovered", lines[0]["msg"])
}

func TestExtractResource(t *testing.T) {
	assert.Equal(t, "solves", extractResource("/api/v1/solves/run-1"))
	assert.Equal(t, "problems", extractResource("/api/v1/problems"))
	assert.Equal(t, "unknown", extractResource("/healthz"))
}

func TestActionForMethod(t *testing.T) {
	assert.Equal(t, "create", actionForMethod("POST"))
	assert.Equal(t, "update", actionForMethod("PATCH"))
	assert.Equal(t, "delete", actionForMethod("DELETE"))
	assert.Equal(t, "unknown", actionForMethod("GET"))
}
