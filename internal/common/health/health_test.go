package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	stats map[string]interface{}
	err   error
}

func (f *fakeQueue) GetQueueStats(ctx context.Context) (map[string]interface{}, error) {
	return f.stats, f.err
}

func TestCheck(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "vrpsolver API", "1.0.0")

	resp := hc.Check()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "vrpsolver API", resp.Service)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
}

func TestCheckLiveness(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "vrpsolver API", "1.0.0")

	resp := hc.CheckLiveness()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Dependencies)
}

func TestCheckReadinessWithoutDependencies(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "vrpsolver API", "1.0.0")

	resp := hc.CheckReadiness(context.Background())

	// no database and no redis: nothing can be stored or enqueued
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, StatusUnhealthy, resp.Dependencies["database"].Status)
	assert.Equal(t, StatusUnhealthy, resp.Dependencies["redis"].Status)
	assert.Len(t, resp.Errors, 2)
	require.NotNil(t, resp.System)
	assert.Greater(t, resp.System.CPUCount, 0)
}

func TestCheckReadinessQueueObserver(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "vrpsolver API", "1.0.0")
	hc.ObserveQueue(&fakeQueue{stats: map[string]interface{}{"pending": int64(3)}})

	resp := hc.CheckReadiness(context.Background())

	dep, ok := resp.Dependencies["queue"]
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, dep.Status)
	assert.Equal(t, int64(3), dep.Detail["pending"])
}

func TestCheckReadinessQueueError(t *testing.T) {
	hc := NewHealthChecker(nil, nil, "vrpsolver API", "1.0.0")
	hc.ObserveQueue(&fakeQueue{err: errors.New("redis: connection refused")})

	resp := hc.CheckReadiness(context.Background())

	assert.Equal(t, StatusUnhealthy, resp.Dependencies["queue"].Status)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestGradeLatency(t *testing.T) {
	fast := gradeLatency(10*time.Millisecond, time.Second)
	assert.Equal(t, StatusHealthy, fast.Status)
	assert.Equal(t, "connected", fast.Message)

	slow := gradeLatency(2*time.Second, time.Second)
	assert.Equal(t, StatusDegraded, slow.Status)
	assert.Equal(t, "slow response", slow.Message)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5*time.Second))
	assert.Equal(t, "2m 10s", formatUptime(130*time.Second))
	assert.Equal(t, "1h 1m 5s", formatUptime(3665*time.Second))
}

func TestHandleReadinessStatusCode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hc := NewHealthChecker(nil, nil, "vrpsolver API", "1.0.0")
	r := gin.New()
	SetupHealthRoutes(r, NewHandler(hc))

	// readiness fails without datastores
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// liveness never depends on collaborators
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
