package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRecorderStartUpdateFinish(t *testing.T) {
	r := NewRecorder()
	r.Start("run-1")

	r.Update("run-1", 10, 3, 2.0, 100.0, true)
	r.Update("run-1", 20, 3, 1.0, 90.0, false)

	snap, ok := r.Snapshot("run-1")
	assert.True(t, ok)
	assert.Equal(t, int64(20), snap.Iterations)
	assert.Equal(t, 1.0, snap.BestUnassigned)
	assert.Equal(t, 90.0, snap.BestCost)
	assert.Equal(t, 0.5, snap.AcceptanceRate)

	r.Finish("run-1")
	_, ok = r.Snapshot("run-1")
	assert.False(t, ok)
}

func TestRecorderAllReturnsEveryRun(t *testing.T) {
	r := NewRecorder()
	r.Start("a")
	r.Start("b")
	all := r.All()
	assert.Len(t, all, 2)
}

func TestHandleMetricsEmitsGaugesPerRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRecorder()
	r.Start("run-1")
	r.Update("run-1", 5, 2, 0.0, 42.0, true)

	mh := NewMetricsHandler(r)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)

	mh.HandleMetrics(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "vrpsolver_active_runs 1")
	assert.Contains(t, body, `vrpsolver_iterations_total{run_id="run-1"} 5`)
	assert.Contains(t, body, `vrpsolver_best_cost{run_id="run-1"} 42.000000`)
}
