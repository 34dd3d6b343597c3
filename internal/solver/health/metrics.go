// Package health exposes solve-engine and process metrics in hand-rolled
// Prometheus exposition format rather than introducing client_golang: a
// handful of gauges don't need a metrics registry.
package health

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Snapshot is one solve run's current counters, updated by the engine via
// Recorder and read by the metrics endpoint.
type Snapshot struct {
	RunID            string
	Iterations       int64
	PopulationSize   int
	BestUnassigned   float64
	BestCost         float64
	AcceptanceRate   float64
	StartedAt        time.Time
	LastUpdated      time.Time
}

// Recorder aggregates snapshots across concurrently running solves,
// guarded by a mutex in the same RWMutex-guarded shared-state pattern
// used throughout internal/jobqueue.
type Recorder struct {
	mu    sync.RWMutex
	runs  map[string]Snapshot
	accepts map[string]int64
	offers  map[string]int64
}

// NewRecorder builds an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		runs:    map[string]Snapshot{},
		accepts: map[string]int64{},
		offers:  map[string]int64{},
	}
}

// Start registers a new run.
func (r *Recorder) Start(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID] = Snapshot{RunID: runID, StartedAt: time.Now(), LastUpdated: time.Now()}
}

// Update records one engine progress tick for runID.
func (r *Recorder) Update(runID string, iterations int64, populationSize int, bestUnassigned, bestCost float64, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[runID]++
	if accepted {
		r.accepts[runID]++
	}
	snap := r.runs[runID]
	snap.RunID = runID
	snap.Iterations = iterations
	snap.PopulationSize = populationSize
	snap.BestUnassigned = bestUnassigned
	snap.BestCost = bestCost
	if r.offers[runID] > 0 {
		snap.AcceptanceRate = float64(r.accepts[runID]) / float64(r.offers[runID])
	}
	snap.LastUpdated = time.Now()
	r.runs[runID] = snap
}

// Finish removes a completed run's live counters once its terminal result
// has been persisted elsewhere (internal/store).
func (r *Recorder) Finish(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
	delete(r.accepts, runID)
	delete(r.offers, runID)
}

// Snapshot returns a copy of one run's current counters.
func (r *Recorder) Snapshot(runID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.runs[runID]
	return s, ok
}

// All returns every currently tracked run's snapshot.
func (r *Recorder) All() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.runs))
	for _, s := range r.runs {
		out = append(out, s)
	}
	return out
}

// MetricsHandler serves solve-engine and process gauges in Prometheus
// text exposition format.
type MetricsHandler struct {
	recorder *Recorder
	start    time.Time
}

// NewMetricsHandler builds a handler over recorder.
func NewMetricsHandler(recorder *Recorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder, start: time.Now()}
}

// HandleMetrics writes the process gauges plus one gauge set per active
// solve run.
func (mh *MetricsHandler) HandleMetrics(c *gin.Context) {
	runs := mh.recorder.All()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	out := "# HELP vrpsolver_up Service up status (1 = up, 0 = down)\n" +
		"# TYPE vrpsolver_up gauge\n" +
		"vrpsolver_up 1\n\n"
	out += "# HELP vrpsolver_uptime_seconds Service uptime in seconds\n" +
		"# TYPE vrpsolver_uptime_seconds counter\n" +
		fmt.Sprintf("vrpsolver_uptime_seconds %f\n\n", time.Since(mh.start).Seconds())
	out += "# HELP vrpsolver_memory_alloc_bytes Allocated memory in bytes\n" +
		"# TYPE vrpsolver_memory_alloc_bytes gauge\n" +
		fmt.Sprintf("vrpsolver_memory_alloc_bytes %d\n\n", mem.Alloc)
	out += "# HELP vrpsolver_goroutines Current number of goroutines\n" +
		"# TYPE vrpsolver_goroutines gauge\n" +
		fmt.Sprintf("vrpsolver_goroutines %d\n\n", runtime.NumGoroutine())

	out += "# HELP vrpsolver_active_runs Number of solve runs currently executing\n" +
		"# TYPE vrpsolver_active_runs gauge\n" +
		fmt.Sprintf("vrpsolver_active_runs %d\n\n", len(runs))

	out += "# HELP vrpsolver_iterations_total Iterations completed per solve run\n" +
		"# TYPE vrpsolver_iterations_total counter\n"
	for _, s := range runs {
		out += fmt.Sprintf("vrpsolver_iterations_total{run_id=%q} %d\n", s.RunID, s.Iterations)
	}
	out += "\n# HELP vrpsolver_population_size Current Pareto frontier size per solve run\n" +
		"# TYPE vrpsolver_population_size gauge\n"
	for _, s := range runs {
		out += fmt.Sprintf("vrpsolver_population_size{run_id=%q} %d\n", s.RunID, s.PopulationSize)
	}
	out += "\n# HELP vrpsolver_best_unassigned Best known unassigned-weight score per solve run\n" +
		"# TYPE vrpsolver_best_unassigned gauge\n"
	for _, s := range runs {
		out += fmt.Sprintf("vrpsolver_best_unassigned{run_id=%q} %f\n", s.RunID, s.BestUnassigned)
	}
	out += "\n# HELP vrpsolver_best_cost Best known total cost score per solve run\n" +
		"# TYPE vrpsolver_best_cost gauge\n"
	for _, s := range runs {
		out += fmt.Sprintf("vrpsolver_best_cost{run_id=%q} %f\n", s.RunID, s.BestCost)
	}
	out += "\n# HELP vrpsolver_acceptance_rate Fraction of offered candidates accepted into the population\n" +
		"# TYPE vrpsolver_acceptance_rate gauge\n"
	for _, s := range runs {
		out += fmt.Sprintf("vrpsolver_acceptance_rate{run_id=%q} %f\n", s.RunID, s.AcceptanceRate)
	}

	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(out))
}

// SetupMetricsRoutes registers the metrics endpoint.
func SetupMetricsRoutes(r *gin.Engine, handler *MetricsHandler) {
	r.GET("/metrics", handler.HandleMetrics)
}
