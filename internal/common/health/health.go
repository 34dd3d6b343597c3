package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Status is the outcome of a probe.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// QueueObserver is the slice of the job-queue manager the readiness probe
// needs. Implemented by internal/jobqueue.Manager.
type QueueObserver interface {
	GetQueueStats(ctx context.Context) (map[string]interface{}, error)
}

// HealthChecker probes the solve API's dependencies: Postgres (problem
// and solution records) and Redis (solve-run queue, progress pub/sub,
// rate-limit counters). Redis down means no solve can be enqueued or
// streamed, so it is unhealthy here, not merely degraded.
type HealthChecker struct {
	db          *gorm.DB
	redis       *redis.Client
	queue       QueueObserver
	startTime   time.Time
	version     string
	serviceName string
}

func NewHealthChecker(db *gorm.DB, redis *redis.Client, serviceName, version string) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redis:       redis,
		startTime:   time.Now(),
		version:     version,
		serviceName: serviceName,
	}
}

// ObserveQueue lets readiness report solve-queue depth alongside the
// datastore probes.
func (hc *HealthChecker) ObserveQueue(q QueueObserver) {
	hc.queue = q
}

// HealthResponse is the payload of every probe endpoint.
type HealthResponse struct {
	Status       Status                `json:"status"`
	Timestamp    time.Time             `json:"timestamp"`
	Service      string                `json:"service"`
	Version      string                `json:"version"`
	Uptime       string                `json:"uptime,omitempty"`
	Dependencies map[string]Dependency `json:"dependencies,omitempty"`
	System       *SystemMetrics        `json:"system,omitempty"`
	Errors       []string              `json:"errors,omitempty"`
}

// Dependency is one probed collaborator.
type Dependency struct {
	Status    Status                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// SystemMetrics reports process-level numbers. GoroutineCount includes
// the solver worker pools of any runs in flight.
type SystemMetrics struct {
	MemoryUsageMB  uint64 `json:"memory_usage_mb"`
	MemoryAllocMB  uint64 `json:"memory_alloc_mb"`
	GoroutineCount int    `json:"goroutine_count"`
	CPUCount       int    `json:"cpu_count"`
}

// Check is the basic liveness payload for load balancers.
func (hc *HealthChecker) Check() HealthResponse {
	return HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Service:   hc.serviceName,
		Version:   hc.version,
		Uptime:    formatUptime(time.Since(hc.startTime)),
	}
}

// CheckLiveness answers the Kubernetes liveness probe.
func (hc *HealthChecker) CheckLiveness() HealthResponse {
	return HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Service:   hc.serviceName,
		Version:   hc.version,
	}
}

// CheckReadiness probes every dependency and reports whether the service
// can accept solve submissions.
func (hc *HealthChecker) CheckReadiness(ctx context.Context) HealthResponse {
	response := HealthResponse{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Service:      hc.serviceName,
		Version:      hc.version,
		Uptime:       formatUptime(time.Since(hc.startTime)),
		Dependencies: make(map[string]Dependency),
		System:       systemMetrics(),
	}

	record := func(name string, dep Dependency) {
		response.Dependencies[name] = dep
		if dep.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
			response.Errors = append(response.Errors, fmt.Sprintf("%s: %s", name, dep.Error))
		} else if dep.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	if hc.db != nil {
		record("database", hc.checkDatabase(ctx))
	} else {
		record("database", Dependency{Status: StatusUnhealthy, Error: "not configured"})
	}

	if hc.redis != nil {
		record("redis", hc.checkRedis(ctx))
	} else {
		record("redis", Dependency{Status: StatusUnhealthy, Error: "not configured"})
	}

	if hc.queue != nil {
		record("queue", hc.checkQueue(ctx))
	}

	return response
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) Dependency {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	sqlDB, err := hc.db.DB()
	if err != nil {
		return Dependency{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     fmt.Sprintf("get connection pool: %v", err),
		}
	}
	if err := sqlDB.PingContext(checkCtx); err != nil {
		return Dependency{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     fmt.Sprintf("ping: %v", err),
		}
	}

	return gradeLatency(time.Since(start), time.Second)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) Dependency {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := hc.redis.Ping(checkCtx).Err(); err != nil {
		return Dependency{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     fmt.Sprintf("ping: %v", err),
		}
	}

	return gradeLatency(time.Since(start), 500*time.Millisecond)
}

func (hc *HealthChecker) checkQueue(ctx context.Context) Dependency {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	stats, err := hc.queue.GetQueueStats(checkCtx)
	if err != nil {
		return Dependency{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     fmt.Sprintf("queue stats: %v", err),
		}
	}

	dep := gradeLatency(time.Since(start), 500*time.Millisecond)
	dep.Detail = stats
	return dep
}

// gradeLatency marks a reachable dependency degraded when it answered
// slower than slowAfter.
func gradeLatency(took, slowAfter time.Duration) Dependency {
	dep := Dependency{
		Status:    StatusHealthy,
		LatencyMs: took.Milliseconds(),
		Message:   "connected",
	}
	if took > slowAfter {
		dep.Status = StatusDegraded
		dep.Message = "slow response"
	}
	return dep
}

func systemMetrics() *SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &SystemMetrics{
		MemoryUsageMB:  m.Sys / 1024 / 1024,
		MemoryAllocMB:  m.Alloc / 1024 / 1024,
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
	}
}

func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// GetUptime reports how long the service has been up.
func (hc *HealthChecker) GetUptime() time.Duration {
	return time.Since(hc.startTime)
}

// GetStartTime reports when the service started.
func (hc *HealthChecker) GetStartTime() time.Time {
	return hc.startTime
}
