package ratelimit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const metricsKey = "ratelimit:metrics"

// RouteStats accumulates decisions for one "METHOD /path" route.
type RouteStats struct {
	Route    string    `json:"route"`
	Total    int64     `json:"total"`
	Blocked  int64     `json:"blocked"`
	LastSeen time.Time `json:"last_seen"`
}

// CallerStats accumulates decisions for one caller key.
type CallerStats struct {
	Caller   string    `json:"caller"`
	Total    int64     `json:"total"`
	Blocked  int64     `json:"blocked"`
	LastSeen time.Time `json:"last_seen"`
}

// Metrics is a point-in-time snapshot of limiter activity.
type Metrics struct {
	Total     int64                   `json:"total"`
	Blocked   int64                   `json:"blocked"`
	BlockRate float64                 `json:"block_rate"`
	AvgCheck  time.Duration           `json:"avg_check"`
	Routes    map[string]*RouteStats  `json:"routes"`
	Callers   map[string]*CallerStats `json:"callers"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Monitor tallies limiter decisions in memory and checkpoints the tallies
// to Redis so they survive a restart of the API process.
type Monitor struct {
	mu      sync.RWMutex
	rdb     *redis.Client
	start   time.Time
	metrics Metrics
}

func NewMonitor(rdb *redis.Client) *Monitor {
	m := &Monitor{
		rdb:   rdb,
		start: time.Now(),
		metrics: Metrics{
			Routes:  make(map[string]*RouteStats),
			Callers: make(map[string]*CallerStats),
		},
	}
	m.restore(context.Background())
	return m
}

// Record tallies one decision.
func (m *Monitor) Record(route, caller string, allowed bool, checkTook time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.metrics.Total++
	if !allowed {
		m.metrics.Blocked++
	}
	m.metrics.BlockRate = float64(m.metrics.Blocked) / float64(m.metrics.Total)
	// running mean keeps AvgCheck O(1) in memory
	m.metrics.AvgCheck += (checkTook - m.metrics.AvgCheck) / time.Duration(m.metrics.Total)

	rs := m.metrics.Routes[route]
	if rs == nil {
		rs = &RouteStats{Route: route}
		m.metrics.Routes[route] = rs
	}
	rs.Total++
	if !allowed {
		rs.Blocked++
	}
	rs.LastSeen = now

	cs := m.metrics.Callers[caller]
	if cs == nil {
		cs = &CallerStats{Caller: caller}
		m.metrics.Callers[caller] = cs
	}
	cs.Total++
	if !allowed {
		cs.Blocked++
	}
	cs.LastSeen = now

	m.metrics.UpdatedAt = now

	// checkpoint occasionally, not on every request
	if m.metrics.Total%256 == 0 {
		snapshot := m.copyLocked()
		go m.persist(snapshot)
	}
}

// Snapshot returns a deep copy of the current metrics.
func (m *Monitor) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

func (m *Monitor) copyLocked() Metrics {
	out := m.metrics
	out.Routes = make(map[string]*RouteStats, len(m.metrics.Routes))
	for k, v := range m.metrics.Routes {
		cp := *v
		out.Routes[k] = &cp
	}
	out.Callers = make(map[string]*CallerStats, len(m.metrics.Callers))
	for k, v := range m.metrics.Callers {
		cp := *v
		out.Callers[k] = &cp
	}
	return out
}

// TopBlockedRoutes returns up to n routes ordered by blocked count.
func (m *Monitor) TopBlockedRoutes(n int) []*RouteStats {
	snap := m.Snapshot()
	routes := make([]*RouteStats, 0, len(snap.Routes))
	for _, rs := range snap.Routes {
		if rs.Blocked > 0 {
			routes = append(routes, rs)
		}
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Blocked > routes[j].Blocked })
	if n > 0 && n < len(routes) {
		routes = routes[:n]
	}
	return routes
}

// TopBlockedCallers returns up to n callers ordered by blocked count.
func (m *Monitor) TopBlockedCallers(n int) []*CallerStats {
	snap := m.Snapshot()
	callers := make([]*CallerStats, 0, len(snap.Callers))
	for _, cs := range snap.Callers {
		if cs.Blocked > 0 {
			callers = append(callers, cs)
		}
	}
	sort.Slice(callers, func(i, j int) bool { return callers[i].Blocked > callers[j].Blocked })
	if n > 0 && n < len(callers) {
		callers = callers[:n]
	}
	return callers
}

// Reset discards all tallies.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = Metrics{
		Routes:  make(map[string]*RouteStats),
		Callers: make(map[string]*CallerStats),
	}
	m.start = time.Now()
}

// Uptime reports how long this monitor has been tallying.
func (m *Monitor) Uptime() time.Duration { return time.Since(m.start) }

// Health summarizes limiter behaviour for the admin health endpoint. A
// block rate above one half usually means a rule is mis-tuned rather than
// the API being under attack.
func (m *Monitor) Health() map[string]interface{} {
	snap := m.Snapshot()
	status := map[string]interface{}{
		"status":     "healthy",
		"uptime":     m.Uptime().String(),
		"total":      snap.Total,
		"block_rate": snap.BlockRate,
		"avg_check":  snap.AvgCheck.String(),
		"routes":     len(snap.Routes),
		"callers":    len(snap.Callers),
	}
	if snap.BlockRate > 0.5 {
		status["status"] = "warning"
		status["warning"] = "block rate above 50%"
	}
	return status
}

func (m *Monitor) persist(snap Metrics) {
	if m.rdb == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	m.rdb.Set(context.Background(), metricsKey, data, 24*time.Hour)
}

func (m *Monitor) restore(ctx context.Context) {
	if m.rdb == nil {
		return
	}
	data, err := m.rdb.Get(ctx, metricsKey).Result()
	if err != nil {
		return
	}
	var metrics Metrics
	if json.Unmarshal([]byte(data), &metrics) != nil {
		return
	}
	if metrics.Routes == nil {
		metrics.Routes = make(map[string]*RouteStats)
	}
	if metrics.Callers == nil {
		metrics.Callers = make(map[string]*CallerStats)
	}
	m.mu.Lock()
	m.metrics = metrics
	m.mu.Unlock()
}
