package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// Rule binds a Policy to one route. Path segments starting with ':' match
// any single segment, mirroring gin's route parameters.
type Rule struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Policy Policy `json:"policy"`
}

// Manager holds the rule table for the solve API and hands each request to
// the limiter of the first matching rule, or the fallback.
type Manager struct {
	rdb      *redis.Client
	rules    []Rule
	limiters []*Limiter
	fallback *Limiter
}

// DefaultRules covers the API's traffic classes. Solve submission is the
// tightest: each accepted run occupies a worker-pool slot for up to
// termination.maxTimeSec. Status polling is cheap and high-frequency.
func DefaultRules() []Rule {
	return []Rule{
		{Method: http.MethodPost, Path: "/api/v1/problems", Policy: Policy{
			Strategy: Window, Limit: 30, Per: time.Minute,
		}},
		{Method: http.MethodGet, Path: "/api/v1/problems", Policy: Policy{
			Strategy: Window, Limit: 200, Per: time.Minute,
		}},
		{Method: http.MethodPost, Path: "/api/v1/solves", Policy: Policy{
			Strategy: Bucket, Burst: 5, Refill: 2,
		}},
		{Method: http.MethodGet, Path: "/api/v1/solves/:runID", Policy: Policy{
			Strategy: Sliding, Limit: 300, Per: time.Minute,
		}},
		{Method: http.MethodGet, Path: "/api/v1/solves/:runID/stream", Policy: Policy{
			Strategy: Bucket, Burst: 5, Refill: 2,
		}},
	}
}

// NewManager builds a Manager with DefaultRules plus a fallback policy for
// unmatched routes. A zero fallback gets a sane default.
func NewManager(rdb *redis.Client, fallback Policy) *Manager {
	if fallback.Limit == 0 && fallback.Burst == 0 {
		fallback = Policy{Strategy: Window, Limit: 100, Per: time.Minute}
	}
	m := &Manager{rdb: rdb, fallback: NewLimiter(rdb, fallback)}
	for _, r := range DefaultRules() {
		m.Add(r)
	}
	return m
}

// Add appends a rule. Earlier rules win on overlap.
func (m *Manager) Add(r Rule) {
	m.rules = append(m.rules, r)
	m.limiters = append(m.limiters, NewLimiter(m.rdb, r.Policy))
}

// Remove drops every rule matching method and path.
func (m *Manager) Remove(method, path string) {
	rules := m.rules[:0]
	limiters := m.limiters[:0]
	for i, r := range m.rules {
		if r.Method == method && r.Path == path {
			continue
		}
		rules = append(rules, r)
		limiters = append(limiters, m.limiters[i])
	}
	m.rules = rules
	m.limiters = limiters
}

// Rules returns a copy of the rule table.
func (m *Manager) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

func (m *Manager) lookup(method, path string) *Limiter {
	for i, r := range m.rules {
		if r.Method == method && pathMatches(r.Path, path) {
			return m.limiters[i]
		}
	}
	return m.fallback
}

func pathMatches(pattern, path string) bool {
	pp := strings.Split(pattern, "/")
	sp := strings.Split(path, "/")
	if len(pp) != len(sp) {
		return false
	}
	for i := range pp {
		if strings.HasPrefix(pp[i], ":") {
			continue
		}
		if pp[i] != sp[i] {
			return false
		}
	}
	return true
}

// clientKey identifies the caller: the authenticated subject when the auth
// middleware has run, the client IP otherwise.
func clientKey(c *gin.Context) string {
	if sub, ok := c.Get("user_id"); ok {
		return "user:" + toString(sub)
	}
	return "ip:" + c.ClientIP()
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "?"
}

// exempt reports paths the limiter never touches: probes and metrics
// scrapes must stay observable under load.
func exempt(path string) bool {
	return strings.HasPrefix(path, "/health") ||
		strings.HasPrefix(path, "/metrics") ||
		strings.HasPrefix(path, "/swagger")
}

// Middleware applies the rule table and records each decision with mon
// (which may be nil). Redis failures let the request through.
func (m *Manager) Middleware(mon *Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if exempt(path) {
			c.Next()
			return
		}

		start := time.Now()
		caller := clientKey(c)
		limiter := m.lookup(c.Request.Method, path)

		allowed, quota, err := limiter.Allow(c.Request.Context(), caller)
		if err != nil {
			allowed = true
		} else {
			c.Header("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(quota.ResetAt.Unix(), 10))
		}

		if mon != nil {
			route := c.Request.Method + " " + path
			mon.Record(route, caller, allowed, time.Since(start))
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(quota.RetryAfter.Seconds()+1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": quota.RetryAfter.Seconds(),
				"limit":       quota.Limit,
				"reset":       quota.ResetAt.Unix(),
			})
			return
		}
		c.Next()
	}
}

// Reset clears the counters a caller has accumulated under every rule.
func (m *Manager) Reset(ctx context.Context, caller string) error {
	var firstErr error
	for _, l := range m.limiters {
		if err := l.Reset(ctx, caller); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.fallback.Reset(ctx, caller); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
