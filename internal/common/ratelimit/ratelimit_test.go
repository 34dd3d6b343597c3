package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"exact", "/api/v1/problems", "/api/v1/problems", true},
		{"param segment", "/api/v1/solves/:runID", "/api/v1/solves/run-42", true},
		{"param then literal", "/api/v1/solves/:runID/stream", "/api/v1/solves/run-42/stream", true},
		{"length mismatch", "/api/v1/solves/:runID", "/api/v1/solves/run-42/stream", false},
		{"literal mismatch", "/api/v1/problems", "/api/v1/solves", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pathMatches(tt.pattern, tt.path))
		})
	}
}

func TestManagerLookup(t *testing.T) {
	m := NewManager(nil, Policy{})

	solve := m.lookup(http.MethodPost, "/api/v1/solves")
	assert.Equal(t, Bucket, solve.Policy().Strategy)

	poll := m.lookup(http.MethodGet, "/api/v1/solves/run-7")
	assert.Equal(t, Sliding, poll.Policy().Strategy)

	// unmatched routes fall back to the default window policy
	other := m.lookup(http.MethodGet, "/api/v1/unknown")
	assert.Equal(t, Window, other.Policy().Strategy)
	assert.Equal(t, 100, other.Policy().Limit)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager(nil, Policy{})
	before := len(m.Rules())

	m.Remove(http.MethodPost, "/api/v1/solves")
	require.Len(t, m.Rules(), before-1)

	// removed route now hits the fallback
	l := m.lookup(http.MethodPost, "/api/v1/solves")
	assert.Equal(t, Window, l.Policy().Strategy)
}

func TestMonitorRecord(t *testing.T) {
	mon := NewMonitor(nil)

	mon.Record("POST /api/v1/solves", "ip:10.0.0.1", true, time.Millisecond)
	mon.Record("POST /api/v1/solves", "ip:10.0.0.1", false, time.Millisecond)
	mon.Record("GET /api/v1/problems", "ip:10.0.0.2", true, time.Millisecond)

	snap := mon.Snapshot()
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(1), snap.Blocked)
	assert.InDelta(t, 1.0/3.0, snap.BlockRate, 1e-9)

	routes := mon.TopBlockedRoutes(5)
	require.Len(t, routes, 1)
	assert.Equal(t, "POST /api/v1/solves", routes[0].Route)
	assert.Equal(t, int64(1), routes[0].Blocked)

	callers := mon.TopBlockedCallers(5)
	require.Len(t, callers, 1)
	assert.Equal(t, "ip:10.0.0.1", callers[0].Caller)
}

func TestMonitorHealthWarnsOnHighBlockRate(t *testing.T) {
	mon := NewMonitor(nil)
	for i := 0; i < 4; i++ {
		mon.Record("POST /api/v1/solves", "ip:10.0.0.1", false, time.Millisecond)
	}
	mon.Record("POST /api/v1/solves", "ip:10.0.0.1", true, time.Millisecond)

	health := mon.Health()
	assert.Equal(t, "warning", health["status"])
}
