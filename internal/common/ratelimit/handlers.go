package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MetricsHandler serves the full metrics snapshot.
func MetricsHandler(mon *Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"metrics": mon.Snapshot(),
			"uptime":  mon.Uptime().String(),
		})
	}
}

// HealthHandler serves the limiter health summary.
func HealthHandler(mon *Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mon.Health())
	}
}

// StatsHandler serves the most-blocked routes and callers.
func StatsHandler(mon *Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := 10
		if v, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
			n = v
		}
		c.JSON(http.StatusOK, gin.H{
			"top_blocked_routes":  mon.TopBlockedRoutes(n),
			"top_blocked_callers": mon.TopBlockedCallers(n),
		})
	}
}

// RulesHandler lists the rule table on GET and appends a rule on POST.
func RulesHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet:
			c.JSON(http.StatusOK, gin.H{"rules": m.Rules()})
		case http.MethodPost:
			var rule Rule
			if err := c.ShouldBindJSON(&rule); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			m.Add(rule)
			c.JSON(http.StatusOK, gin.H{"rules": m.Rules()})
		default:
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "unsupported method"})
		}
	}
}

// RemoveRuleHandler drops the rules matching ?method=&path=.
func RemoveRuleHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Query("method")
		path := c.Query("path")
		if method == "" || path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "method and path are required"})
			return
		}
		m.Remove(method, path)
		c.JSON(http.StatusOK, gin.H{"rules": m.Rules()})
	}
}

// ResetHandler clears the counters for the caller named by ?caller=.
func ResetHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.Query("caller")
		if caller == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "caller is required"})
			return
		}
		if err := m.Reset(c.Request.Context(), caller); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": caller})
	}
}
