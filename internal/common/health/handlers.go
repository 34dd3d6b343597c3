package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the probe endpoints.
type Handler struct {
	checker *HealthChecker
}

func NewHandler(checker *HealthChecker) *Handler {
	return &Handler{checker: checker}
}

// HandleHealth handles the basic health check.
// @Summary Health check
// @Description Basic health check endpoint (liveness probe)
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.Check())
}

// HandleLiveness handles the Kubernetes liveness probe.
// @Summary Liveness probe
// @Description Kubernetes liveness probe endpoint
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health/live [get]
func (h *Handler) HandleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.CheckLiveness())
}

// HandleReadiness handles the Kubernetes readiness probe. Degraded still
// answers 200: submissions work, just slower.
// @Summary Readiness probe
// @Description Kubernetes readiness probe endpoint with dependency checks
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse "Service is ready"
// @Success 503 {object} HealthResponse "Service is not ready"
// @Router /health/ready [get]
func (h *Handler) HandleReadiness(c *gin.Context) {
	response := h.checker.CheckReadiness(c.Request.Context())

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// HandleDetailed serves the full dependency breakdown for ops debugging.
// @Summary Detailed health check
// @Description Comprehensive health check with all system details
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health/detailed [get]
func (h *Handler) HandleDetailed(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.CheckReadiness(c.Request.Context()))
}

// SetupHealthRoutes mounts the probe endpoints.
func SetupHealthRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/health", handler.HandleHealth)
	r.GET("/health/live", handler.HandleLiveness)
	r.GET("/health/ready", handler.HandleReadiness)
	r.GET("/health/detailed", handler.HandleDetailed)
}
