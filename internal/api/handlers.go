// Package api is the Gin HTTP surface for submitting, polling, and
// streaming VRP solve runs: submit a problem, start a solve against it,
// poll or stream its progress, and fetch the resulting solution.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tobangado69/vrpsolver/internal/api/dto"
	"github.com/tobangado69/vrpsolver/internal/cache"
	"github.com/tobangado69/vrpsolver/internal/common/logging"
	"github.com/tobangado69/vrpsolver/internal/common/middleware"
	"github.com/tobangado69/vrpsolver/internal/common/repository"
	"github.com/tobangado69/vrpsolver/internal/jobqueue"
	"github.com/tobangado69/vrpsolver/internal/realtime"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/solverrors"
	"github.com/tobangado69/vrpsolver/internal/store"
)

// SolveHandler exposes the submit/poll/cancel/stream surface for solve
// runs: one struct per resource holding exactly the collaborators it
// needs, wired at construction rather than looked up from a global.
type SolveHandler struct {
	store     *store.Manager
	cache     *cache.RedisCache
	jobs      *jobqueue.Manager
	hub       *realtime.Hub
	audit     *logging.AuditLogger
	validator *validator.Validate
}

// NewSolveHandler builds the solve-run handler. audit may be nil, in
// which case submit/cancel events are not recorded to the audit trail.
func NewSolveHandler(store *store.Manager, cache *cache.RedisCache, jobs *jobqueue.Manager, hub *realtime.Hub, audit *logging.AuditLogger) *SolveHandler {
	return &SolveHandler{store: store, cache: cache, jobs: jobs, hub: hub, audit: audit, validator: validator.New()}
}

func tenantFromContext(c *gin.Context) string {
	tenantID, _ := c.Get("tenant_id")
	tenant, _ := tenantID.(string)
	return tenant
}

func userFromContext(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	user, _ := userID.(string)
	return user
}

// SubmitProblemRequest wraps the problem document and a display name.
type SubmitProblemRequest struct {
	Name    string      `json:"name" binding:"required"`
	Problem dto.Problem `json:"problem" binding:"required"`
}

// SubmitProblemResponse returns the stored problem's id for a subsequent
// solve submission.
type SubmitProblemResponse struct {
	ProblemID string `json:"problem_id"`
}

// SubmitProblem validates and persists a problem document, independent of
// starting a solve against it (a stored problem may be solved more than
// once with different engine.Config overrides).
func (h *SolveHandler) SubmitProblem(c *gin.Context) {
	var req SubmitProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBadRequest(c, err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		middleware.AbortWithValidation(c, err.Error())
		return
	}

	prob, err := req.Problem.ToModel()
	if err != nil {
		middleware.AbortWithValidation(c, err.Error())
		return
	}
	if _, err := req.Problem.ToMatrixProvider(); err != nil {
		middleware.AbortWithValidation(c, err.Error())
		return
	}
	if _, err := req.Problem.ToObjectiveSpec(); err != nil {
		middleware.AbortWithValidation(c, err.Error())
		return
	}
	if issues := model.Validate(prob); len(issues) > 0 {
		appErr := issues[0].AppError()
		if len(issues) > 1 {
			rest := make([]string, 0, len(issues)-1)
			for _, issue := range issues[1:] {
				rest = append(rest, issue.Code+": "+issue.Message)
			}
			appErr = appErr.WithDetails(map[string]interface{}{"further_issues": rest})
		}
		middleware.AbortWithError(c, appErr)
		return
	}

	raw, err := json.Marshal(req.Problem)
	if err != nil {
		middleware.AbortWithInternal(c, "failed to encode problem", err)
		return
	}

	rec := &repository.ProblemRecord{
		ID:      uuid.New().String(),
		Name:    req.Name,
		RawJSON: raw,
	}
	if err := h.store.Problems.Create(c.Request.Context(), rec); err != nil {
		middleware.AbortWithInternal(c, "failed to store problem", err)
		return
	}

	if h.audit != nil {
		h.audit.LogProblemEvent(c.Request.Context(), "problem_submitted", rec.ID, userFromContext(c), tenantFromContext(c), map[string]interface{}{"name": req.Name})
	}

	c.JSON(http.StatusCreated, SubmitProblemResponse{ProblemID: rec.ID})
}

// SubmitSolveRequest names the problem to solve, with optional
// termination/search tuning applied by jobqueue.SolveJob over the engine
// defaults.
type SubmitSolveRequest struct {
	ProblemID string           `json:"problem_id" binding:"required"`
	Config    *dto.SolveConfig `json:"config,omitempty"`
}

// SubmitSolveResponse returns the run id used to poll, cancel, or stream.
type SubmitSolveResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// SubmitSolve enqueues a solve run for a previously submitted problem.
func (h *SolveHandler) SubmitSolve(c *gin.Context) {
	var req SubmitSolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithBadRequest(c, err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		middleware.AbortWithValidation(c, err.Error())
		return
	}

	if _, err := h.store.Problems.GetByID(c.Request.Context(), req.ProblemID); err != nil {
		middleware.AbortWithNotFound(c, "problem "+req.ProblemID)
		return
	}

	runID := uuid.New().String()
	solRec := &repository.SolutionRecord{
		ID:        runID,
		ProblemID: req.ProblemID,
		Status:    "queued",
	}
	if err := h.store.Solutions.Create(c.Request.Context(), solRec); err != nil {
		middleware.AbortWithInternal(c, "failed to create solve run", err)
		return
	}

	tenant := tenantFromContext(c)
	var data map[string]interface{}
	if req.Config != nil {
		data = map[string]interface{}{"config": req.Config}
	}
	if _, err := h.jobs.EnqueueSolve(c.Request.Context(), runID, req.ProblemID, tenant, data); err != nil {
		h.store.Solutions.UpdateStatus(c.Request.Context(), runID, "failed")
		middleware.AbortWithInternal(c, "failed to enqueue solve", err)
		return
	}

	if h.audit != nil {
		h.audit.LogSolveEvent(c.Request.Context(), "solve_submitted", runID, userFromContext(c), tenant, map[string]interface{}{"problem_id": req.ProblemID})
	}

	c.JSON(http.StatusAccepted, SubmitSolveResponse{RunID: runID, Status: "queued"})
}

// GetSolveStatus reports a run's lifecycle status without its full result,
// for cheap polling.
func (h *SolveHandler) GetSolveStatus(c *gin.Context) {
	runID := c.Param("runID")
	rec, err := h.store.Solutions.GetByID(c.Request.Context(), runID)
	if err != nil {
		middleware.AbortWithError(c, solverrors.NewSolveNotFoundError(runID))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":           rec.ID,
		"problem_id":       rec.ProblemID,
		"status":           rec.Status,
		"iterations":       rec.Iterations,
		"unassigned_count": rec.UnassignedCount,
		"cost":             rec.Cost,
	})
}

// GetSolution returns the solved dto.Solution for a completed run,
// preferring the cache (populated by jobqueue.SolveJob on completion)
// over the store.
func (h *SolveHandler) GetSolution(c *gin.Context) {
	runID := c.Param("runID")
	ctx := c.Request.Context()

	if h.cache != nil {
		var cached dto.Solution
		if err := h.cache.Get(ctx, h.cache.SolutionKey(runID), &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	rec, err := h.store.Solutions.GetByID(ctx, runID)
	if err != nil {
		middleware.AbortWithError(c, solverrors.NewSolveNotFoundError(runID))
		return
	}
	if rec.Status != "completed" {
		// 202 keeps non-terminal answers out of the response cache
		c.JSON(http.StatusAccepted, gin.H{"run_id": rec.ID, "status": rec.Status})
		return
	}
	if len(rec.RawJSON) == 0 {
		middleware.AbortWithInternal(c, "completed run has no stored result", nil)
		return
	}

	var sol dto.Solution
	if err := json.Unmarshal(rec.RawJSON, &sol); err != nil {
		middleware.AbortWithInternal(c, "failed to decode stored result", err)
		return
	}
	c.JSON(http.StatusOK, sol)
}

// CancelSolve cancels a queued or running solve, marking the run
// cancelled so pollers stop waiting on it.
func (h *SolveHandler) CancelSolve(c *gin.Context) {
	runID := c.Param("runID")
	ctx := c.Request.Context()

	if err := h.jobs.CancelJob(ctx, runID); err != nil {
		middleware.AbortWithInternal(c, "failed to cancel solve", err)
		return
	}
	if err := h.store.Solutions.UpdateStatus(ctx, runID, "cancelled"); err != nil {
		middleware.AbortWithInternal(c, "failed to record cancellation", err)
		return
	}
	if h.hub != nil {
		h.hub.PublishTerminal(ctx, runID, "cancelled", gin.H{"run_id": runID})
	}
	if h.audit != nil {
		h.audit.LogSolveEvent(ctx, "solve_cancelled", runID, userFromContext(c), tenantFromContext(c), nil)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "status": "cancelled"})
}

// StreamSolve upgrades the request to a WebSocket subscription to one
// run's progress events, delegating to the shared realtime.Hub.
func (h *SolveHandler) StreamSolve(c *gin.Context) {
	if h.hub == nil {
		middleware.AbortWithInternal(c, "realtime streaming is not configured", nil)
		return
	}
	h.hub.HandleWebSocket(c)
}

// ListRecentProblems returns the most recently submitted problems, paged
// by the limit/offset query params ValidatePaginationParams validated.
func (h *SolveHandler) ListRecentProblems(c *gin.Context) {
	limit := c.MustGet("validated_limit").(int)
	offset := c.MustGet("validated_offset").(int)

	recs, err := h.store.Problems.GetRecentPage(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.AbortWithInternal(c, "failed to list problems", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"problems": recs})
}
