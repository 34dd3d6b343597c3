package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tobangado69/vrpsolver/internal/api/dto"
	"github.com/tobangado69/vrpsolver/internal/cache"
	"github.com/tobangado69/vrpsolver/internal/common/logging"
	"github.com/tobangado69/vrpsolver/internal/realtime"
	"github.com/tobangado69/vrpsolver/internal/solver/engine"
	solverhealth "github.com/tobangado69/vrpsolver/internal/solver/health"
	"github.com/tobangado69/vrpsolver/internal/store"
)

// Job type constants, gathered here since this package only has three.
const (
	jobTypeSolve           = "solve"
	jobTypeStaleRunCleanup = "stale_run_cleanup"
	jobTypeSolutionPurge   = "solution_purge"
)

func unmarshalProblem(raw []byte, out *dto.Problem) error {
	if len(raw) == 0 {
		return fmt.Errorf("stored problem has no payload")
	}
	return json.Unmarshal(raw, out)
}

// SolveJob runs one VRP solve to completion, publishing realtime progress
// as it goes and persisting the outcome: a store.Manager-backed handler
// that loads its subject by ID, does the work, and records the outcome, with
// the actual work done by internal/solver/engine.Engine.Run.
type SolveJob struct {
	store *store.Manager
	hub   *realtime.Hub
	cache *cache.RedisCache
	stats *solverhealth.Recorder
}

// NewSolveJob creates the solve-run job handler. stats may be nil, in
// which case live gauge tracking is skipped.
func NewSolveJob(store *store.Manager, hub *realtime.Hub, cache *cache.RedisCache, stats *solverhealth.Recorder) *SolveJob {
	return &SolveJob{store: store, hub: hub, cache: cache, stats: stats}
}

// GetJobType returns the job type.
func (s *SolveJob) GetJobType() string {
	return jobTypeSolve
}

// Handle loads the submitted problem, runs the solver engine, and persists
// and broadcasts the result.
func (s *SolveJob) Handle(ctx context.Context, job *Job) error {
	problemID, ok := job.Data["problem_id"].(string)
	if !ok || problemID == "" {
		return fmt.Errorf("missing 'problem_id' field in job data")
	}

	problemRec, err := s.store.Problems.GetByID(ctx, problemID)
	if err != nil {
		return fmt.Errorf("failed to load problem %s: %w", problemID, err)
	}

	var wire dto.Problem
	if err := unmarshalProblem(problemRec.RawJSON, &wire); err != nil {
		return fmt.Errorf("failed to decode problem %s: %w", problemID, err)
	}

	prob, err := wire.ToModel()
	if err != nil {
		return fmt.Errorf("problem %s failed validation: %w", problemID, err)
	}
	provider, err := wire.ToMatrixProvider()
	if err != nil {
		return fmt.Errorf("problem %s has invalid matrices: %w", problemID, err)
	}
	objectives, err := wire.ToObjectiveSpec()
	if err != nil {
		return fmt.Errorf("problem %s has invalid objectives: %w", problemID, err)
	}

	if err := s.store.Solutions.UpdateStatus(ctx, job.ID, "running"); err != nil {
		return fmt.Errorf("failed to mark run %s running: %w", job.ID, err)
	}
	if s.hub != nil {
		s.hub.PublishProgress(ctx, job.ID, map[string]interface{}{"status": "running"})
	}
	if s.stats != nil {
		s.stats.Start(job.ID)
		defer s.stats.Finish(job.ID)
	}

	cfg := engine.DefaultConfig()
	operatorNames := applySolveConfig(&cfg, job.Data["config"])
	eng := engine.New(prob, provider, objectives, cfg)
	eng.RuinOps, eng.RecreateOps = engine.OperatorsByName(operatorNames)
	started := time.Now()
	var lastIteration int64
	eng.OnProgress = func(p engine.Progress) {
		lastIteration = p.Iteration
		if s.hub != nil {
			s.hub.PublishProgress(ctx, job.ID, map[string]interface{}{
				"iteration":       p.Iteration,
				"population_size": p.PopulationSize,
				"elapsed":         p.Elapsed.String(),
			})
		}
		if s.stats != nil {
			bestUnassigned, bestCost := 0.0, 0.0
			if len(p.BestScore) > 0 {
				bestUnassigned = p.BestScore[0]
				bestCost = p.BestScore[len(p.BestScore)-1]
			}
			s.stats.Update(job.ID, p.Iteration, p.PopulationSize, bestUnassigned, bestCost, true)
		}
	}

	best := eng.Run(ctx)
	if best == nil {
		s.store.Solutions.UpdateStatus(ctx, job.ID, "failed")
		if s.hub != nil {
			s.hub.PublishTerminal(ctx, job.ID, "failed", map[string]interface{}{"error": "solver produced no candidate solution"})
		}
		invalidateSolutionCache(ctx, s.cache, job.ID)
		logging.GetLogger().LogSolveRun(job.ID, "failed", lastIteration, 0, time.Since(started))
		return fmt.Errorf("run %s: solver produced no candidate solution", job.ID)
	}

	result := dto.FromModel(best)
	cost := 0.0
	if len(result.Scores) > 0 {
		cost = result.Scores[len(result.Scores)-1]
	}
	if err := s.store.Solutions.UpdateProgress(ctx, job.ID, lastIteration, len(result.Unassigned), cost); err != nil {
		return fmt.Errorf("failed to record result for run %s: %w", job.ID, err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for run %s: %w", job.ID, err)
	}
	if err := s.store.Solutions.SaveResult(ctx, job.ID, resultJSON); err != nil {
		return fmt.Errorf("failed to save result for run %s: %w", job.ID, err)
	}
	if err := s.store.Solutions.UpdateStatus(ctx, job.ID, "completed"); err != nil {
		return fmt.Errorf("failed to mark run %s completed: %w", job.ID, err)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, s.cache.SolutionKey(job.ID), result, cache.LongExpiration)
	}

	if s.hub != nil {
		s.hub.PublishTerminal(ctx, job.ID, "completed", result)
	}
	invalidateSolutionCache(ctx, s.cache, job.ID)
	logging.GetLogger().LogSolveRun(job.ID, "completed", lastIteration, cost, time.Since(started))

	return nil
}

// StaleRunCleanupJob fails solve runs stuck "running" past a configured
// age, recovering from a worker that crashed mid-solve.
type StaleRunCleanupJob struct {
	store *store.Manager
}

// NewStaleRunCleanupJob creates the stale-run cleanup handler.
func NewStaleRunCleanupJob(store *store.Manager) *StaleRunCleanupJob {
	return &StaleRunCleanupJob{store: store}
}

// GetJobType returns the job type.
func (c *StaleRunCleanupJob) GetJobType() string {
	return jobTypeStaleRunCleanup
}

// Handle fails every run still marked "running" past max_run_age_minutes.
func (c *StaleRunCleanupJob) Handle(ctx context.Context, job *Job) error {
	maxAgeMinutes, ok := job.Data["max_run_age_minutes"].(float64)
	if !ok {
		maxAgeMinutes = 60
	}

	count, err := c.store.FailStaleRunning(ctx, time.Duration(maxAgeMinutes)*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to clean up stale runs: %w", err)
	}

	if count > 0 {
		job.Result = map[string]interface{}{"runs_failed": count}
	}
	return nil
}

// SolutionPurgeJob deletes completed/cancelled/failed solutions past a
// retention window.
type SolutionPurgeJob struct {
	store *store.Manager
}

// NewSolutionPurgeJob creates the solution purge handler.
func NewSolutionPurgeJob(store *store.Manager) *SolutionPurgeJob {
	return &SolutionPurgeJob{store: store}
}

// GetJobType returns the job type.
func (p *SolutionPurgeJob) GetJobType() string {
	return jobTypeSolutionPurge
}

// Handle purges solutions older than retention_days.
func (p *SolutionPurgeJob) Handle(ctx context.Context, job *Job) error {
	retentionDays, ok := job.Data["retention_days"].(float64)
	if !ok {
		retentionDays = 30
	}

	count, err := p.store.PurgeOldSolutions(ctx, time.Duration(retentionDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to purge old solutions: %w", err)
	}

	if count > 0 {
		job.Result = map[string]interface{}{"solutions_purged": count}
	}
	return nil
}

// applySolveConfig layers a submission's optional termination/search
// block (round-tripped through the job's JSON data) over cfg, returning
// the enabled operator names (nil = all).
func applySolveConfig(cfg *engine.Config, raw interface{}) []string {
	if raw == nil {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var sc dto.SolveConfig
	if err := json.Unmarshal(encoded, &sc); err != nil {
		return nil
	}

	if t := sc.Termination; t != nil {
		if t.MaxTimeSec > 0 {
			cfg.MaxDuration = time.Duration(t.MaxTimeSec) * time.Second
		}
		if t.MaxGenerations > 0 {
			cfg.MaxIterations = int(t.MaxGenerations)
		}
		if t.Variation > 0 {
			cfg.StagnationWindow = t.Variation
		}
		if t.TargetCost != nil {
			cfg.TargetCost = *t.TargetCost
			cfg.HasTargetCost = true
		}
	}

	var names []string
	if s := sc.Search; s != nil {
		if s.InitialSolutions > 0 {
			cfg.InitialSolutions = s.InitialSolutions
		}
		if s.Population > 0 {
			cfg.PopulationCap = s.Population
		}
		if s.Parallelism > 0 {
			cfg.Concurrency = s.Parallelism
		}
		if s.Seed != nil {
			cfg.Seed = *s.Seed
		}
		names = s.Operators
	}
	return names
}

// invalidateSolutionCache drops a run's cached progress entry once its
// terminal state has been persisted, so pollers hitting the cache don't
// see a stale in-progress snapshot.
func invalidateSolutionCache(ctx context.Context, c *cache.RedisCache, runID string) {
	if c == nil {
		return
	}
	_ = c.Delete(ctx, c.SolutionProgressKey(runID))
}
