// Package engine runs the ruin-and-recreate worker pool: a fixed number
// of goroutines, each repeatedly drawing a parent solution from the
// population, applying a bandit-selected (ruin, recreate) pair, and
// offering the result back to the population, until ctx is cancelled
// or a termination criterion is met. Shaped after the
// Worker.Start/workerLoop/sync.WaitGroup pattern in
// internal/jobqueue/worker.go, a close structural match for this pool.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tobangado69/vrpsolver/internal/common/logging"
	"github.com/tobangado69/vrpsolver/internal/solver/bandit"
	"github.com/tobangado69/vrpsolver/internal/solver/constraint"
	"github.com/tobangado69/vrpsolver/internal/solver/insertion"
	"github.com/tobangado69/vrpsolver/internal/solver/matrix"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/objective"
	"github.com/tobangado69/vrpsolver/internal/solver/population"
	"github.com/tobangado69/vrpsolver/internal/solver/recreate"
	"github.com/tobangado69/vrpsolver/internal/solver/ruin"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// Config tunes one solve run.
type Config struct {
	Concurrency int
	MaxIterations int // 0 = unlimited
	MaxDuration time.Duration // 0 = unlimited
	TargetUnassigned int // stop early once reached, -1 = disabled
	PopulationCap int
	RuinMin int
	RuinMax int
	BanditEpsilon float64
	Seed int64
	// InitialSolutions is the number of constructive starts seeded into
	// the population, each using a different recreate operator
	// (search.initialSolutions).
	InitialSolutions int
	// StagnationWindow stops the search once this many iterations have
	// passed since the population frontier last accepted an improving
	// candidate (termination.variation). 0 disables the check.
	StagnationWindow int
	// TargetCost stops the search once an accepted candidate's
	// minimize-cost objective score is at or below this value
	// (termination.targetCost). Only checked when HasTargetCost is true.
	TargetCost float64
	HasTargetCost bool
}

// DefaultConfig returns suggested defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		MaxIterations: 0,
		MaxDuration: 0,
		TargetUnassigned: -1,
		PopulationCap: 4,
		RuinMin: 1,
		RuinMax: 3,
		BanditEpsilon: 0.1,
		Seed: 1,
		InitialSolutions: 2,
		StagnationWindow: 2000,
		HasTargetCost: false,
	}
}

// DefaultRuinOperators is the full ruin family, enabled when
// search.operators names nothing.
func DefaultRuinOperators() []ruin.Operator {
	return []ruin.Operator{ruin.Random{}, ruin.Cluster{}, ruin.Worst{}, ruin.Related{}, ruin.Route{}}
}

// DefaultRecreateOperators is the full recreate family.
func DefaultRecreateOperators() []recreate.Operator {
	return []recreate.Operator{
		recreate.Cheapest{},
		recreate.Regret2{},
		recreate.Regret3{},
		recreate.BlinkCheapest{BlinkProbability: 0.1},
	}
}

// OperatorsByName resolves search.operators names against both families.
// Unknown names are skipped; empty input enables everything.
func OperatorsByName(names []string) ([]ruin.Operator, []recreate.Operator) {
	if len(names) == 0 {
		return DefaultRuinOperators(), DefaultRecreateOperators()
	}
	enabled := make(map[string]bool, len(names))
	for _, n := range names {
		enabled[n] = true
	}
	var ruins []ruin.Operator
	for _, op := range DefaultRuinOperators() {
		if enabled[op.Name()] {
			ruins = append(ruins, op)
		}
	}
	var recreates []recreate.Operator
	for _, op := range DefaultRecreateOperators() {
		if enabled[op.Name()] {
			recreates = append(recreates, op)
		}
	}
	if len(ruins) == 0 {
		ruins = DefaultRuinOperators()
	}
	if len(recreates) == 0 {
		recreates = DefaultRecreateOperators()
	}
	return ruins, recreates
}

// Progress is emitted periodically for realtime streaming and health
// reporting.
type Progress struct {
	Iteration int64
	PopulationSize int
	BestScore []float64
	Elapsed time.Duration
}

// Engine wires together every solver component for one problem.
type Engine struct {
	Problem *model.Problem
	Matrix matrix.Provider
	Objectives objective.Spec
	RuinOps []ruin.Operator
	RecreateOps []recreate.Operator
	Config Config
	Logger *logging.Logger

	OnProgress func(Progress)

	vehicleCost func(*schedule.Route) float64
}

// New builds an engine for one problem. Constraint pipelines are not
// built here: solution-level constraints (sync tentative placements,
// reload resource pools) carry mutable state, so every worker and every
// constructive restart builds its own pipelineSet instead of sharing one
// across goroutines.
func New(problem *model.Problem, provider matrix.Provider, objectives objective.Spec, cfg Config) *Engine {
	return &Engine{
		Problem: problem,
		Matrix: provider,
		Objectives: objectives,
		Config: cfg,
		vehicleCost: objective.VehicleCost(problem),
	}
}

// pipelineSet is one goroutine's private constraint pipelines: one per
// vehicle id, cross-route constraints shared within the set via a single
// SharedConstraints instance, nothing shared outside it.
type pipelineSet struct {
	byVehicle map[string]*constraint.Pipeline
	// distinct holds every constraint instance in the set exactly once
	// (per-vehicle constraints appear in one pipeline, shared ones in
	// all), for rebuilding solution-level state against a candidate.
	distinct []constraint.Constraint
}

// newPipelineSet builds the built-in hard pack per vehicle id with one
// SharedConstraints instance spanning the set.
func (e *Engine) newPipelineSet() *pipelineSet {
	shared := constraint.NewSharedConstraints()
	byVehicle := map[string]*constraint.Pipeline{}
	for _, vt := range e.Problem.VehicleTypes {
		for _, vid := range vt.VehicleIDs {
			hard := constraint.BuiltinHardPackWithShifts(vt.Capacity, vt.Skills, vt.Limits, vt.Shifts, shared)
			byVehicle[vid] = constraint.NewPipeline(hard...)
		}
	}
	seen := map[constraint.Constraint]bool{}
	var distinct []constraint.Constraint
	for _, p := range byVehicle {
		for _, c := range p.All() {
			if !seen[c] {
				seen[c] = true
				distinct = append(distinct, c)
			}
		}
	}
	return &pipelineSet{byVehicle: byVehicle, distinct: distinct}
}

func (ps *pipelineSet) pipelineFor(vehicleID string) *constraint.Pipeline {
	return ps.byVehicle[vehicleID]
}

// resync rebuilds every constraint's solution-level state from sol
// itself, discarding whatever the previous candidate left behind. Called
// once per ruin/recreate step, after ruin, so recreate's feasibility
// probes see exactly the candidate's own placements.
func (ps *pipelineSet) resync(sol constraint.Solution) {
	for _, c := range ps.distinct {
		c.AcceptSolution(sol)
	}
}

func (e *Engine) tasksOf(jobID string, taskIndex int) model.Task {
	job, ok := e.Problem.JobByID(jobID)
	if !ok || taskIndex < 0 || taskIndex >= len(job.Tasks) {
		return model.Task{}
	}
	return job.Tasks[taskIndex]
}

func (e *Engine) dd(profile string, from, to model.Location) (int64, int64) {
	return e.Matrix.Distance(profile, from, to), e.Matrix.Duration(profile, from, to)
}

// routeRecompute rebuilds route's forward schedule, capacity curve and
// backward slack from activity index from onward, reusing the same
// preload computation insertion.Evaluator.BestInsertion applies so a
// route ruin has touched stays as internally consistent as one insertion
// has touched. Installed on every run's root solution via
// population.Solution.SetRecompute.
func (e *Engine) routeRecompute(route *schedule.Route, from int) {
	preload := insertion.PreloadedDelivery(route, e.Problem.Dimensions, e.tasksOf)
	route.Recompute(from, e.Problem.Dimensions, e.dd, e.tasksOf, preload)
	route.RecomputeSlack(len(route.Activities)-1, e.dd, e.tasksOf)
}

// emptyRoutes builds one empty candidate route per vehicle shift not
// already present in sol, so the insertion evaluator can consider opening
// a fresh vehicle.
func (e *Engine) emptyRoutes(sol *population.Solution) []*schedule.Route {
	var out []*schedule.Route
	for _, vt := range e.Problem.VehicleTypes {
		for _, vid := range vt.VehicleIDs {
			for shiftIdx := range vt.Shifts {
				if _, ok := sol.RouteByVehicleShift(vid, shiftIdx); ok {
					continue
				}
				out = append(out, &schedule.Route{
					VehicleID: vid,
					TypeID: vt.TypeID,
					Profile: vt.Profile,
					ShiftIndex: shiftIdx,
					State: map[string]interface{}{},
				})
			}
		}
	}
	return out
}

func (e *Engine) candidateRoutesFor(sol *population.Solution, job model.Job) []*schedule.Route {
	routes := sol.Routes()
	nonEmptyOrOwn := routes[:0:0]
	nonEmptyOrOwn = append(nonEmptyOrOwn, routes...)
	return append(nonEmptyOrOwn, e.emptyRoutes(sol)...)
}

// constructiveOps are the recreate operators restarts rotate through, so
// each initial solution is built with a different configuration.
func constructiveOps() []recreate.Operator {
	return []recreate.Operator{
		recreate.Cheapest{},
		recreate.Regret2{},
		recreate.BlinkCheapest{BlinkProbability: 0.1},
		recreate.Regret3{},
	}
}

// initialSolution runs one constructive pass over every job against an
// all-empty solution. restart selects the recreate operator and offsets
// the PRNG so restarts diverge. Each restart gets a fresh pipelineSet so
// no sync/pool state bleeds between restarts.
func (e *Engine) initialSolution(restart int) *population.Solution {
	sol := population.NewSolution(e.Problem)
	sol.SetRecompute(e.routeRecompute)
	ps := e.newPipelineSet()
	eval := &insertion.Evaluator{Matrix: e.Matrix, Dims: e.Problem.Dimensions, TasksOf: e.tasksOf, Pipe: ps.pipelineFor}

	var jobIDs []string
	for _, j := range e.Problem.Jobs {
		jobIDs = append(jobIDs, j.ID)
	}

	ops := constructiveOps()
	op := ops[restart%len(ops)]
	rng := rand.New(rand.NewSource(e.Config.Seed + int64(restart)*7919))
	routeSource := func(s recreate.Solution, job model.Job) []*schedule.Route {
		return e.candidateRoutesFor(sol, job)
	}
	op.Recreate(sol, eval, ps.pipelineFor, routeSource, jobIDs, rng)
	sol.Scores = e.Objectives.Score(sol, e.vehicleCost)
	return sol
}

// Run executes the worker pool until ctx is cancelled or a termination
// criterion fires, returning the best solution found.
func (e *Engine) Run(ctx context.Context) *population.Solution {
	pop := e.newPopulation()
	starts := e.Config.InitialSolutions
	if starts < 1 {
		starts = 1
	}
	for restart := 0; restart < starts; restart++ {
		init := e.initialSolution(restart)
		pop.Seed(init, init.Scores)
	}

	var arms []bandit.Arm
	for _, r := range e.RuinOps {
		for _, c := range e.RecreateOps {
			arms = append(arms, bandit.Arm{Ruin: r.Name(), Recreate: c.Name()})
		}
	}
	bd := bandit.New(arms, e.Config.BanditEpsilon)

	ruinByName := map[string]ruin.Operator{}
	for _, r := range e.RuinOps {
		ruinByName[r.Name()] = r
	}
	recreateByName := map[string]recreate.Operator{}
	for _, c := range e.RecreateOps {
		recreateByName[c.Name()] = c
	}

	costIdx := -1
	for i, o := range e.Objectives.Objectives {
		if o.Name() == objective.MinimizeCost {
			costIdx = i
			break
		}
	}

	var iterations int64
	var lastImprovement int64
	var wg sync.WaitGroup
	start := time.Now()
	deadline := time.Time{}
	if e.Config.MaxDuration > 0 {
		deadline = start.Add(e.Config.MaxDuration)
	}

	concurrency := e.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(e.Config.Seed + int64(workerID) + 1))
			e.workerLoop(ctx, workerID, pop, bd, ruinByName, recreateByName, rng, &iterations, &lastImprovement, costIdx, deadline)
		}(w)
	}
	wg.Wait()

	if e.OnProgress != nil {
		e.OnProgress(Progress{Iteration: atomic.LoadInt64(&iterations), PopulationSize: pop.Size(), Elapsed: time.Since(start)})
	}

	best, _ := pop.Best()
	return best
}

func (e *Engine) newPopulation() *population.Population {
	popCap := e.Config.PopulationCap
	if popCap <= 0 {
		popCap = 4
	}
	return population.New(popCap)
}

func (e *Engine) workerLoop(ctx context.Context, workerID int, pop *population.Population, bd *bandit.Bandit, ruinByName map[string]ruin.Operator, recreateByName map[string]recreate.Operator, rng *rand.Rand, iterations *int64, lastImprovement *int64, costIdx int, deadline time.Time) {
	// Worker-local pipelines: solution-level constraint state (sync
	// tentative placements, reload pools) is written by Commit's
	// AcceptSolution, so sharing instances across workers would race and
	// evaluate one worker's candidate against another's placements.
	ps := e.newPipelineSet()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}
		if e.Config.MaxIterations > 0 && atomic.LoadInt64(iterations) >= int64(e.Config.MaxIterations) {
			return
		}
		if e.Config.StagnationWindow > 0 && atomic.LoadInt64(iterations)-atomic.LoadInt64(lastImprovement) >= int64(e.Config.StagnationWindow) {
			return
		}

		parent, ok := pop.DrawParent(rng)
		if !ok {
			return
		}
		candidate := parent.Clone()

		arm := bd.Select(rng)
		rOp := ruinByName[arm.Ruin]
		cOp := recreateByName[arm.Recreate]
		if rOp == nil || cOp == nil {
			continue
		}

		count := e.Config.RuinMin
		if e.Config.RuinMax > e.Config.RuinMin {
			count += rng.Intn(e.Config.RuinMax - e.Config.RuinMin + 1)
		}
		removed := rOp.Ruin(candidate, count, rng)
		if len(removed) == 0 {
			continue
		}
		ps.resync(candidate)

		eval := &insertion.Evaluator{Matrix: e.Matrix, Dims: e.Problem.Dimensions, TasksOf: e.tasksOf, Pipe: ps.pipelineFor}
		routeSource := func(s recreate.Solution, job model.Job) []*schedule.Route {
			return e.candidateRoutesFor(candidate, job)
		}
		cOp.Recreate(candidate, eval, ps.pipelineFor, routeSource, removed, rng)

		candidate.Scores = e.Objectives.Score(candidate, e.vehicleCost)
		accepted := pop.Offer(candidate, candidate.Scores)

		reward := 0.0
		if accepted {
			reward = 1.0
		}
		bd.Update(arm, reward)

		n := atomic.AddInt64(iterations, 1)
		if accepted {
			atomic.StoreInt64(lastImprovement, n)
		}
		if e.Config.TargetUnassigned >= 0 && len(candidate.Unassigned()) <= e.Config.TargetUnassigned {
			return
		}
		if accepted && e.Config.HasTargetCost && costIdx >= 0 && costIdx < len(candidate.Scores) && candidate.Scores[costIdx] <= e.Config.TargetCost {
			return
		}
		if e.OnProgress != nil && n%100 == 0 {
			e.OnProgress(Progress{Iteration: n, PopulationSize: pop.Size(), BestScore: candidate.Scores})
		}
	}
}
