// Package recreate implements the repair operators: each operator takes
// a set of unassigned job ids and reinserts as many as
// possible using internal/solver/insertion's evaluator, differing only in
// the order jobs are attempted and how many candidate positions are
// blinked past.
package recreate

import (
	"math/rand"
	"sort"

	"github.com/tobangado69/vrpsolver/internal/solver/constraint"
	"github.com/tobangado69/vrpsolver/internal/solver/insertion"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// Solution is the surface a recreate operator needs, satisfied by
// population.Solution.
type Solution interface {
	insertion.Solution
}

// RouteSource supplies the candidate routes (existing plus unused empty
// shifts) a job may be inserted into; the engine owns how empty routes
// are materialized per vehicle type so recreate stays solution-agnostic.
type RouteSource func(sol Solution, job model.Job) []*schedule.Route

// Operator reinserts jobIDs into sol, returning the ids that remain
// unassigned after every attempt.
type Operator interface {
	Name() string
	Recreate(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, jobIDs []string, rng *rand.Rand) []string
}

// syncConstraintFrom recovers the shared *constraint.SyncConstraint
// instance from whichever pipeline vehicleID resolves to; every pipeline
// built by constraint.BuiltinHardPack references the same SharedConstraints
// instance, so any vehicle id's pipeline yields the same Sync constraint.
func syncConstraintFrom(pipe insertion.PipelineFor, vehicleID string) *constraint.SyncConstraint {
	p := pipe(vehicleID)
	if p == nil {
		return nil
	}
	for _, c := range p.All() {
		if sc, ok := c.(*constraint.SyncConstraint); ok {
			return sc
		}
	}
	return nil
}

func firstActivityOf(route *schedule.Route, jobID string) (schedule.Activity, bool) {
	for _, a := range route.Activities {
		if a.Kind == schedule.JobPlace && a.JobID == jobID {
			return a, true
		}
	}
	return schedule.Activity{}, false
}

// insertSyncGroups partitions jobIDs into sync-member batches (jobs
// sharing a non-empty Sync.Key) and the remaining non-sync ids, attempting
// every sync group as one atomic all-or-none insertion before returning
// control to the caller's own per-job strategy for what's left. This keeps
// the unassigned registry from ever holding a strict subset of a sync
// group (spec.md §4.2/§7).
func insertSyncGroups(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, jobIDs []string) (unassigned []string, remaining []string) {
	jobs := lookupJobs(sol, jobIDs)
	byKey := map[string][]model.Job{}
	var order []string
	for _, j := range jobs {
		if j.Sync == nil || j.Sync.Key == "" {
			remaining = append(remaining, j.ID)
			continue
		}
		if _, ok := byKey[j.Sync.Key]; !ok {
			order = append(order, j.Sync.Key)
		}
		byKey[j.Sync.Key] = append(byKey[j.Sync.Key], j)
	}

	for _, key := range order {
		members := byKey[key]
		if !insertSyncGroup(sol, eval, pipe, routes, members) {
			for _, m := range members {
				unassigned = append(unassigned, m.ID)
			}
		}
	}
	return unassigned, remaining
}

// insertSyncGroup finds a feasible candidate for every member of a sync
// group before committing any of them. Each found candidate is staged on
// the shared SyncConstraint so later members' tolerance/distinct-vehicle
// checks see earlier members' tentative placement even though nothing has
// been committed yet; a failure anywhere rolls back the staging and
// leaves every member unassigned.
func insertSyncGroup(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, members []model.Job) bool {
	if len(members) == 0 {
		return true
	}
	key := members[0].Sync.Key

	type planned struct {
		job  model.Job
		cand insertion.Candidate
	}
	var plan []planned
	var sc *constraint.SyncConstraint

	for _, job := range members {
		candidateRoutes := routes(sol, job)
		if sc == nil && len(candidateRoutes) > 0 {
			sc = syncConstraintFrom(pipe, candidateRoutes[0].VehicleID)
		}
		cand, ok := eval.BestInsertion(sol, job, candidateRoutes)
		if !ok {
			if sc != nil {
				sc.Rollback(key)
			}
			return false
		}
		plan = append(plan, planned{job, cand})
		if sc != nil {
			if act, found := firstActivityOf(cand.Route, job.ID); found {
				sc.Stage(key, cand.VehicleID, act.ServiceStart)
			}
		}
	}

	for _, p := range plan {
		insertion.Commit(sol, pipe(p.cand.VehicleID), p.job, p.cand)
	}
	return true
}

func lookupJobs(sol Solution, jobIDs []string) []model.Job {
	out := make([]model.Job, 0, len(jobIDs))
	for _, id := range jobIDs {
		if j, ok := sol.JobByID(id); ok {
			out = append(out, j)
		}
	}
	return out
}

// Cheapest inserts jobs one at a time, each time choosing whichever
// remaining job has the single cheapest feasible insertion anywhere.
type Cheapest struct{}

func (Cheapest) Name() string { return "cheapest" }

func (Cheapest) Recreate(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, jobIDs []string, rng *rand.Rand) []string {
	syncUnassigned, nonSync := insertSyncGroups(sol, eval, pipe, routes, jobIDs)
	unassigned := syncUnassigned

	remaining := lookupJobs(sol, nonSync)

	for len(remaining) > 0 {
		bestIdx := -1
		var bestCand insertion.Candidate
		for i, job := range remaining {
			cand, ok := eval.BestInsertion(sol, job, routes(sol, job))
			if !ok {
				continue
			}
			if bestIdx == -1 || cand.Delta < bestCand.Delta {
				bestIdx = i
				bestCand = cand
			}
		}
		if bestIdx == -1 {
			for _, j := range remaining {
				unassigned = append(unassigned, j.ID)
			}
			break
		}
		job := remaining[bestIdx]
		insertion.Commit(sol, pipe(bestCand.VehicleID), job, bestCand)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return unassigned
}

// regretScored pairs a job with its best and second-best (or k-th best)
// insertion delta, used to rank by regret.
type regretScored struct {
	job model.Job
	best insertion.Candidate
	found bool
	regret float64
}

// regretByK computes, for every job, the best candidate and the regret
// value: the sum of (k-th delta - best delta) across the top k
// candidates, the basis for regret-k recreate.
func regretByK(sol Solution, eval *insertion.Evaluator, routes RouteSource, jobs []model.Job, k int) []regretScored {
	out := make([]regretScored, 0, len(jobs))
	for _, job := range jobs {
		cands := rankedCandidates(eval, sol, job, routes(sol, job))
		if len(cands) == 0 {
			out = append(out, regretScored{job: job})
			continue
		}
		best := cands[0]
		var regret float64
		for i := 1; i < k && i < len(cands); i++ {
			regret += cands[i].Delta - best.Delta
		}
		out = append(out, regretScored{job: job, best: best, found: true, regret: regret})
	}
	return out
}

func rankedCandidates(eval *insertion.Evaluator, sol Solution, job model.Job, candidateRoutes []*schedule.Route) []insertion.Candidate {
	var all []insertion.Candidate
	for _, route := range candidateRoutes {
		if cand, ok := eval.BestInsertion(sol, job, []*schedule.Route{route}); ok {
			all = append(all, cand)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Delta < all[j].Delta })
	return all
}

func regretRecreate(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, jobIDs []string, k int) []string {
	syncUnassigned, nonSync := insertSyncGroups(sol, eval, pipe, routes, jobIDs)
	unassigned := syncUnassigned

	remaining := lookupJobs(sol, nonSync)

	for len(remaining) > 0 {
		scored := regretByK(sol, eval, routes, remaining, k)

		bestIdx := -1
		for i, s := range scored {
			if !s.found {
				continue
			}
			if bestIdx == -1 || s.regret > scored[bestIdx].regret {
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			for _, j := range remaining {
				unassigned = append(unassigned, j.ID)
			}
			break
		}
		job := remaining[bestIdx]
		insertion.Commit(sol, pipe(scored[bestIdx].best.VehicleID), job, scored[bestIdx].best)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return unassigned
}

// Regret2 inserts the job with the greatest difference between its best
// and second-best insertion cost first, so jobs with few good options are
// placed before their options disappear.
type Regret2 struct{}

func (Regret2) Name() string { return "regret-2" }

func (Regret2) Recreate(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, jobIDs []string, rng *rand.Rand) []string {
	return regretRecreate(sol, eval, pipe, routes, jobIDs, 2)
}

// Regret3 is Regret2 generalized to the top-3 candidates.
type Regret3 struct{}

func (Regret3) Name() string { return "regret-3" }

func (Regret3) Recreate(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, jobIDs []string, rng *rand.Rand) []string {
	return regretRecreate(sol, eval, pipe, routes, jobIDs, 3)
}

// BlinkCheapest is Cheapest with randomized "blinking": every per-route
// candidate after a job's cheapest one is skipped with probability
// BlinkProbability (0.1 when unset), injecting noise to diversify
// restarts.
type BlinkCheapest struct {
	BlinkProbability float64
}

func (b BlinkCheapest) Name() string { return "blink-cheapest" }

func (b BlinkCheapest) Recreate(sol Solution, eval *insertion.Evaluator, pipe insertion.PipelineFor, routes RouteSource, jobIDs []string, rng *rand.Rand) []string {
	p := b.BlinkProbability
	if p <= 0 {
		p = 0.1
	}
	syncUnassigned, nonSync := insertSyncGroups(sol, eval, pipe, routes, jobIDs)
	unassigned := syncUnassigned

	remaining := lookupJobs(sol, nonSync)

	for len(remaining) > 0 {
		bestIdx := -1
		var bestCand insertion.Candidate
		for i, job := range remaining {
			cands := rankedCandidates(eval, sol, job, routes(sol, job))
			var chosen *insertion.Candidate
			for ci := range cands {
				if ci > 0 && rng.Float64() < p {
					continue
				}
				chosen = &cands[ci]
				break
			}
			if chosen == nil {
				continue
			}
			if bestIdx == -1 || chosen.Delta < bestCand.Delta {
				bestIdx = i
				bestCand = *chosen
			}
		}
		if bestIdx == -1 {
			for _, j := range remaining {
				unassigned = append(unassigned, j.ID)
			}
			break
		}
		job := remaining[bestIdx]
		insertion.Commit(sol, pipe(bestCand.VehicleID), job, bestCand)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return unassigned
}
