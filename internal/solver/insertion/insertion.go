// Package insertion implements the insertion heuristic: given a job and
// a solution, find the cheapest feasible place across
// every vehicle's route for every place alternative of every task,
// honoring pickup/delivery ordering by inserting a job's tasks as one
// atomic group. Adapted from route_optimizer.go's OptimizeRoute,
// generalized from a single fixed stop list into a multi-task,
// multi-place-alternative search.
package insertion

import (
	"github.com/tobangado69/vrpsolver/internal/solver/constraint"
	"github.com/tobangado69/vrpsolver/internal/solver/matrix"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// Solution is the read/write surface the evaluator needs: enough of
// population.Solution to enumerate routes and commit a winning candidate.
type Solution interface {
	constraint.Solution
	Problem() *model.Problem
	SetRoute(r *schedule.Route)
	MarkAssigned(jobID string)
}

// PipelineFor resolves the per-vehicle constraint pipeline (capacity,
// skills, and limits differ per vehicle type, so the engine keeps one
// pipeline per vehicle id).
type PipelineFor func(vehicleID string) *constraint.Pipeline

// TasksOf resolves a job's task by index, used by schedule.Recompute.
type TasksOf func(jobID string, taskIndex int) model.Task

// Candidate is a feasible insertion found for a job.
type Candidate struct {
	VehicleID string
	ShiftIndex int
	Route *schedule.Route // the full candidate route, post-insertion, recomputed
	Delta float64 // soft-cost + travel-cost delta over the route's prior state
}

// Evaluator searches every open route (and, if emptyRoutes is supplied,
// every not-yet-used vehicle shift) for the cheapest feasible placement
// of a job's task sequence.
type Evaluator struct {
	Matrix matrix.Provider
	Dims int
	TasksOf TasksOf
	Pipe PipelineFor
}

func (e *Evaluator) dd(profile string) schedule.DistanceDuration {
	return func(_ string, from, to model.Location) (int64, int64) {
		return e.Matrix.Distance(profile, from, to), e.Matrix.Duration(profile, from, to)
	}
}

// BestInsertion searches candidateRoutes (existing routes plus any empty
// shift stand-ins the caller wants probed) for the cheapest feasible
// placement of job. Returns ok=false if no route can accept the job.
func (e *Evaluator) BestInsertion(sol Solution, job model.Job, candidateRoutes []*schedule.Route) (Candidate, bool) {
	var best Candidate
	found := false

	for _, route := range candidateRoutes {
		pipe := e.Pipe(route.VehicleID)
		cand, ok := e.bestForRoute(sol, pipe, route, job)
		if !ok {
			continue
		}
		if !found || cand.Delta < best.Delta {
			best = cand
			found = true
		}
	}
	return best, found
}

// bestForRoute finds the cheapest feasible insertion of job's full task
// sequence into route, trying every place alternative per task and every
// non-decreasing position combination.
func (e *Evaluator) bestForRoute(sol Solution, pipe *constraint.Pipeline, route *schedule.Route, job model.Job) (Candidate, bool) {
	baseDistance := route.TotalDistance()
	baseDuration := route.TotalDuration()

	var best *schedule.Route
	var bestDelta float64
	found := false

	var recurse func(taskIdx int, minPos int, working *schedule.Route)
	recurse = func(taskIdx int, minPos int, working *schedule.Route) {
		if taskIdx >= len(job.Tasks) {
			newDistance := working.TotalDistance()
			newDuration := working.TotalDuration()
			travelDelta := float64((newDistance - baseDistance) + (newDuration - baseDuration))
			softTotal := routeSoftCost(pipe, sol, working, job)
			delta := travelDelta + softTotal
			if !found || delta < bestDelta {
				best = working
				bestDelta = delta
				found = true
			}
			return
		}

		task := job.Tasks[taskIdx]
		for placeIdx, place := range task.Places {
			for pos := minPos; pos <= len(working.Activities); pos++ {
				act := schedule.Activity{
					Kind: schedule.JobPlace,
					JobID: job.ID,
					TaskIndex: taskIdx,
					PlaceIndex: placeIdx,
					Location: place.Location,
					Duration: place.Duration,
				}
				trial := working.Clone()
				trial.Activities = insertAt(trial.Activities, pos, act)
				preload := e.preloadedDelivery(trial)
				trial.Recompute(0, e.Dims, e.dd(route.Profile), e.TasksOf, preload)
				trial.RecomputeSlack(len(trial.Activities)-1, e.dd(route.Profile), e.TasksOf)

				ctx := constraint.InsertionContext{
					Route: trial,
					Position: pos,
					Job: job,
					TaskIndex: taskIdx,
					PlaceIndex: placeIdx,
					NewActivity: trial.Activities[pos],
				}
				if v := pipe.EvaluateActivity(sol, ctx); v != nil {
					continue
				}
				recurse(taskIdx+1, pos+1, trial)
			}
		}
	}

	recurse(0, 0, route)

	if !found {
		return Candidate{}, false
	}
	return Candidate{
		VehicleID: route.VehicleID,
		ShiftIndex: route.ShiftIndex,
		Route: best,
		Delta: bestDelta,
	}, true
}

// routeSoftCost sums the soft-constraint contribution across every
// activity of job on the final candidate route.
func routeSoftCost(pipe *constraint.Pipeline, sol constraint.Solution, route *schedule.Route, job model.Job) float64 {
	var total float64
	for i, a := range route.Activities {
		if a.Kind != schedule.JobPlace || a.JobID != job.ID {
			continue
		}
		ctx := constraint.InsertionContext{
			Route: route,
			Position: i,
			Job: job,
			TaskIndex: a.TaskIndex,
			PlaceIndex: a.PlaceIndex,
			NewActivity: a,
		}
		total += pipe.SoftCost(sol, ctx)
	}
	return total
}

func insertAt(acts []schedule.Activity, pos int, act schedule.Activity) []schedule.Activity {
	out := make([]schedule.Activity, 0, len(acts)+1)
	out = append(out, acts[:pos]...)
	out = append(out, act)
	out = append(out, acts[pos:]...)
	return out
}

// preloadedDelivery returns the demand a vehicle must carry from the
// depot to satisfy every delivery task in route's first trip segment
// (up to the first reload, or the whole route if it has none) — spec.md
// §4.1's "load starts at the sum of all delivery demands (goods
// preloaded)". Pickup demand is picked up along the way and never
// preloaded.
func (e *Evaluator) preloadedDelivery(route *schedule.Route) model.Demand {
	return PreloadedDelivery(route, e.Dims, e.TasksOf)
}

// PreloadedDelivery is the exported form of the same computation, reused
// by internal/solver/engine to keep a route's capacity curve correct
// after ruin strips activities from it (the incremental-update contract
// applies on removal exactly as it does on insertion).
func PreloadedDelivery(route *schedule.Route, dims int, tasksOf TasksOf) model.Demand {
	sum := make(model.Demand, dims)
	for i := range route.Activities {
		act := &route.Activities[i]
		if act.IsTripBoundary() {
			break
		}
		if act.Kind != schedule.JobPlace {
			continue
		}
		task := tasksOf(act.JobID, act.TaskIndex)
		if task.Kind == model.TaskDelivery {
			sum = sum.Add(task.Demand.Negate())
		}
	}
	return sum
}

// Commit installs candidate's route onto sol and marks job assigned, plus
// notifies the pipeline's AcceptRoute/AcceptSolution hooks.
func Commit(sol Solution, pipe *constraint.Pipeline, job model.Job, cand Candidate) {
	sol.SetRoute(cand.Route)
	sol.MarkAssigned(job.ID)
	pipe.AcceptRoute(cand.Route)
	pipe.AcceptSolution(sol)
}
