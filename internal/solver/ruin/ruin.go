// Package ruin implements the destroy operators: each operator removes
// a subset of jobs from a solution's routes, returning
// the now-unassigned job ids for recreate to re-insert.
package ruin

import (
	"math/rand"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// Solution is the read/write surface a ruin operator needs.
type Solution interface {
	Problem() *model.Problem
	Routes() []*schedule.Route
	RouteByVehicleShift(vehicleID string, shiftIndex int) (*schedule.Route, bool)
	SetRoute(r *schedule.Route)
	AssignedVehicle(jobID string) (string, bool)
	MarkUnassigned(jobID, reason string)
	// Recompute rebuilds route's forward schedule, capacity curve and
	// backward slack from activity index from onward, the incremental-
	// update contract §4.1 requires on the removal side to mirror
	// insertion's. Ruin operators must call it on every route they strip
	// activities from before handing it back via SetRoute.
	Recompute(route *schedule.Route, from int)
}

// Operator removes up to count jobs from sol's routes, returning the
// removed job ids. Implementations must leave every touched route
// recomputed and internally consistent, which recreate can then rebuild on top of.
type Operator interface {
	Name() string
	Ruin(sol Solution, count int, rng *rand.Rand) []string
}

// removeJobFromRoute strips every activity belonging to jobID from route,
// recomputing the schedule from the earliest touched index.
func removeJobFromRoute(sol Solution, route *schedule.Route, jobID string) *schedule.Route {
	r := route.Clone()
	first := -1
	kept := r.Activities[:0:0]
	for _, a := range r.Activities {
		if a.Kind == schedule.JobPlace && a.JobID == jobID {
			if first == -1 {
				first = len(kept)
			}
			continue
		}
		kept = append(kept, a)
	}
	r.Activities = kept
	if first >= 0 {
		sol.Recompute(r, first)
	}
	return r
}

// assignedJobs returns every job id currently placed on any route.
func assignedJobs(sol Solution) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range sol.Routes() {
		for _, a := range r.Activities {
			if a.Kind == schedule.JobPlace && !seen[a.JobID] {
				seen[a.JobID] = true
				out = append(out, a.JobID)
			}
		}
	}
	return out
}

func removeJob(sol Solution, jobID, reason string) {
	vehicleID, ok := sol.AssignedVehicle(jobID)
	if !ok {
		return
	}
	for _, r := range sol.Routes() {
		if r.VehicleID != vehicleID {
			continue
		}
		has := false
		for _, a := range r.Activities {
			if a.Kind == schedule.JobPlace && a.JobID == jobID {
				has = true
				break
			}
		}
		if !has {
			continue
		}
		updated := removeJobFromRoute(sol, r, jobID)
		sol.SetRoute(updated)
	}
	sol.MarkUnassigned(jobID, reason)
}

// Random removes count uniformly random assigned jobs.
type Random struct{}

func (Random) Name() string { return "random" }

func (Random) Ruin(sol Solution, count int, rng *rand.Rand) []string {
	pool := assignedJobs(sol)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if count > len(pool) {
		count = len(pool)
	}
	removed := pool[:count]
	for _, id := range removed {
		removeJob(sol, id, "ruin:random")
	}
	return removed
}

// Route removes every job from a small number of randomly chosen routes,
// emptying them entirely.
type Route struct{}

func (Route) Name() string { return "route" }

func (Route) Ruin(sol Solution, count int, rng *rand.Rand) []string {
	routes := sol.Routes()
	nonEmpty := routes[:0:0]
	for _, r := range routes {
		if len(r.Activities) > 0 {
			nonEmpty = append(nonEmpty, r)
		}
	}
	rng.Shuffle(len(nonEmpty), func(i, j int) { nonEmpty[i], nonEmpty[j] = nonEmpty[j], nonEmpty[i] })

	var removed []string
	for _, r := range nonEmpty {
		if len(removed) >= count {
			break
		}
		ids := map[string]bool{}
		for _, a := range r.Activities {
			if a.Kind == schedule.JobPlace {
				ids[a.JobID] = true
			}
		}
		for id := range ids {
			removeJob(sol, id, "ruin:route")
			removed = append(removed, id)
		}
	}
	return removed
}

// Worst removes the count jobs whose removal yields the largest schedule
// slack gain, approximated here by total activity duration plus distance
// contribution of each job's own activities.
type Worst struct {
	CostOf func(route *schedule.Route, jobID string) float64
}

func (Worst) Name() string { return "worst" }

func (w Worst) Ruin(sol Solution, count int, rng *rand.Rand) []string {
	type scored struct {
		id string
		cost float64
	}
	var candidates []scored
	for _, r := range sol.Routes() {
		seen := map[string]bool{}
		for _, a := range r.Activities {
			if a.Kind != schedule.JobPlace || seen[a.JobID] {
				continue
			}
			seen[a.JobID] = true
			cost := 0.0
			if w.CostOf != nil {
				cost = w.CostOf(r, a.JobID)
			}
			candidates = append(candidates, scored{a.JobID, cost})
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	for i := 1; i < len(candidates); i++ {
		key := candidates[i]
		j := i - 1
		for j >= 0 && candidates[j].cost < key.cost {
			candidates[j+1] = candidates[j]
			j--
		}
		candidates[j+1] = key
	}
	if count > len(candidates) {
		count = len(candidates)
	}
	var removed []string
	for _, c := range candidates[:count] {
		removeJob(sol, c.id, "ruin:worst")
		removed = append(removed, c.id)
	}
	return removed
}

// Related removes a seed job and its count-1 closest relatives by
// location proximity.
type Related struct {
	LocationOf func(jobID string) model.Location
	Distance func(a, b model.Location) int64
}

func (Related) Name() string { return "related" }

func (r Related) Ruin(sol Solution, count int, rng *rand.Rand) []string {
	pool := assignedJobs(sol)
	if len(pool) == 0 {
		return nil
	}
	seed := pool[rng.Intn(len(pool))]
	if r.LocationOf == nil || r.Distance == nil {
		// No proximity metric wired: degrade to a uniform random sample
		// of assigned jobs, matching Random's behavior.
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		if count > len(pool) {
			count = len(pool)
		}
		removed := pool[:count]
		for _, id := range removed {
			removeJob(sol, id, "ruin:related")
		}
		return removed
	}

	seedLoc := r.LocationOf(seed)
	type scored struct {
		id string
		dist int64
	}
	scoredPool := make([]scored, 0, len(pool))
	for _, id := range pool {
		scoredPool = append(scoredPool, scored{id, r.Distance(seedLoc, r.LocationOf(id))})
	}
	for i := 1; i < len(scoredPool); i++ {
		key := scoredPool[i]
		j := i - 1
		for j >= 0 && scoredPool[j].dist > key.dist {
			scoredPool[j+1] = scoredPool[j]
			j--
		}
		scoredPool[j+1] = key
	}
	if count > len(scoredPool) {
		count = len(scoredPool)
	}
	var removed []string
	for _, s := range scoredPool[:count] {
		removeJob(sol, s.id, "ruin:related")
		removed = append(removed, s.id)
	}
	return removed
}

// Cluster removes a random contiguous run of activities from a single
// route.
type Cluster struct{}

func (Cluster) Name() string { return "cluster" }

func (Cluster) Ruin(sol Solution, count int, rng *rand.Rand) []string {
	routes := sol.Routes()
	nonEmpty := routes[:0:0]
	for _, r := range routes {
		if len(r.Activities) > 0 {
			nonEmpty = append(nonEmpty, r)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	route := nonEmpty[rng.Intn(len(nonEmpty))]

	var jobActivities []int
	for i, a := range route.Activities {
		if a.Kind == schedule.JobPlace {
			jobActivities = append(jobActivities, i)
		}
	}
	if len(jobActivities) == 0 {
		return nil
	}
	if count > len(jobActivities) {
		count = len(jobActivities)
	}
	start := rng.Intn(len(jobActivities) - count + 1)

	seen := map[string]bool{}
	var removed []string
	for _, idx := range jobActivities[start: start+count] {
		id := route.Activities[idx].JobID
		if !seen[id] {
			seen[id] = true
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		removeJob(sol, id, "ruin:cluster")
	}
	return removed
}
