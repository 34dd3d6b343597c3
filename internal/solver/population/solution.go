// Package population implements the solution container, the Pareto
// frontier, and the population manager: an RWMutex-guarded shared
// structure with priority-ordered selection.
package population

import (
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/objective"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// UnassignedEntry records why a job could not be placed: the first hard
// constraint code that rejected it across every probed position it was
// tried against. Aliased to objective.UnassignedView so Solution
// satisfies objective.Solution without objective importing population.
type UnassignedEntry = objective.UnassignedView

// RouteRecompute rebuilds a route's forward schedule, capacity curve and
// backward slack from the given activity index onward — the same
// incremental-update contract internal/solver/insertion honors when it
// inserts an activity, mirrored on the removal side.
type RouteRecompute func(route *schedule.Route, from int)

// Solution is a set of routes plus the unassigned registry, global state
// slots, and a cached objective score. It implements
// internal/solver/constraint.Solution.
type Solution struct {
	problem *model.Problem

	routes map[string]*schedule.Route // keyed by vehicleID|shiftIndex
	unassigned map[string]UnassignedEntry

	// Global holds solution-level state slots keyed by constraint id.
	Global map[string]interface{}

	// Scores caches the lexicographic objective tuple. The engine assigns
	// it after building or changing a solution; mutators do not clear it.
	Scores []float64

	// recompute is wired once per solve run by internal/solver/engine
	// (it alone knows the routing matrix and task lookup a recompute
	// needs) and copied across every Clone since it never changes mid-run.
	recompute RouteRecompute
}

// NewSolution builds an empty solution with every job unassigned.
func NewSolution(problem *model.Problem) *Solution {
	s := &Solution{
		problem: problem,
		routes: map[string]*schedule.Route{},
		unassigned: map[string]UnassignedEntry{},
		Global: map[string]interface{}{},
	}
	for _, j := range problem.Jobs {
		s.unassigned[j.ID] = UnassignedEntry{Reason: ""}
	}
	return s
}

func routeKey(vehicleID string, shiftIndex int) string {
	return vehicleID + "|" + itoa(shiftIndex)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Clone performs a copy-on-write duplication: routes are shallow-copied by
// reference (schedule.Route.Clone is only called by mutators on the
// specific routes they touch), and the unassigned/global maps are copied
// so mutation never aliases the parent.
func (s *Solution) Clone() *Solution {
	routes := make(map[string]*schedule.Route, len(s.routes))
	for k, v := range s.routes {
		routes[k] = v
	}
	unassigned := make(map[string]UnassignedEntry, len(s.unassigned))
	for k, v := range s.unassigned {
		unassigned[k] = v
	}
	global := make(map[string]interface{}, len(s.Global))
	for k, v := range s.Global {
		global[k] = v
	}
	scores := make([]float64, len(s.Scores))
	copy(scores, s.Scores)
	return &Solution{
		problem: s.problem,
		routes: routes,
		unassigned: unassigned,
		Global: global,
		Scores: scores,
		recompute: s.recompute,
	}
}

// SetRecompute installs the schedule-recompute hook Recompute delegates
// to. Called once by internal/solver/engine right after constructing a
// run's root solution; every Clone carries the same hook forward.
func (s *Solution) SetRecompute(fn RouteRecompute) { s.recompute = fn }

// Recompute implements internal/solver/ruin.Solution: rebuilds route's
// forward schedule and backward slack from index from onward. A no-op if
// no hook was installed (e.g. in tests that never touch ruin).
func (s *Solution) Recompute(route *schedule.Route, from int) {
	if s.recompute != nil {
		s.recompute(route, from)
	}
}

// Problem returns the immutable problem this solution was built for.
func (s *Solution) Problem() *model.Problem { return s.problem }

// RouteByVehicle implements constraint.Solution, looking up by vehicle id
// only (first matching shift); callers needing a specific shift use
// RouteByVehicleShift.
func (s *Solution) RouteByVehicle(vehicleID string) (*schedule.Route, bool) {
	for _, r := range s.routes {
		if r.VehicleID == vehicleID {
			return r, true
		}
	}
	return nil, false
}

// RouteByVehicleShift looks up the route for one (vehicle, shift) pair.
func (s *Solution) RouteByVehicleShift(vehicleID string, shiftIndex int) (*schedule.Route, bool) {
	r, ok := s.routes[routeKey(vehicleID, shiftIndex)]
	return r, ok
}

// SetRoute installs (or replaces) the route for its (vehicle, shift).
func (s *Solution) SetRoute(r *schedule.Route) {
	s.routes[routeKey(r.VehicleID, r.ShiftIndex)] = r
}

// RemoveRoute drops a route entirely. Ruin operators do not call it; a
// route they empty stays in the solution.
func (s *Solution) RemoveRoute(vehicleID string, shiftIndex int) {
	delete(s.routes, routeKey(vehicleID, shiftIndex))
}

// Routes implements constraint.Solution.
func (s *Solution) Routes() []*schedule.Route {
	out := make([]*schedule.Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r)
	}
	return out
}

// JobByID implements constraint.Solution.
func (s *Solution) JobByID(id string) (model.Job, bool) {
	return s.problem.JobByID(id)
}

// AssignedVehicle implements constraint.Solution: returns the vehicle id
// hosting jobID's activities, if assigned.
func (s *Solution) AssignedVehicle(jobID string) (string, bool) {
	for _, r := range s.routes {
		for _, a := range r.Activities {
			if a.Kind == schedule.JobPlace && a.JobID == jobID {
				return r.VehicleID, true
			}
		}
	}
	return "", false
}

// MarkUnassigned records jobID as unassigned with reason. It does not
// touch routes; callers remove the job's activities first.
func (s *Solution) MarkUnassigned(jobID, reason string) {
	s.unassigned[jobID] = UnassignedEntry{Reason: reason}
}

// MarkAssigned clears jobID from the unassigned registry.
func (s *Solution) MarkAssigned(jobID string) {
	delete(s.unassigned, jobID)
}

// Unassigned returns a copy of the unassigned registry.
func (s *Solution) Unassigned() map[string]UnassignedEntry {
	out := make(map[string]UnassignedEntry, len(s.unassigned))
	for k, v := range s.unassigned {
		out[k] = v
	}
	return out
}

// IsUnassigned reports whether jobID currently sits in the unassigned
// registry.
func (s *Solution) IsUnassigned(jobID string) bool {
	_, ok := s.unassigned[jobID]
	return ok
}
