package schedule

import "github.com/tobangado69/vrpsolver/internal/solver/model"

// DistanceDuration resolves travel cost between two locations for a
// vehicle profile. The solver wires internal/solver/matrix.Provider into
// this signature; schedule stays decoupled from how matrices are stored.
type DistanceDuration func(profile string, from, to model.Location) (distance int64, duration int64)

// Route is a single vehicle-shift's ordered activity list plus its
// constraint-owned state slots.
type Route struct {
	VehicleID string
	TypeID string
	Profile string
	ShiftIndex int

	Activities []Activity

	// State holds constraint-owned slots keyed by constraint id; opaque to
	// every constraint but its owner.
	State map[string]interface{}
}

// Clone performs the copy-on-write duplication a mutator needs: a new
// Activities slice (so mutation doesn't alias the parent) and a
// shallow copy of the state map (constraint AcceptRoute hooks replace
// their own slot wholesale rather than mutating it in place).
func (r *Route) Clone() *Route {
	acts := make([]Activity, len(r.Activities))
	copy(acts, r.Activities)
	st := make(map[string]interface{}, len(r.State))
	for k, v := range r.State {
		st[k] = v
	}
	return &Route{
		VehicleID: r.VehicleID,
		TypeID: r.TypeID,
		Profile: r.Profile,
		ShiftIndex: r.ShiftIndex,
		Activities: acts,
		State: st,
	}
}

// Recompute rebuilds the forward schedule (arrival/service-start/
// departure/waiting, distance/duration accumulators, capacity curve) for
// every activity at index >= from, given the preceding activity's departure
// state. It is the incremental-update half of RecomputeSlack's backward
// pass; callers pass from = 0 after a structural change at the route
// head, or the touched insertion index otherwise.
func (r *Route) Recompute(from int, dims int, dd DistanceDuration, tasksOf func(jobID string, taskIdx int) model.Task, preloadedDelivery model.Demand) {
	if from < 0 {
		from = 0
	}
	var prevDeparture int64
	var prevLocation model.Location
	var prevDistance, prevDuration int64
	load := preloadedDelivery.Clone()

	if from > 0 {
		prev := r.Activities[from-1]
		prevDeparture = prev.ServiceEnd
		prevLocation = prev.Location
		prevDistance = prev.DistanceFromDepot
		prevDuration = prev.DurationFromDepot
		load = prev.LoadAfter.Clone()
	} else if len(r.Activities) > 0 {
		load = preloadedDelivery.Clone()
	}

	for i := from; i < len(r.Activities); i++ {
		act := &r.Activities[i]

		if act.IsTripBoundary() && i > 0 {
			// Reload resets the running pickup/delivery split; the exact
			// refill amount is computed by the caller (insertion/ruin) before
			// Recompute runs, since it depends on the upcoming trip's
			// delivery manifest. Here we only propagate whatever LoadAfter
			// the caller has already staged for the boundary activity.
			load = act.LoadAfter.Clone()
		}

		var travelDist, travelDur int64
		if i > 0 {
			travelDist, travelDur = dd(r.Profile, prevLocation, act.Location)
		}
		arrival := prevDeparture + travelDur
		act.Arrival = arrival

		earliest := int64(0)
		if windows := activityWindows(act, tasksOf); len(windows) > 0 {
			earliest = windows[0].Earliest
		}
		serviceStart := arrival
		if serviceStart < earliest {
			serviceStart = earliest
		}
		act.Waiting = serviceStart - arrival
		act.ServiceStart = serviceStart
		act.ServiceEnd = serviceStart + act.Duration

		if !act.IsTripBoundary() {
			load = load.Add(taskDemand(act, tasksOf))
		}
		act.LoadAfter = load.Clone()

		act.DistanceFromDepot = prevDistance + travelDist
		act.DurationFromDepot = prevDuration + travelDur

		prevDeparture = act.ServiceEnd
		prevLocation = act.Location
		prevDistance = act.DistanceFromDepot
		prevDuration = act.DurationFromDepot
	}
}

// RecomputeSlack rebuilds backward latest-departure slack for every
// activity at index <= to, so that LatestDeparture_i is the latest an
// activity can finish while every subsequent activity still meets its
// own latest time window. Callers pass to = len(Activities)-1 after a
// structural change at the route tail, or the touched removal index
// otherwise.
func (r *Route) RecomputeSlack(to int, dd DistanceDuration, tasksOf func(jobID string, taskIdx int) model.Task) {
	n := len(r.Activities)
	if n == 0 {
		return
	}
	if to >= n {
		to = n - 1
	}

	var nextLatest int64 = 1 << 62
	var nextLocation model.Location
	hasNext := false

	if to < n-1 {
		next := r.Activities[to+1]
		nextLatest = next.LatestDeparture
		nextLocation = next.Location
		hasNext = true
	}

	for i := to; i >= 0; i-- {
		act := &r.Activities[i]
		latestStart := int64(1 << 62)
		if windows := activityWindows(act, tasksOf); len(windows) > 0 {
			latestStart = windows[len(windows)-1].Latest
		}

		latestDeparture := latestStart + act.Duration
		if hasNext {
			_, travelDur := dd(r.Profile, act.Location, nextLocation)
			bound := nextLatest - travelDur
			if bound < latestDeparture {
				latestDeparture = bound
			}
		}
		act.LatestDeparture = latestDeparture

		nextLatest = latestDeparture
		nextLocation = act.Location
		hasNext = true
	}
}

// Feasible checks the schedule invariant: every activity's
// service start is within its window and the capacity curve stays
// componentwise within capacity. It does not evaluate limits or any other
// hard constraint — those live in internal/solver/constraint.
func (r *Route) Feasible(capacity model.Demand, tasksOf func(jobID string, taskIdx int) model.Task) bool {
	for i := range r.Activities {
		act := &r.Activities[i]
		windows := activityWindows(act, tasksOf)
		if len(windows) > 0 {
			ok := false
			for _, w := range windows {
				if w.Contains(act.ServiceStart) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		if !act.LoadAfter.LessEq(capacity) {
			return false
		}
		for _, v := range act.LoadAfter {
			if v < 0 {
				return false
			}
		}
	}
	return true
}

func activityWindows(act *Activity, tasksOf func(jobID string, taskIdx int) model.Task) []model.TimeWindow {
	if act.Kind != JobPlace {
		return nil
	}
	task := tasksOf(act.JobID, act.TaskIndex)
	return act.Windows(task)
}

func taskDemand(act *Activity, tasksOf func(jobID string, taskIdx int) model.Task) model.Demand {
	if act.Kind != JobPlace {
		return nil
	}
	task := tasksOf(act.JobID, act.TaskIndex)
	return task.Demand
}

// TotalDistance returns the route's accumulated distance from depot to its
// last activity.
func (r *Route) TotalDistance() int64 {
	if len(r.Activities) == 0 {
		return 0
	}
	return r.Activities[len(r.Activities)-1].DistanceFromDepot
}

// TotalDuration returns the route's accumulated duration from depot to its
// last activity.
func (r *Route) TotalDuration() int64 {
	if len(r.Activities) == 0 {
		return 0
	}
	return r.Activities[len(r.Activities)-1].DurationFromDepot
}

// ActivityDuration sums service time only (excludes travel and waiting),
// the accumulated activity duration a LimitsConstraint compares against
// a vehicle type's maxActivityDuration.
func (r *Route) ActivityDuration() int64 {
	var sum int64
	for _, a := range r.Activities {
		sum += a.Duration
	}
	return sum
}
