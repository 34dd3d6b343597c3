package ruin

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

type fakeSolution struct {
	problem     *model.Problem
	routes      map[string]*schedule.Route
	owner       map[string]string
	unassigned  map[string]string
}

func newFakeSolution(routes ...*schedule.Route) *fakeSolution {
	f := &fakeSolution{
		problem:    &model.Problem{},
		routes:     map[string]*schedule.Route{},
		owner:      map[string]string{},
		unassigned: map[string]string{},
	}
	for _, r := range routes {
		f.routes[r.VehicleID] = r
		for _, a := range r.Activities {
			if a.Kind == schedule.JobPlace {
				f.owner[a.JobID] = r.VehicleID
			}
		}
	}
	return f
}

func (f *fakeSolution) Problem() *model.Problem { return f.problem }

func (f *fakeSolution) Routes() []*schedule.Route {
	out := make([]*schedule.Route, 0, len(f.routes))
	for _, r := range f.routes {
		out = append(out, r)
	}
	return out
}

func (f *fakeSolution) RouteByVehicleShift(vehicleID string, shiftIndex int) (*schedule.Route, bool) {
	r, ok := f.routes[vehicleID]
	return r, ok
}

func (f *fakeSolution) SetRoute(r *schedule.Route) {
	f.routes[r.VehicleID] = r
	for _, a := range r.Activities {
		if a.Kind == schedule.JobPlace {
			f.owner[a.JobID] = r.VehicleID
		}
	}
}

func (f *fakeSolution) AssignedVehicle(jobID string) (string, bool) {
	v, ok := f.owner[jobID]
	return v, ok
}

func (f *fakeSolution) MarkUnassigned(jobID, reason string) {
	delete(f.owner, jobID)
	f.unassigned[jobID] = reason
}

func (f *fakeSolution) Recompute(route *schedule.Route, from int) {
	route.Recompute(from, 0, func(string, model.Location, model.Location) (int64, int64) { return 0, 0 }, func(string, int) model.Task { return model.Task{} }, nil)
}

func threeJobRoute() *schedule.Route {
	return &schedule.Route{
		VehicleID: "v1",
		Activities: []schedule.Activity{
			{Kind: schedule.Departure, Location: 0},
			{Kind: schedule.JobPlace, JobID: "j1", Location: 1},
			{Kind: schedule.JobPlace, JobID: "j2", Location: 2},
			{Kind: schedule.JobPlace, JobID: "j3", Location: 3},
		},
	}
}

func TestRandomRuinRemovesExactCount(t *testing.T) {
	sol := newFakeSolution(threeJobRoute())
	removed := Random{}.Ruin(sol, 2, rand.New(rand.NewSource(1)))
	assert.Len(t, removed, 2)
	for _, id := range removed {
		_, ok := sol.AssignedVehicle(id)
		assert.False(t, ok)
	}
}

func TestRandomRuinCapsAtAssignedCount(t *testing.T) {
	sol := newFakeSolution(threeJobRoute())
	removed := Random{}.Ruin(sol, 100, rand.New(rand.NewSource(1)))
	assert.Len(t, removed, 3)
}

func TestRouteRuinEmptiesWholeRoutes(t *testing.T) {
	sol := newFakeSolution(threeJobRoute())
	removed := Route{}.Ruin(sol, 1, rand.New(rand.NewSource(1)))
	assert.ElementsMatch(t, []string{"j1", "j2", "j3"}, removed)
	r := sol.routes["v1"]
	for _, a := range r.Activities {
		assert.NotEqual(t, schedule.JobPlace, a.Kind)
	}
}

func TestWorstRuinPrefersHighestCost(t *testing.T) {
	sol := newFakeSolution(threeJobRoute())
	w := Worst{CostOf: func(route *schedule.Route, jobID string) float64 {
		switch jobID {
		case "j1":
			return 1
		case "j2":
			return 100
		default:
			return 10
		}
	}}
	removed := w.Ruin(sol, 1, rand.New(rand.NewSource(1)))
	assert.Equal(t, []string{"j2"}, removed)
}

func TestRelatedRuinDegradesWithoutMetric(t *testing.T) {
	sol := newFakeSolution(threeJobRoute())
	removed := Related{}.Ruin(sol, 2, rand.New(rand.NewSource(1)))
	assert.Len(t, removed, 2)
}

func TestRelatedRuinPicksClosestByDistance(t *testing.T) {
	sol := newFakeSolution(threeJobRoute())
	locs := map[string]model.Location{"j1": 1, "j2": 2, "j3": 3}
	r := Related{
		LocationOf: func(jobID string) model.Location { return locs[jobID] },
		Distance: func(a, b model.Location) int64 {
			d := int64(a) - int64(b)
			if d < 0 {
				d = -d
			}
			return d
		},
	}
	removed := r.Ruin(sol, 2, rand.New(rand.NewSource(42)))
	assert.Len(t, removed, 2)
}

func TestClusterRuinRemovesContiguousSegment(t *testing.T) {
	sol := newFakeSolution(threeJobRoute())
	removed := Cluster{}.Ruin(sol, 2, rand.New(rand.NewSource(1)))
	assert.Len(t, removed, 2)
	remaining := 0
	for _, a := range sol.routes["v1"].Activities {
		if a.Kind == schedule.JobPlace {
			remaining++
		}
	}
	assert.Equal(t, 1, remaining)
}

func TestClusterRuinNoJobsReturnsNil(t *testing.T) {
	sol := newFakeSolution(&schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure}}})
	removed := Cluster{}.Ruin(sol, 2, rand.New(rand.NewSource(1)))
	assert.Nil(t, removed)
}
