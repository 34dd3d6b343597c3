package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// fakeSolution is the minimal Solution stand-in used to exercise
// cross-route hard constraints without pulling in the population package.
type fakeSolution struct {
	routes map[string]*schedule.Route
	jobs   map[string]model.Job
	owner  map[string]string // jobID -> vehicleID
}

func newFakeSolution() *fakeSolution {
	return &fakeSolution{
		routes: map[string]*schedule.Route{},
		jobs:   map[string]model.Job{},
		owner:  map[string]string{},
	}
}

func (f *fakeSolution) RouteByVehicle(vehicleID string) (*schedule.Route, bool) {
	r, ok := f.routes[vehicleID]
	return r, ok
}

func (f *fakeSolution) Routes() []*schedule.Route {
	out := make([]*schedule.Route, 0, len(f.routes))
	for _, r := range f.routes {
		out = append(out, r)
	}
	return out
}

func (f *fakeSolution) AssignedVehicle(jobID string) (string, bool) {
	v, ok := f.owner[jobID]
	return v, ok
}

func (f *fakeSolution) JobByID(id string) (model.Job, bool) {
	j, ok := f.jobs[id]
	return j, ok
}

func TestPipelineShortCircuitsOnFirstHardViolation(t *testing.T) {
	p := NewPipeline(
		NewCapacityConstraint(model.Demand{5}),
		NewTimeConstraint(),
	)
	sol := newFakeSolution()

	ctx := InsertionContext{
		Route:       &schedule.Route{},
		NewActivity: schedule.Activity{Kind: schedule.JobPlace, LoadAfter: model.Demand{10}},
	}
	v := p.EvaluateActivity(sol, ctx)
	assert.NotNil(t, v)
	assert.Equal(t, "CAPACITY", v.Code)
}

func TestPipelinePartitionsHardAndSoft(t *testing.T) {
	p := NewPipeline(NewCapacityConstraint(model.Demand{5}))
	assert.Len(t, p.hard, 1)
	assert.Len(t, p.soft, 0)
	assert.Len(t, p.All(), 1)
}

func TestTimeConstraint(t *testing.T) {
	c := NewTimeConstraint()
	job := model.Job{Tasks: []model.Task{
		{Kind: model.TaskService, Places: []model.Place{{Windows: []model.TimeWindow{{Earliest: 10, Latest: 20}}}}},
	}}
	sol := newFakeSolution()

	feasible := InsertionContext{
		Job:         job,
		NewActivity: schedule.Activity{Kind: schedule.JobPlace, ServiceStart: 15},
	}
	assert.Nil(t, c.EvaluateActivity(sol, feasible))

	infeasible := InsertionContext{
		Job:         job,
		NewActivity: schedule.Activity{Kind: schedule.JobPlace, ServiceStart: 25},
	}
	v := c.EvaluateActivity(sol, infeasible)
	assert.NotNil(t, v)
	assert.Equal(t, "TIME_WINDOW", v.Code)
}

func TestCapacityConstraint(t *testing.T) {
	c := NewCapacityConstraint(model.Demand{10, 10})
	sol := newFakeSolution()

	ok := InsertionContext{NewActivity: schedule.Activity{LoadAfter: model.Demand{5, 5}}}
	assert.Nil(t, c.EvaluateActivity(sol, ok))

	over := InsertionContext{NewActivity: schedule.Activity{LoadAfter: model.Demand{11, 0}}}
	assert.NotNil(t, c.EvaluateActivity(sol, over))

	negative := InsertionContext{NewActivity: schedule.Activity{LoadAfter: model.Demand{-1, 0}}}
	assert.NotNil(t, c.EvaluateActivity(sol, negative))
}

func TestSkillsConstraint(t *testing.T) {
	c := NewSkillsConstraint(map[string]struct{}{"liftgate": {}})
	sol := newFakeSolution()

	noSkills := InsertionContext{Job: model.Job{}}
	assert.Nil(t, c.EvaluateActivity(sol, noSkills))

	satisfied := InsertionContext{Job: model.Job{Skills: &model.SkillExpr{Kind: model.SkillAllOf, Skills: []string{"liftgate"}}}}
	assert.Nil(t, c.EvaluateActivity(sol, satisfied))

	violated := InsertionContext{Job: model.Job{Skills: &model.SkillExpr{Kind: model.SkillAllOf, Skills: []string{"hazmat"}}}}
	v := c.EvaluateActivity(sol, violated)
	assert.NotNil(t, v)
	assert.Equal(t, "SKILLS", v.Code)
}

func TestLimitsConstraint(t *testing.T) {
	c := NewLimitsConstraint(model.Limits{MaxDuration: 100, TourSize: 2})
	sol := newFakeSolution()

	route := &schedule.Route{Activities: []schedule.Activity{
		{DurationFromDepot: 50},
	}}
	within := InsertionContext{Route: route, Position: 5, NewActivity: schedule.Activity{}}
	assert.Nil(t, c.EvaluateActivity(sol, within))

	over := InsertionContext{
		Route:    &schedule.Route{Activities: []schedule.Activity{{DurationFromDepot: 150}}},
		Position: 5,
	}
	v := c.EvaluateActivity(sol, over)
	assert.NotNil(t, v)
	assert.Equal(t, "MAX_DURATION", v.Code)

	tourFull := InsertionContext{
		Route:    &schedule.Route{Activities: []schedule.Activity{{}, {}}},
		Position: 5,
	}
	v = c.EvaluateActivity(sol, tourFull)
	assert.NotNil(t, v)
	assert.Equal(t, "TOUR_SIZE", v.Code)
}

func TestGroupConstraint(t *testing.T) {
	c := NewGroupConstraint()
	sol := newFakeSolution()
	sol.jobs["other"] = model.Job{ID: "other", Group: "g1"}
	sol.routes["v2"] = &schedule.Route{
		VehicleID:  "v2",
		Activities: []schedule.Activity{{Kind: schedule.JobPlace, JobID: "other"}},
	}

	ctx := InsertionContext{
		Route: &schedule.Route{VehicleID: "v1"},
		Job:   model.Job{ID: "j1", Group: "g1"},
	}
	v := c.EvaluateActivity(sol, ctx)
	assert.NotNil(t, v)
	assert.Equal(t, "GROUP", v.Code)

	ctxNoGroup := InsertionContext{
		Route: &schedule.Route{VehicleID: "v1"},
		Job:   model.Job{ID: "j1"},
	}
	assert.Nil(t, c.EvaluateActivity(sol, ctxNoGroup))
}

func TestCompatibilityConstraint(t *testing.T) {
	c := NewCompatibilityConstraint()
	sol := newFakeSolution()
	sol.jobs["other"] = model.Job{ID: "other", Compat: "hazmat"}

	route := &schedule.Route{
		VehicleID:  "v1",
		Activities: []schedule.Activity{{Kind: schedule.JobPlace, JobID: "other"}},
	}
	ctx := InsertionContext{Route: route, Job: model.Job{ID: "j1", Compat: "food"}}
	v := c.EvaluateActivity(sol, ctx)
	assert.NotNil(t, v)
	assert.Equal(t, "COMPATIBILITY", v.Code)

	ctxSame := InsertionContext{Route: route, Job: model.Job{ID: "j2", Compat: "hazmat"}}
	assert.Nil(t, c.EvaluateActivity(sol, ctxSame))
}

func TestPickupDeliveryConstraint(t *testing.T) {
	c := NewPickupDeliveryConstraint()
	sol := newFakeSolution()
	job := model.Job{ID: "j1", Tasks: []model.Task{
		{Kind: model.TaskPickup},
		{Kind: model.TaskDelivery},
	}}

	route := &schedule.Route{Activities: []schedule.Activity{}}
	ctx := InsertionContext{
		Route:     route,
		Position:  0,
		Job:       job,
		TaskIndex: 1,
		NewActivity: schedule.Activity{Kind: schedule.JobPlace},
	}
	v := c.EvaluateActivity(sol, ctx)
	assert.NotNil(t, v)
	assert.Equal(t, "PICKUP_DELIVERY_ORDER", v.Code)

	routeWithPickup := &schedule.Route{Activities: []schedule.Activity{
		{Kind: schedule.JobPlace, JobID: "j1", TaskIndex: 0},
	}}
	ctxAfterPickup := InsertionContext{
		Route:       routeWithPickup,
		Position:    1,
		Job:         job,
		TaskIndex:   1,
		NewActivity: schedule.Activity{Kind: schedule.JobPlace},
	}
	assert.Nil(t, c.EvaluateActivity(sol, ctxAfterPickup))
}

func TestSameAssigneeConstraint(t *testing.T) {
	c := NewSameAssigneeConstraint()
	sol := newFakeSolution()
	sol.jobs["other"] = model.Job{ID: "other", SameAssigneeKey: "driver-x"}
	sol.routes["v2"] = &schedule.Route{
		VehicleID:  "v2",
		Activities: []schedule.Activity{{Kind: schedule.JobPlace, JobID: "other"}},
	}

	ctx := InsertionContext{
		Route: &schedule.Route{VehicleID: "v1"},
		Job:   model.Job{ID: "j1", SameAssigneeKey: "driver-x"},
	}
	v := c.EvaluateActivity(sol, ctx)
	assert.NotNil(t, v)
	assert.Equal(t, "SAME_ASSIGNEE", v.Code)
}

func TestAffinityConstraint(t *testing.T) {
	c := NewAffinityConstraint()
	sol := newFakeSolution()
	sol.jobs["earlier"] = model.Job{ID: "earlier", Affinity: &model.Affinity{Key: "a1", Sequence: 1}}
	sol.routes["v1"] = &schedule.Route{
		VehicleID:  "v1",
		ShiftIndex: 0,
		Activities: []schedule.Activity{{Kind: schedule.JobPlace, JobID: "earlier"}},
	}

	wrongVehicle := InsertionContext{
		Route: &schedule.Route{VehicleID: "v2", ShiftIndex: 0},
		Job:   model.Job{ID: "j2", Affinity: &model.Affinity{Key: "a1", Sequence: 2}},
	}
	v := c.EvaluateActivity(sol, wrongVehicle)
	assert.NotNil(t, v)
	assert.Equal(t, "AFFINITY", v.Code)

	inSequence := InsertionContext{
		Route: &schedule.Route{VehicleID: "v1", ShiftIndex: 0},
		Job:   model.Job{ID: "j2", Affinity: &model.Affinity{Key: "a1", Sequence: 2}},
	}
	assert.Nil(t, c.EvaluateActivity(sol, inSequence))
}

func TestSyncConstraintStageAndTolerance(t *testing.T) {
	c := NewSyncConstraint()
	sol := newFakeSolution()
	job := model.Job{ID: "j1", Sync: &model.Sync{Key: "s1", ToleranceSec: 60}}

	c.Stage("s1", "v1", 1000)

	sameVehicle := InsertionContext{
		Route:       &schedule.Route{VehicleID: "v1"},
		Job:         job,
		NewActivity: schedule.Activity{ServiceStart: 1000},
	}
	v := c.EvaluateActivity(sol, sameVehicle)
	assert.NotNil(t, v)
	assert.Equal(t, "SYNC_VEHICLE_REUSED", v.Code)

	withinTolerance := InsertionContext{
		Route:       &schedule.Route{VehicleID: "v2"},
		Job:         job,
		NewActivity: schedule.Activity{ServiceStart: 1050},
	}
	assert.Nil(t, c.EvaluateActivity(sol, withinTolerance))

	outsideTolerance := InsertionContext{
		Route:       &schedule.Route{VehicleID: "v2"},
		Job:         job,
		NewActivity: schedule.Activity{ServiceStart: 1200},
	}
	v = c.EvaluateActivity(sol, outsideTolerance)
	assert.NotNil(t, v)
	assert.Equal(t, "SYNC_TOLERANCE", v.Code)

	c.Rollback("s1")
	assert.Empty(t, c.tentative["s1"])
}

func TestBuiltinHardPackHasElevenConstraints(t *testing.T) {
	shared := NewSharedConstraints()
	pack := BuiltinHardPack(model.Demand{10}, map[string]struct{}{}, model.Limits{}, shared)
	assert.Len(t, pack, 11)
}
