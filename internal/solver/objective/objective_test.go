package objective

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

type fakeSolution struct {
	problem    *model.Problem
	routes     []*schedule.Route
	unassigned map[string]UnassignedView
}

func (f *fakeSolution) Problem() *model.Problem              { return f.problem }
func (f *fakeSolution) Routes() []*schedule.Route             { return f.routes }
func (f *fakeSolution) Unassigned() map[string]UnassignedView { return f.unassigned }

func TestDominates(t *testing.T) {
	assert.True(t, Dominates([]float64{1, 2}, []float64{1, 3}))
	assert.True(t, Dominates([]float64{0, 2}, []float64{1, 2}))
	assert.False(t, Dominates([]float64{1, 2}, []float64{1, 2}))
	assert.False(t, Dominates([]float64{2, 1}, []float64{1, 2}))
	assert.False(t, Dominates([]float64{1}, []float64{1, 2}))
}

func TestMinimizeUnassignedWeightsByProblem(t *testing.T) {
	sol := &fakeSolution{
		problem:    &model.Problem{UnassignedWeight: map[string]float64{"j1": 5}},
		unassigned: map[string]UnassignedView{"j1": {Reason: "infeasible"}, "j2": {Reason: "infeasible"}},
	}
	got := Default(MinimizeUnassigned).Evaluate(sol, nil)
	assert.Equal(t, 6.0, got) // 5 for j1 + default weight 1 for j2
}

func TestMinimizeToursCountsNonEmptyRoutesOnly(t *testing.T) {
	sol := &fakeSolution{
		problem: &model.Problem{},
		routes: []*schedule.Route{
			{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.JobPlace}}},
			{VehicleID: "v2"},
		},
	}
	got := Default(MinimizeTours).Evaluate(sol, nil)
	assert.Equal(t, 1.0, got)
}

func TestMinimizeCostSumsVehicleCost(t *testing.T) {
	sol := &fakeSolution{
		problem: &model.Problem{},
		routes: []*schedule.Route{{VehicleID: "v1"}, {VehicleID: "v2"}},
	}
	got := Default(MinimizeCost).Evaluate(sol, func(r *schedule.Route) float64 { return 10 })
	assert.Equal(t, 20.0, got)
}

func TestMaximizeValueNegatesAssignedJobValue(t *testing.T) {
	sol := &fakeSolution{
		problem: &model.Problem{Jobs: []model.Job{{ID: "j1", Value: 10}, {ID: "j2", Value: 5}}},
		routes: []*schedule.Route{
			{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.JobPlace, JobID: "j1"}}},
		},
	}
	got := Default(MaximizeValue).Evaluate(sol, nil)
	assert.Equal(t, -10.0, got)
}

func TestBalanceDistanceIsVarianceAcrossNonEmptyRoutes(t *testing.T) {
	sol := &fakeSolution{
		problem: &model.Problem{},
		routes: []*schedule.Route{
			{VehicleID: "v1", Activities: []schedule.Activity{{DistanceFromDepot: 10}}},
			{VehicleID: "v2", Activities: []schedule.Activity{{DistanceFromDepot: 20}}},
			{VehicleID: "v3"},
		},
	}
	got := Default(BalanceDistance).Evaluate(sol, nil)
	assert.Equal(t, 25.0, got) // mean 15, variance ((10-15)^2+(20-15)^2)/2 = 25
}

func TestTourOrderPenalizesOutOfOrderTasks(t *testing.T) {
	sol := &fakeSolution{
		problem: &model.Problem{Jobs: []model.Job{
			{ID: "j1", Tasks: []model.Task{{Order: 0}, {Order: 1}}},
		}},
		routes: []*schedule.Route{
			{VehicleID: "v1", Activities: []schedule.Activity{
				{Kind: schedule.JobPlace, JobID: "j1", TaskIndex: 1},
				{Kind: schedule.JobPlace, JobID: "j1", TaskIndex: 0},
			}},
		},
	}
	got := Default(TourOrder).Evaluate(sol, nil)
	assert.Equal(t, 1.0, got)
}

func TestDefaultUnknownNameReturnsNil(t *testing.T) {
	assert.Nil(t, Default(Name("not-a-thing")))
}

func TestVehicleCostLooksUpByVehicleID(t *testing.T) {
	p := &model.Problem{VehicleTypes: []model.VehicleType{
		{VehicleIDs: []string{"v1"}, Cost: model.CostSchedule{Fixed: 50}},
	}}
	fn := VehicleCost(p)
	assert.Equal(t, 50.0, fn(&schedule.Route{VehicleID: "v1"}))
	assert.Equal(t, 0.0, fn(&schedule.Route{VehicleID: "unknown"}))
}
