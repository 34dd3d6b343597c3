package insertion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/constraint"
	"github.com/tobangado69/vrpsolver/internal/solver/matrix"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/population"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
	"github.com/tobangado69/vrpsolver/internal/solvertest"
)

func newTestEvaluator(problem *model.Problem, shared *constraint.SharedConstraints) *Evaluator {
	provider := matrix.NewStaticProvider()
	provider.LoadProfile("car", solvertest.GridDistances(10, 1), solvertest.GridDistances(10, 1), 1)

	pipelines := map[string]*constraint.Pipeline{}
	for _, vt := range problem.VehicleTypes {
		for _, vid := range vt.VehicleIDs {
			pack := constraint.BuiltinHardPack(vt.Capacity, vt.Skills, vt.Limits, shared)
			pipelines[vid] = constraint.NewPipeline(pack...)
		}
	}

	return &Evaluator{
		Matrix: provider,
		Dims:   problem.Dimensions,
		TasksOf: func(jobID string, taskIdx int) model.Task {
			job, ok := problem.JobByID(jobID)
			if !ok || taskIdx >= len(job.Tasks) {
				return model.Task{}
			}
			return job.Tasks[taskIdx]
		},
		Pipe: func(vehicleID string) *constraint.Pipeline { return pipelines[vehicleID] },
	}
}

func TestBestInsertionFindsFeasiblePlacement(t *testing.T) {
	place := solvertest.NewPlace(5, 10)
	job := solvertest.NewServiceJob("j1", place, []int64{2}, 1)
	vt := solvertest.NewVehicleType("v1", []string{"v1"}, 0, []int64{10}, 1)
	problem := solvertest.NewProblem(1, []model.VehicleType{vt}, []model.Job{job})

	shared := constraint.NewSharedConstraints()
	eval := newTestEvaluator(problem, shared)

	sol := population.NewSolution(problem)
	route := &schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure, Location: 0}}}
	sol.SetRoute(route)

	cand, ok := eval.BestInsertion(sol, job, []*schedule.Route{route})
	assert.True(t, ok)
	assert.Equal(t, "v1", cand.VehicleID)

	found := false
	for _, a := range cand.Route.Activities {
		if a.Kind == schedule.JobPlace && a.JobID == "j1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBestInsertionRejectsOverCapacity(t *testing.T) {
	place := solvertest.NewPlace(5, 10)
	job := solvertest.NewServiceJob("j1", place, []int64{20}, 1)
	vt := solvertest.NewVehicleType("v1", []string{"v1"}, 0, []int64{10}, 1)
	problem := solvertest.NewProblem(1, []model.VehicleType{vt}, []model.Job{job})

	shared := constraint.NewSharedConstraints()
	eval := newTestEvaluator(problem, shared)

	sol := population.NewSolution(problem)
	route := &schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure, Location: 0}}}
	sol.SetRoute(route)

	_, ok := eval.BestInsertion(sol, job, []*schedule.Route{route})
	assert.False(t, ok)
}

func TestCommitMarksJobAssignedAndInstallsRoute(t *testing.T) {
	place := solvertest.NewPlace(5, 10)
	job := solvertest.NewServiceJob("j1", place, []int64{2}, 1)
	vt := solvertest.NewVehicleType("v1", []string{"v1"}, 0, []int64{10}, 1)
	problem := solvertest.NewProblem(1, []model.VehicleType{vt}, []model.Job{job})

	shared := constraint.NewSharedConstraints()
	eval := newTestEvaluator(problem, shared)
	pipe := eval.Pipe("v1")

	sol := population.NewSolution(problem)
	route := &schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure, Location: 0}}}
	sol.SetRoute(route)

	cand, ok := eval.BestInsertion(sol, job, []*schedule.Route{route})
	assert.True(t, ok)

	Commit(sol, pipe, job, cand)
	assert.False(t, sol.IsUnassigned("j1"))
	vehicleID, assigned := sol.AssignedVehicle("j1")
	assert.True(t, assigned)
	assert.Equal(t, "v1", vehicleID)
}
