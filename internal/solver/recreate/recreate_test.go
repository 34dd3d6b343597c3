package recreate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/constraint"
	"github.com/tobangado69/vrpsolver/internal/solver/insertion"
	"github.com/tobangado69/vrpsolver/internal/solver/matrix"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/population"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
	"github.com/tobangado69/vrpsolver/internal/solvertest"
)

func newTestProblem() (*model.Problem, model.Job, model.Job) {
	j1 := solvertest.NewServiceJob("j1", solvertest.NewPlace(2, 5), []int64{2}, 1)
	j2 := solvertest.NewServiceJob("j2", solvertest.NewPlace(4, 5), []int64{2}, 1)
	vt := solvertest.NewVehicleType("v1", []string{"v1"}, 0, []int64{10}, 1)
	problem := solvertest.NewProblem(1, []model.VehicleType{vt}, []model.Job{j1, j2})
	return problem, j1, j2
}

func newTestEvaluator(problem *model.Problem, shared *constraint.SharedConstraints) (*insertion.Evaluator, insertion.PipelineFor) {
	provider := matrix.NewStaticProvider()
	provider.LoadProfile("car", solvertest.GridDistances(10, 1), solvertest.GridDistances(10, 1), 1)

	pipelines := map[string]*constraint.Pipeline{}
	for _, vt := range problem.VehicleTypes {
		for _, vid := range vt.VehicleIDs {
			pack := constraint.BuiltinHardPack(vt.Capacity, vt.Skills, vt.Limits, shared)
			pipelines[vid] = constraint.NewPipeline(pack...)
		}
	}
	pipeFor := func(vehicleID string) *constraint.Pipeline { return pipelines[vehicleID] }

	eval := &insertion.Evaluator{
		Matrix: provider,
		Dims:   problem.Dimensions,
		TasksOf: func(jobID string, taskIdx int) model.Task {
			job, ok := problem.JobByID(jobID)
			if !ok || taskIdx >= len(job.Tasks) {
				return model.Task{}
			}
			return job.Tasks[taskIdx]
		},
		Pipe: pipeFor,
	}
	return eval, pipeFor
}

func singleRouteSource(route *schedule.Route) RouteSource {
	return func(sol Solution, job model.Job) []*schedule.Route { return []*schedule.Route{route} }
}

func TestCheapestRecreateInsertsBothJobs(t *testing.T) {
	problem, j1, j2 := newTestProblem()
	shared := constraint.NewSharedConstraints()
	eval, pipeFor := newTestEvaluator(problem, shared)

	sol := population.NewSolution(problem)
	route := &schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure, Location: 0}}}
	sol.SetRoute(route)

	unassigned := Cheapest{}.Recreate(sol, eval, pipeFor, singleRouteSource(route), []string{j1.ID, j2.ID}, rand.New(rand.NewSource(1)))
	assert.Empty(t, unassigned)
	assert.False(t, sol.IsUnassigned("j1"))
	assert.False(t, sol.IsUnassigned("j2"))
}

func TestCheapestRecreateLeavesInfeasibleJobsUnassigned(t *testing.T) {
	j1 := solvertest.NewServiceJob("j1", solvertest.NewPlace(2, 5), []int64{50}, 1)
	vt := solvertest.NewVehicleType("v1", []string{"v1"}, 0, []int64{10}, 1)
	problem := solvertest.NewProblem(1, []model.VehicleType{vt}, []model.Job{j1})

	shared := constraint.NewSharedConstraints()
	eval, pipeFor := newTestEvaluator(problem, shared)

	sol := population.NewSolution(problem)
	route := &schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure, Location: 0}}}
	sol.SetRoute(route)

	unassigned := Cheapest{}.Recreate(sol, eval, pipeFor, singleRouteSource(route), []string{j1.ID}, rand.New(rand.NewSource(1)))
	assert.Equal(t, []string{"j1"}, unassigned)
}

func TestRegret2RecreateInsertsBothJobs(t *testing.T) {
	problem, j1, j2 := newTestProblem()
	shared := constraint.NewSharedConstraints()
	eval, pipeFor := newTestEvaluator(problem, shared)

	sol := population.NewSolution(problem)
	route := &schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure, Location: 0}}}
	sol.SetRoute(route)

	unassigned := Regret2{}.Recreate(sol, eval, pipeFor, singleRouteSource(route), []string{j1.ID, j2.ID}, rand.New(rand.NewSource(1)))
	assert.Empty(t, unassigned)
}

func TestBlinkCheapestRecreateInsertsBothJobs(t *testing.T) {
	problem, j1, j2 := newTestProblem()
	shared := constraint.NewSharedConstraints()
	eval, pipeFor := newTestEvaluator(problem, shared)

	sol := population.NewSolution(problem)
	route := &schedule.Route{VehicleID: "v1", Activities: []schedule.Activity{{Kind: schedule.Departure, Location: 0}}}
	sol.SetRoute(route)

	b := BlinkCheapest{BlinkProbability: 0}
	unassigned := b.Recreate(sol, eval, pipeFor, singleRouteSource(route), []string{j1.ID, j2.ID}, rand.New(rand.NewSource(1)))
	assert.Empty(t, unassigned)
}
