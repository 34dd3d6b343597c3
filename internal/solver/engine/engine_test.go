package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/constraint"
	"github.com/tobangado69/vrpsolver/internal/solver/matrix"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/objective"
	"github.com/tobangado69/vrpsolver/internal/solver/population"
	"github.com/tobangado69/vrpsolver/internal/solver/recreate"
	"github.com/tobangado69/vrpsolver/internal/solver/ruin"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
	"github.com/tobangado69/vrpsolver/internal/solvertest"
)

func smallProblem() *model.Problem {
	j1 := solvertest.NewServiceJob("j1", solvertest.NewPlace(2, 5), []int64{2}, 1)
	j2 := solvertest.NewServiceJob("j2", solvertest.NewPlace(4, 5), []int64{2}, 1)
	j3 := solvertest.NewServiceJob("j3", solvertest.NewPlace(6, 5), []int64{2}, 1)
	vt := solvertest.NewVehicleType("v1", []string{"v1"}, 0, []int64{10}, 1)
	return solvertest.NewProblem(1, []model.VehicleType{vt}, []model.Job{j1, j2, j3})
}

func TestEngineRunProducesAssignedSolution(t *testing.T) {
	problem := smallProblem()

	provider := matrix.NewStaticProvider()
	provider.LoadProfile("car", solvertest.GridDistances(10, 1), solvertest.GridDistances(10, 1), 1)

	spec := objective.Spec{Objectives: []objective.Objective{
		objective.Default(objective.MinimizeUnassigned),
		objective.Default(objective.MinimizeCost),
	}}

	cfg := DefaultConfig()
	cfg.Concurrency = 1
	cfg.MaxIterations = 20

	e := New(problem, provider, spec, cfg)
	e.RuinOps = []ruin.Operator{ruin.Random{}}
	e.RecreateOps = []recreate.Operator{recreate.Cheapest{}}

	best := e.Run(context.Background())
	assert.NotNil(t, best)
	assert.Empty(t, best.Unassigned())
}

func TestEngineRunRespectsContextCancellation(t *testing.T) {
	problem := smallProblem()

	provider := matrix.NewStaticProvider()
	provider.LoadProfile("car", solvertest.GridDistances(10, 1), solvertest.GridDistances(10, 1), 1)

	spec := objective.Spec{Objectives: []objective.Objective{objective.Default(objective.MinimizeUnassigned)}}

	cfg := DefaultConfig()
	cfg.Concurrency = 2

	e := New(problem, provider, spec, cfg)
	e.RuinOps = []ruin.Operator{ruin.Random{}}
	e.RecreateOps = []recreate.Operator{recreate.Cheapest{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	best := e.Run(ctx)
	assert.NotNil(t, best)
}

func TestEngineMultipleInitialSolutions(t *testing.T) {
	problem := smallProblem()

	provider := matrix.NewStaticProvider()
	provider.LoadProfile("car", solvertest.GridDistances(10, 1), solvertest.GridDistances(10, 1), 1)

	spec := objective.Spec{Objectives: []objective.Objective{
		objective.Default(objective.MinimizeUnassigned),
		objective.Default(objective.MinimizeCost),
	}}

	cfg := DefaultConfig()
	cfg.Concurrency = 1
	cfg.MaxIterations = 1
	cfg.InitialSolutions = 4

	e := New(problem, provider, spec, cfg)
	e.RuinOps, e.RecreateOps = OperatorsByName(nil)

	best := e.Run(context.Background())
	assert.NotNil(t, best)
	assert.Empty(t, best.Unassigned())
}

func TestPipelineSetsAreIsolatedPerWorker(t *testing.T) {
	problem := smallProblem()
	provider := matrix.NewStaticProvider()
	provider.LoadProfile("car", solvertest.GridDistances(10, 1), solvertest.GridDistances(10, 1), 1)
	spec := objective.Spec{Objectives: []objective.Objective{objective.Default(objective.MinimizeUnassigned)}}

	e := New(problem, provider, spec, DefaultConfig())
	ps1 := e.newPipelineSet()
	ps2 := e.newPipelineSet()

	// distinct constraint instances per set, same coverage
	assert.NotSame(t, ps1.pipelineFor("v1"), ps2.pipelineFor("v1"))
	assert.Len(t, ps2.distinct, len(ps1.distinct))

	// staging sync state in one set is invisible to the other
	sync1 := syncConstraintOf(t, ps1)
	sync2 := syncConstraintOf(t, ps2)
	assert.NotSame(t, sync1, sync2)
	sync1.Stage("team-a", "v1", 100)

	job := model.Job{ID: "s1", Sync: &model.Sync{Key: "team-a", VehiclesRequired: 2, ToleranceSec: 300}}
	ctx := constraint.InsertionContext{
		Route:       &schedule.Route{VehicleID: "v1"},
		Job:         job,
		NewActivity: schedule.Activity{Kind: schedule.JobPlace, ServiceStart: 100},
	}
	sol := population.NewSolution(problem)
	assert.NotNil(t, sync1.EvaluateActivity(sol, ctx))
	assert.Nil(t, sync2.EvaluateActivity(sol, ctx))

	// resync rebuilds from the candidate, discarding staged leftovers
	ps1.resync(sol)
	assert.Nil(t, sync1.EvaluateActivity(sol, ctx))
}

func syncConstraintOf(t *testing.T, ps *pipelineSet) *constraint.SyncConstraint {
	t.Helper()
	for _, c := range ps.distinct {
		if sc, ok := c.(*constraint.SyncConstraint); ok {
			return sc
		}
	}
	t.Fatal("pipeline set has no sync constraint")
	return nil
}

func TestOperatorsByName(t *testing.T) {
	ruins, recreates := OperatorsByName([]string{"random", "worst", "regret-2"})
	assert.Len(t, ruins, 2)
	assert.Len(t, recreates, 1)
	assert.Equal(t, "regret-2", recreates[0].Name())

	// empty selection enables every family
	ruins, recreates = OperatorsByName(nil)
	assert.Len(t, ruins, len(DefaultRuinOperators()))
	assert.Len(t, recreates, len(DefaultRecreateOperators()))

	// a selection naming only recreate operators keeps all ruins enabled
	ruins, _ = OperatorsByName([]string{"cheapest"})
	assert.Len(t, ruins, len(DefaultRuinOperators()))
}
