package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
)

func straightLineDD(unit int64) DistanceDuration {
	return func(_ string, from, to model.Location) (int64, int64) {
		d := int64(from) - int64(to)
		if d < 0 {
			d = -d
		}
		return d * unit, d * unit
	}
}

func taskLookup(tasks map[string][]model.Task) func(jobID string, idx int) model.Task {
	return func(jobID string, idx int) model.Task {
		ts := tasks[jobID]
		if idx < 0 || idx >= len(ts) {
			return model.Task{}
		}
		return ts[idx]
	}
}

func TestRouteRecomputeForward(t *testing.T) {
	tasksOf := taskLookup(map[string][]model.Task{
		"j1": {{Kind: model.TaskService, Demand: model.Demand{2}, Places: []model.Place{{Location: 5, Duration: 10}}}},
		"j2": {{Kind: model.TaskService, Demand: model.Demand{3}, Places: []model.Place{{Location: 10, Duration: 20}}}},
	})

	r := &Route{
		Profile: "car",
		Activities: []Activity{
			{Kind: Departure, Location: 0},
			{Kind: JobPlace, JobID: "j1", TaskIndex: 0, PlaceIndex: 0, Location: 5, Duration: 10},
			{Kind: JobPlace, JobID: "j2", TaskIndex: 0, PlaceIndex: 0, Location: 10, Duration: 20},
		},
	}

	r.Recompute(0, 1, straightLineDD(1), tasksOf, model.Demand{0})

	assert.Equal(t, int64(0), r.Activities[0].Arrival)
	assert.Equal(t, int64(5), r.Activities[1].Arrival)
	assert.Equal(t, int64(15), r.Activities[1].ServiceEnd)
	assert.Equal(t, int64(10), r.Activities[2].DistanceFromDepot)
	assert.Equal(t, model.Demand{2}, r.Activities[1].LoadAfter)
	assert.Equal(t, model.Demand{5}, r.Activities[2].LoadAfter)

	assert.True(t, r.Feasible(model.Demand{10}, tasksOf))
	assert.False(t, r.Feasible(model.Demand{4}, tasksOf))
}

func TestRouteRecomputeRespectsTimeWindow(t *testing.T) {
	tasksOf := taskLookup(map[string][]model.Task{
		"j1": {{Kind: model.TaskService, Demand: model.Demand{1}, Places: []model.Place{
			{Location: 5, Duration: 10, Windows: []model.TimeWindow{{Earliest: 50, Latest: 60}}},
		}}},
	})

	r := &Route{
		Profile: "car",
		Activities: []Activity{
			{Kind: Departure, Location: 0},
			{Kind: JobPlace, JobID: "j1", TaskIndex: 0, PlaceIndex: 0, Location: 5, Duration: 10},
		},
	}
	r.Recompute(0, 1, straightLineDD(1), tasksOf, model.Demand{0})

	assert.Equal(t, int64(5), r.Activities[1].Arrival)
	assert.Equal(t, int64(50), r.Activities[1].ServiceStart)
	assert.Equal(t, int64(45), r.Activities[1].Waiting)
	assert.True(t, r.Feasible(model.Demand{5}, tasksOf))
}

func TestRouteCloneIsIndependent(t *testing.T) {
	r := &Route{
		VehicleID:  "v1",
		Activities: []Activity{{Kind: Departure, Location: 0}},
		State:      map[string]interface{}{"k": 1},
	}
	clone := r.Clone()
	clone.Activities[0].Location = 99
	clone.State["k"] = 2

	assert.Equal(t, model.Location(0), r.Activities[0].Location)
	assert.Equal(t, 1, r.State["k"])
}

func TestTotalDistanceAndDuration(t *testing.T) {
	tasksOf := taskLookup(map[string][]model.Task{
		"j1": {{Kind: model.TaskService, Demand: model.Demand{0}, Places: []model.Place{{Location: 5, Duration: 10}}}},
	})
	r := &Route{
		Profile: "car",
		Activities: []Activity{
			{Kind: Departure, Location: 0},
			{Kind: JobPlace, JobID: "j1", TaskIndex: 0, PlaceIndex: 0, Location: 5, Duration: 10},
		},
	}
	r.Recompute(0, 1, straightLineDD(2), tasksOf, model.Demand{0})
	assert.Equal(t, int64(10), r.TotalDistance())
	assert.Equal(t, int64(10), r.TotalDuration())
	assert.Equal(t, int64(10), r.ActivityDuration())
}
