package dto

import (
	"github.com/tobangado69/vrpsolver/internal/solver/population"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// ActivityKindString renders a schedule.ActivityKind for the wire.
func ActivityKindString(k schedule.ActivityKind) string {
	switch k {
	case schedule.Departure:
		return "departure"
	case schedule.Arrival:
		return "arrival"
	case schedule.JobPlace:
		return "job"
	case schedule.BreakActivity:
		return "break"
	case schedule.ReloadActivity:
		return "reload"
	default:
		return "unknown"
	}
}

// Activity is one stop on a route, on the wire.
type Activity struct {
	Kind         string `json:"kind"`
	JobID        string `json:"job_id,omitempty"`
	TaskIndex    int    `json:"task_index,omitempty"`
	Location     int64  `json:"location"`
	Arrival      int64  `json:"arrival"`
	ServiceStart int64  `json:"service_start"`
	ServiceEnd   int64  `json:"service_end"`
	Waiting      int64  `json:"waiting,omitempty"`
}

// Route is one vehicle shift's stop sequence, on the wire.
type Route struct {
	VehicleID  string     `json:"vehicle_id"`
	ShiftIndex int        `json:"shift_index"`
	Activities []Activity `json:"activities"`
	Distance   int64      `json:"distance"`
	Duration   int64      `json:"duration"`
}

// UnassignedJob reports why a job could not be placed.
type UnassignedJob struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

// Solution is the wire format for a solve result.
type Solution struct {
	Routes      []Route         `json:"routes"`
	Unassigned  []UnassignedJob `json:"unassigned"`
	Scores      []float64       `json:"scores"`
	RouteCount  int             `json:"route_count"`
	JobCount    int             `json:"job_count"`
}

// FromModel builds the wire Solution from a solved population.Solution.
func FromModel(sol *population.Solution) Solution {
	routes := make([]Route, 0, len(sol.Routes()))
	for _, r := range sol.Routes() {
		acts := make([]Activity, len(r.Activities))
		for i, a := range r.Activities {
			acts[i] = Activity{
				Kind:         ActivityKindString(a.Kind),
				JobID:        a.JobID,
				TaskIndex:    a.TaskIndex,
				Location:     int64(a.Location),
				Arrival:      a.Arrival,
				ServiceStart: a.ServiceStart,
				ServiceEnd:   a.ServiceEnd,
				Waiting:      a.Waiting,
			}
		}
		routes = append(routes, Route{
			VehicleID:  r.VehicleID,
			ShiftIndex: r.ShiftIndex,
			Activities: acts,
			Distance:   r.TotalDistance(),
			Duration:   r.TotalDuration(),
		})
	}

	unassigned := make([]UnassignedJob, 0, len(sol.Unassigned()))
	for jobID, entry := range sol.Unassigned() {
		unassigned = append(unassigned, UnassignedJob{JobID: jobID, Reason: entry.Reason})
	}

	return Solution{
		Routes:     routes,
		Unassigned: unassigned,
		Scores:     sol.Scores,
		RouteCount: len(routes),
		JobCount:   len(sol.Problem().Jobs),
	}
}
