// Package schedule maintains per-route derived state: the forward
// schedule, backward slack, and capacity curve for each activity in a
// route, incrementally recomputed rather than rebuilt from scratch on
// every change.
package schedule

import "github.com/tobangado69/vrpsolver/internal/solver/model"

// ActivityKind discriminates the variants of an Activity.
type ActivityKind int

const (
	Departure ActivityKind = iota
	Arrival
	JobPlace
	BreakActivity
	ReloadActivity
)

// Activity is one occurrence in a route. JobID/TaskIndex/PlaceIndex are
// only meaningful when Kind == JobPlace.
type Activity struct {
	Kind ActivityKind

	JobID string
	TaskIndex int
	PlaceIndex int

	Location model.Location
	Duration int64

	// Scheduled fields, recomputed by Route.Recompute.
	Arrival int64
	ServiceStart int64
	ServiceEnd int64
	Waiting int64
	LatestDeparture int64

	// LoadAfter is the capacity curve value immediately after this
	// activity within its trip segment.
	LoadAfter model.Demand

	// DistanceFromDepot / DurationFromDepot are accumulated totals up to
	// and including this activity.
	DistanceFromDepot int64
	DurationFromDepot int64
}

// Windows returns the active place's feasible time windows, or nil for
// activities that aren't bound to a Job place alternative (depot,
// break, reload all carry their own window logic elsewhere).
func (a Activity) Windows(task model.Task) []model.TimeWindow {
	if a.PlaceIndex < 0 || a.PlaceIndex >= len(task.Places) {
		return nil
	}
	return task.Places[a.PlaceIndex].Windows
}

// IsTrip boundary activities (reload, depot departure) start a new trip
// segment in the capacity curve.
func (a Activity) IsTripBoundary() bool {
	return a.Kind == Departure || a.Kind == ReloadActivity
}
