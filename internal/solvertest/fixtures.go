// Package solvertest provides fixture builders for solver tests: small,
// fully-populated default values the caller tweaks field-by-field rather
// than a builder DSL.
package solvertest

import (
	"github.com/tobangado69/vrpsolver/internal/solver/model"
)

// NewPlace returns a single-window place at loc with the given service
// duration, open the whole horizon.
func NewPlace(loc model.Location, duration int64) model.Place {
	return model.Place{
		Location: loc,
		Duration: duration,
		Windows:  []model.TimeWindow{{Earliest: 0, Latest: 1 << 40}},
	}
}

// NewWindowedPlace returns a single-window place restricted to [earliest,
// latest].
func NewWindowedPlace(loc model.Location, duration, earliest, latest int64) model.Place {
	return model.Place{
		Location: loc,
		Duration: duration,
		Windows:  []model.TimeWindow{{Earliest: earliest, Latest: latest}},
	}
}

// NewServiceJob returns a single-task, single-place job with demand dims
// filled from demand (padded/truncated to dims).
func NewServiceJob(id string, place model.Place, demand []int64, dims int) model.Job {
	return model.Job{
		ID: id,
		Tasks: []model.Task{
			{
				Kind:   model.TaskService,
				Places: []model.Place{place},
				Demand: fitDemand(demand, dims),
				Order:  model.UnorderedTask,
			},
		},
		Value: 1,
	}
}

// NewPickupDeliveryJob returns a two-task job: a pickup at pickupPlace
// followed by a delivery at deliveryPlace; the pickup carries demand and
// the delivery carries it negated.
func NewPickupDeliveryJob(id string, pickupPlace, deliveryPlace model.Place, demand []int64, dims int) model.Job {
	d := fitDemand(demand, dims)
	return model.Job{
		ID: id,
		Tasks: []model.Task{
			{Kind: model.TaskPickup, Places: []model.Place{pickupPlace}, Demand: d, Order: 0},
			{Kind: model.TaskDelivery, Places: []model.Place{deliveryPlace}, Demand: d.Negate(), Order: 1},
		},
		Value: 1,
	}
}

func fitDemand(demand []int64, dims int) model.Demand {
	out := make(model.Demand, dims)
	copy(out, demand)
	return out
}

// NewVehicleType returns a single-shift vehicle type with the given
// capacity and an unrestricted shift starting at loc.
func NewVehicleType(typeID string, vehicleIDs []string, startLoc model.Location, capacity []int64, dims int) model.VehicleType {
	return model.VehicleType{
		TypeID:     typeID,
		VehicleIDs: vehicleIDs,
		Profile:    "car",
		Capacity:   fitDemand(capacity, dims),
		Shifts: []model.Shift{
			{
				StartLocation: startLoc,
				StartEarliest: 0,
			},
		},
	}
}

// NewProblem assembles a minimal valid problem from vehicle types and
// jobs, with the given dimension count.
func NewProblem(dims int, vehicleTypes []model.VehicleType, jobs []model.Job) *model.Problem {
	return &model.Problem{
		VehicleTypes: vehicleTypes,
		Jobs:         jobs,
		Dimensions:   dims,
	}
}

// GridDistances builds a symmetric dense distance/duration matrix for n
// locations laid out on a 1-D line with unit spacing, scaled by unit —
// enough for deterministic insertion-ordering tests without a real
// geocoded matrix.
func GridDistances(n int, unit int64) [][]int64 {
	m := make([][]int64, n)
	for i := range m {
		m[i] = make([]int64, n)
		for j := range m[i] {
			d := i - j
			if d < 0 {
				d = -d
			}
			m[i][j] = int64(d) * unit
		}
	}
	return m
}
