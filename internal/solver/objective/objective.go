// Package objective implements the predefined objectives and
// lexicographic scoring over a solution's score tuple, shaped after
// internal/common/analytics/predictive_analytics.go's scored-candidate
// pattern.
package objective

import (
	"math"

	"github.com/tobangado69/vrpsolver/internal/solver/cost"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// Solution is the minimal read surface an Objective needs.
type Solution interface {
	Problem() *model.Problem
	Routes() []*schedule.Route
	Unassigned() map[string]UnassignedView
}

// UnassignedView mirrors population.UnassignedEntry without importing
// the population package (avoiding a cycle: population imports objective
// to score candidates).
type UnassignedView struct {
	Reason string
}

// Name identifies a predefined objective, used for declared priority
// ordering in configuration.
type Name string

const (
	MinimizeUnassigned Name = "minimize-unassigned"
	MinimizeTours Name = "minimize-tours"
	MinimizeCost Name = "minimize-cost"
	MaximizeValue Name = "maximize-value"
	BalanceDistance Name = "balance-distance"
	BalanceDuration Name = "balance-duration"
	BalanceLoad Name = "balance-load"
	BalanceActivities Name = "balance-activities"
	TourOrder Name = "tour-order"
)

// Objective computes one component of a solution's lexicographic score.
// Lower is always better; MaximizeValue is implemented as negated sum.
type Objective interface {
	Name() Name
	Evaluate(sol Solution, costOf func(*schedule.Route) float64) float64
}

// Spec declares the objectives in priority order, used to build a
// solution's score tuple.
type Spec struct {
	Objectives []Objective
}

// Score computes the lexicographic tuple for sol, one float64 per
// declared objective, evaluated in order.
func (s Spec) Score(sol Solution, vehicleCost func(*schedule.Route) float64) []float64 {
	out := make([]float64, len(s.Objectives))
	for i, o := range s.Objectives {
		out[i] = o.Evaluate(sol, vehicleCost)
	}
	return out
}

// Dominates reports whether a strictly dominates b: every component of a
// is <= the corresponding component of b, and at least one is strictly
// less.
func Dominates(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	strictlyBetter := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}

type minimizeUnassigned struct{}

func (minimizeUnassigned) Name() Name { return MinimizeUnassigned }
func (minimizeUnassigned) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	p := sol.Problem()
	var total float64
	for jobID := range sol.Unassigned() {
		total += p.UnassignmentWeight(jobID)
	}
	return total
}

type minimizeTours struct{}

func (minimizeTours) Name() Name { return MinimizeTours }
func (minimizeTours) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	count := 0
	for _, r := range sol.Routes() {
		if len(r.Activities) > 0 {
			count++
		}
	}
	return float64(count)
}

type minimizeCost struct{}

func (minimizeCost) Name() Name { return MinimizeCost }
func (minimizeCost) Evaluate(sol Solution, vehicleCost func(*schedule.Route) float64) float64 {
	var total float64
	for _, r := range sol.Routes() {
		total += vehicleCost(r)
	}
	return total
}

type maximizeValue struct{}

func (maximizeValue) Name() Name { return MaximizeValue }
func (maximizeValue) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	p := sol.Problem()
	var total float64
	assigned := map[string]bool{}
	for _, r := range sol.Routes() {
		for _, a := range r.Activities {
			if a.Kind == schedule.JobPlace {
				assigned[a.JobID] = true
			}
		}
	}
	for _, j := range p.Jobs {
		if assigned[j.ID] {
			total += j.Value
		}
	}
	return -total
}

// balance computes the population variance of a per-route metric across
// non-empty routes, a variance-like measure of load/duration imbalance.
func balance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(values))
}

type balanceDistance struct{}

func (balanceDistance) Name() Name { return BalanceDistance }
func (balanceDistance) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	var values []float64
	for _, r := range sol.Routes() {
		if len(r.Activities) > 0 {
			values = append(values, float64(r.TotalDistance()))
		}
	}
	return balance(values)
}

type balanceDuration struct{}

func (balanceDuration) Name() Name { return BalanceDuration }
func (balanceDuration) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	var values []float64
	for _, r := range sol.Routes() {
		if len(r.Activities) > 0 {
			values = append(values, float64(r.TotalDuration()))
		}
	}
	return balance(values)
}

type balanceLoad struct{}

func (balanceLoad) Name() Name { return BalanceLoad }
func (balanceLoad) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	var values []float64
	for _, r := range sol.Routes() {
		if len(r.Activities) == 0 {
			continue
		}
		last := r.Activities[len(r.Activities)-1].LoadAfter
		var sum int64
		for _, v := range last {
			sum += v
		}
		values = append(values, float64(sum))
	}
	return balance(values)
}

type balanceActivities struct{}

func (balanceActivities) Name() Name { return BalanceActivities }
func (balanceActivities) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	var values []float64
	for _, r := range sol.Routes() {
		if len(r.Activities) > 0 {
			values = append(values, float64(len(r.Activities)))
		}
	}
	return balance(values)
}

type tourOrder struct{}

func (tourOrder) Name() Name { return TourOrder }
func (tourOrder) Evaluate(sol Solution, _ func(*schedule.Route) float64) float64 {
	p := sol.Problem()
	var penalty float64
	for _, r := range sol.Routes() {
		lastOrderSeen := -1
		for _, a := range r.Activities {
			if a.Kind != schedule.JobPlace {
				continue
			}
			job, ok := p.JobByID(a.JobID)
			if !ok || a.TaskIndex >= len(job.Tasks) {
				continue
			}
			order := job.Tasks[a.TaskIndex].Order
			if order == model.UnorderedTask {
				continue
			}
			if lastOrderSeen != -1 && order < lastOrderSeen {
				penalty += math.Abs(float64(lastOrderSeen - order))
			}
			lastOrderSeen = order
		}
	}
	return penalty
}

// Default constructs the predefined objective by name. Returns nil for an
// unrecognized name.
func Default(name Name) Objective {
	switch name {
	case MinimizeUnassigned:
		return minimizeUnassigned{}
	case MinimizeTours:
		return minimizeTours{}
	case MinimizeCost:
		return minimizeCost{}
	case MaximizeValue:
		return maximizeValue{}
	case BalanceDistance:
		return balanceDistance{}
	case BalanceDuration:
		return balanceDuration{}
	case BalanceLoad:
		return balanceLoad{}
	case BalanceActivities:
		return balanceActivities{}
	case TourOrder:
		return tourOrder{}
	default:
		return nil
	}
}

// VehicleCost adapts cost.Vehicle into the func(*schedule.Route) float64
// shape objectives expect, looking up each route's vehicle type by id.
func VehicleCost(p *model.Problem) func(*schedule.Route) float64 {
	costByType := map[string]model.CostSchedule{}
	for _, vt := range p.VehicleTypes {
		for _, vid := range vt.VehicleIDs {
			costByType[vid] = vt.Cost
		}
	}
	return func(r *schedule.Route) float64 {
		cs, ok := costByType[r.VehicleID]
		if !ok {
			return 0
		}
		return cost.Vehicle(cs, r.TotalDistance(), r.TotalDuration())
	}
}
