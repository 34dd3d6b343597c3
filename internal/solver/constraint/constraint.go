// Package constraint implements the hard/soft constraint pipeline: a
// closed, monomorphic built-in pack for the hot insertion path plus
// Pipeline.Register for cold-path user constraints. Shaped after
// internal/common/validators' composable rule objects and
// internal/common/middleware/error_handler.go's ordered,
// short-circuiting chain.
package constraint

import (
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// Violation is a coded hard-constraint rejection. It is a plain value, not
// an error: treats insertion failures as first-class outcomes.
type Violation struct {
	Code string
}

// InsertionContext describes a hypothetical activity insertion being
// probed by the insertion evaluator.
type InsertionContext struct {
	Route *schedule.Route
	Position int
	Job model.Job
	TaskIndex int
	PlaceIndex int
	NewActivity schedule.Activity
}

// Solution is the minimal read surface constraints need from a solution to
// evaluate cross-route invariants (group/compat/same-assignee/affinity/
// sync). internal/solver/population.Solution implements it.
type Solution interface {
	RouteByVehicle(vehicleID string) (*schedule.Route, bool)
	Routes() []*schedule.Route
	AssignedVehicle(jobID string) (string, bool)
	JobByID(id string) (model.Job, bool)
}

// Kind discriminates hard (vetoing) from soft (cost-contributing)
// constraints, fixing their evaluation order in a Pipeline.
type Kind int

const (
	Hard Kind = iota
	Soft
)

// Constraint is the five-hook contract every built-in and user-registered
// rule implements.
type Constraint interface {
	ID() string
	Kind() Kind

	// EvaluateRoute checks route-level invariants after a structural
	// change; returns a Violation or nil.
	EvaluateRoute(route *schedule.Route) *Violation

	// EvaluateActivity checks one probed insertion position; returns a
	// Violation or nil. Only called for Hard constraints during insertion;
	// Soft constraints are scored instead via SoftCost.
	EvaluateActivity(sol Solution, ctx InsertionContext) *Violation

	// MergeStates combines this constraint's own accumulated state computed
	// independently for two disjoint parts of a solution (e.g. two routes'
	// local contributions to a shared resource pool) into one combined
	// value, the forward/backward accumulation hook of §4.2. Constraints
	// that carry no accumulated state return right unchanged.
	MergeStates(left, right interface{}) interface{}

	// SoftCost returns this constraint's contribution to the insertion
	// cost delta. Hard constraints return 0.
	SoftCost(sol Solution, ctx InsertionContext) float64

	// AcceptRoute recomputes the constraint's own state slot on route r
	// after a mutation has been committed.
	AcceptRoute(route *schedule.Route)

	// AcceptSolution recomputes solution-level state (e.g. sync
	// tentative-placement sets) after a mutation has been committed.
	AcceptSolution(sol Solution)
}

// Pipeline evaluates hard constraints before soft ones, short-circuiting
// on the first hard violation.
type Pipeline struct {
	hard []Constraint
	soft []Constraint
}

// NewPipeline builds a pipeline from the given constraints, partitioning
// them by Kind() while preserving relative order within each partition.
func NewPipeline(constraints...Constraint) *Pipeline {
	p := &Pipeline{}
	for _, c := range constraints {
		if c.Kind() == Hard {
			p.hard = append(p.hard, c)
		} else {
			p.soft = append(p.soft, c)
		}
	}
	return p
}

// Register appends a cold-path user constraint after the built-in pack,
// keeping the built-in loop itself monomorphic.
func (p *Pipeline) Register(c Constraint) {
	if c.Kind() == Hard {
		p.hard = append(p.hard, c)
	} else {
		p.soft = append(p.soft, c)
	}
}

// EvaluateActivity runs every hard constraint in order, returning the
// first violation found, or nil if the position is feasible.
func (p *Pipeline) EvaluateActivity(sol Solution, ctx InsertionContext) *Violation {
	for _, c := range p.hard {
		if v := c.EvaluateActivity(sol, ctx); v != nil {
			return v
		}
	}
	return nil
}

// SoftCost sums every soft constraint's contribution for a feasible
// candidate. Callers only invoke this after EvaluateActivity returns nil.
func (p *Pipeline) SoftCost(sol Solution, ctx InsertionContext) float64 {
	var total float64
	for _, c := range p.soft {
		total += c.SoftCost(sol, ctx)
	}
	return total
}

// EvaluateRoute runs every hard constraint's route-level check, returning
// the first violation found.
func (p *Pipeline) EvaluateRoute(route *schedule.Route) *Violation {
	for _, c := range p.hard {
		if v := c.EvaluateRoute(route); v != nil {
			return v
		}
	}
	return nil
}

// AcceptRoute notifies every constraint (hard and soft) that route has
// been mutated and accepted.
func (p *Pipeline) AcceptRoute(route *schedule.Route) {
	for _, c := range p.hard {
		c.AcceptRoute(route)
	}
	for _, c := range p.soft {
		c.AcceptRoute(route)
	}
}

// AcceptSolution notifies every constraint that sol has been mutated and
// accepted at the solution level.
func (p *Pipeline) AcceptSolution(sol Solution) {
	for _, c := range p.hard {
		c.AcceptSolution(sol)
	}
	for _, c := range p.soft {
		c.AcceptSolution(sol)
	}
}

// MergeStates combines two constraint-state maps, each keyed by
// constraint id (the shape of population.Solution.Global), by delegating
// every key present in either map to its owning constraint's MergeStates
// hook. A key is looked up by walking p.All() so an unregistered id is
// dropped rather than carried through unmerged.
func (p *Pipeline) MergeStates(left, right map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(left)+len(right))
	for _, c := range p.All() {
		l, lok := left[c.ID()]
		r, rok := right[c.ID()]
		switch {
		case lok && rok:
			out[c.ID()] = c.MergeStates(l, r)
		case rok:
			out[c.ID()] = r
		case lok:
			out[c.ID()] = l
		}
	}
	return out
}

// All returns every constraint in hard-then-soft order, for iteration by
// callers that need the full set (e.g. EvaluateRoute across the whole
// pipeline regardless of kind, used by property tests).
func (p *Pipeline) All() []Constraint {
	out := make([]Constraint, 0, len(p.hard)+len(p.soft))
	out = append(out, p.hard...)
	out = append(out, p.soft...)
	return out
}
