package model

import (
	"fmt"

	apperrors "github.com/tobangado69/vrpsolver/pkg/errors"
)

// ValidationIssue is one structural or semantic problem found in a Problem
// document, carrying the Exxxx code the parser contract assigns to it.
type ValidationIssue struct {
	Code string
	Message string
}

// AppError converts the issue into the repo-wide AppError shape so the
// HTTP layer can surface it uniformly with every other error.
func (v ValidationIssue) AppError() *apperrors.AppError {
	return &apperrors.AppError{
		Code: v.Code,
		Message: v.Message,
		Status: 422,
	}
}

// Validate checks the structural and cross-field invariants this package
// places on jobs and vehicles, returning every issue found (not just the
// first), via the same ValidationErrors accumulation pattern used
// elsewhere in the repo.
func Validate(p *Problem) []ValidationIssue {
	var issues []ValidationIssue

	for _, vt := range p.VehicleTypes {
		if len(vt.Capacity) != p.Dimensions {
			issues = append(issues, ValidationIssue{
				Code: "E1300",
				Message: fmt.Sprintf("vehicle type %q: capacity dimension mismatch", vt.TypeID),
			})
		}
		if len(vt.Shifts) == 0 {
			issues = append(issues, ValidationIssue{
				Code: "E1301",
				Message: fmt.Sprintf("vehicle type %q: at least one shift is required", vt.TypeID),
			})
		}
		for i, b := range vt.Shifts {
			for j, brk := range b.Breaks {
				if brk.Required && brk.Window.Earliest > brk.Window.Latest {
					issues = append(issues, ValidationIssue{
						Code: "E1307",
						Message: fmt.Sprintf("vehicle type %q shift %d break %d: invalid window", vt.TypeID, i, j),
					})
				}
			}
		}
	}

	syncGroups := map[string][]Job{}

	for _, j := range p.Jobs {
		if len(j.Tasks) == 0 {
			issues = append(issues, ValidationIssue{
				Code: "E1100",
				Message: fmt.Sprintf("job %q: at least one task is required", j.ID),
			})
			continue
		}
		hasPickup, hasDelivery := false, false
		for _, t := range j.Tasks {
			if len(t.Demand) != p.Dimensions {
				issues = append(issues, ValidationIssue{
					Code: "E1102",
					Message: fmt.Sprintf("job %q: task demand dimension mismatch", j.ID),
				})
			}
			if len(t.Places) == 0 {
				issues = append(issues, ValidationIssue{
					Code: "E1103",
					Message: fmt.Sprintf("job %q: task has no places", j.ID),
				})
			}
			if t.Kind == TaskPickup {
				hasPickup = true
			}
			if t.Kind == TaskDelivery {
				hasDelivery = true
			}
		}
		// Pickup/delivery demand equality (spec.md §3) only applies to a
		// multi-pickup/multi-delivery job that actually couples the two
		// roles; a pickup-only or delivery-only job (plain CVRP linehaul)
		// has nothing to balance against.
		if hasPickup && hasDelivery {
			pickup := j.PickupDemand(p.Dimensions)
			delivery := j.DeliveryDemand(p.Dimensions)
			if !demandEqual(pickup, delivery) {
				issues = append(issues, ValidationIssue{
					Code: "E1101",
					Message: fmt.Sprintf("job %q: pickup demand must equal delivery demand", j.ID),
				})
			}
		}

		if j.Sync != nil {
			syncGroups[j.Sync.Key] = append(syncGroups[j.Sync.Key], j)
		}
	}

	for key, members := range syncGroups {
		if len(members) == 0 {
			continue
		}
		required := members[0].Sync.VehiclesRequired
		if len(members) != required {
			issues = append(issues, ValidationIssue{
				Code: "E1104",
				Message: fmt.Sprintf("sync group %q: expected %d members, found %d", key, required, len(members)),
			})
		}
		seenIdx := map[int]bool{}
		for _, m := range members {
			seenIdx[m.Sync.Index] = true
		}
		for i := 0; i < required; i++ {
			if !seenIdx[i] {
				issues = append(issues, ValidationIssue{
					Code: "E1105",
					Message: fmt.Sprintf("sync group %q: missing index %d", key, i),
				})
			}
		}
	}

	return issues
}

func demandEqual(a, b Demand) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Demand returns the first task's demand, or nil for a job with no
// tasks. Validate does not call it.
func (j Job) Demand() Demand {
	if len(j.Tasks) == 0 {
		return nil
	}
	return j.Tasks[0].Demand
}
