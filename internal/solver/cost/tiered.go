// Package cost implements tiered cost evaluation: given an amount and a
// list of (threshold, rate) tiers sorted ascending with the lowest
// threshold 0, compute either the highest-applicable-tier rate or the
// cumulative sum across tiers.
package cost

import "github.com/tobangado69/vrpsolver/internal/solver/model"

// Tier is a re-export of model.CostTier for callers that only need the
// cost package.
type Tier = model.CostTier

// Mode selects the aggregation rule.
type Mode = model.CostCalculationMode

const (
	HighestTier = model.CostHighestTier
	Cumulative = model.CostCumulative
)

// Evaluate computes the cost of amount under tiers using mode. tiers must
// be sorted ascending by Threshold with tiers[0].Threshold == 0; behavior
// is undefined otherwise (the parser/model layer is responsible for that
// invariant).
func Evaluate(amount int64, tiers []Tier, mode Mode) float64 {
	if len(tiers) == 0 || amount <= 0 {
		return 0
	}
	switch mode {
	case HighestTier:
		// Thresholds are half-open boundaries, matching the cumulative
		// branch: a tier applies only once the amount exceeds it, so an
		// amount exactly on a boundary stays in the tier below.
		rate := tiers[0].Rate
		for _, t := range tiers {
			if amount > t.Threshold {
				rate = t.Rate
			} else {
				break
			}
		}
		return float64(amount) * rate
	case Cumulative:
		var total float64
		for i, t := range tiers {
			nextThreshold := int64(1) << 62
			if i+1 < len(tiers) {
				nextThreshold = tiers[i+1].Threshold
			}
			if amount <= t.Threshold {
				break
			}
			span := amount
			if nextThreshold < span {
				span = nextThreshold
			}
			width := span - t.Threshold
			if width <= 0 {
				continue
			}
			total += float64(width) * t.Rate
		}
		return total
	default:
		return 0
	}
}

// Vehicle evaluates a vehicle type's total travel cost for a route's
// accumulated distance and duration, per its CostSchedule.
func Vehicle(cs model.CostSchedule, distance, duration int64) float64 {
	return cs.Fixed +
		Evaluate(distance, cs.DistanceTiers, cs.CalculationMode) +
		Evaluate(duration, cs.TimeTiers, cs.CalculationMode)
}
