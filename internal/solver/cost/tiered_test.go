package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
)

func TestEvaluateHighestTier(t *testing.T) {
	tiers := []Tier{
		{Threshold: 0, Rate: 1.0},
		{Threshold: 100, Rate: 0.8},
		{Threshold: 500, Rate: 0.5},
	}
	assert.Equal(t, 50.0, Evaluate(50, tiers, HighestTier))
	assert.Equal(t, 200.0*0.8, Evaluate(200, tiers, HighestTier))
	assert.Equal(t, 600.0*0.5, Evaluate(600, tiers, HighestTier))
	assert.Equal(t, 0.0, Evaluate(0, tiers, HighestTier))

	// An amount exactly on a tier boundary stays in the tier below.
	assert.Equal(t, 100.0*1.0, Evaluate(100, tiers, HighestTier))
	assert.Equal(t, 500.0*0.8, Evaluate(500, tiers, HighestTier))
}

func TestEvaluateBoundaryModesAgree(t *testing.T) {
	// A 200 km route on distance tiers [(0,0.003),(100,0.002),(200,0.001)]:
	// highest applicable tier is the one the amount exceeds, so 0.002.
	tiers := []Tier{
		{Threshold: 0, Rate: 0.003},
		{Threshold: 100, Rate: 0.002},
		{Threshold: 200, Rate: 0.001},
	}
	assert.InDelta(t, 0.4, Evaluate(200, tiers, HighestTier), 1e-9)
	assert.InDelta(t, 0.5, Evaluate(200, tiers, Cumulative), 1e-9)
}

func TestEvaluateCumulative(t *testing.T) {
	tiers := []Tier{
		{Threshold: 0, Rate: 1.0},
		{Threshold: 100, Rate: 0.8},
		{Threshold: 500, Rate: 0.5},
	}
	// First 100 units at 1.0, remaining 50 at 0.8.
	assert.Equal(t, 100.0*1.0+50.0*0.8, Evaluate(150, tiers, Cumulative))
	// Entirely within the first tier.
	assert.Equal(t, 50.0, Evaluate(50, tiers, Cumulative))
	// Spans all three tiers: 100*1.0 + 400*0.8 + 100*0.5.
	assert.Equal(t, 100.0*1.0+400.0*0.8+100.0*0.5, Evaluate(600, tiers, Cumulative))
}

func TestEvaluateEmptyTiersOrZeroAmount(t *testing.T) {
	assert.Equal(t, 0.0, Evaluate(100, nil, HighestTier))
	assert.Equal(t, 0.0, Evaluate(0, []Tier{{Threshold: 0, Rate: 1}}, Cumulative))
}

func TestVehicleCombinesFixedAndTiers(t *testing.T) {
	cs := model.CostSchedule{
		Fixed:           10,
		DistanceTiers:   []Tier{{Threshold: 0, Rate: 0.5}},
		TimeTiers:       []Tier{{Threshold: 0, Rate: 0.1}},
		CalculationMode: HighestTier,
	}
	got := Vehicle(cs, 100, 50)
	assert.Equal(t, 10+100*0.5+50*0.1, got)
}
