package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemandArithmetic(t *testing.T) {
	a := Demand{2, 5}
	b := Demand{1, 3}

	assert.Equal(t, Demand{3, 8}, a.Add(b))
	assert.Equal(t, Demand{1, 2}, a.Sub(b))
	assert.Equal(t, Demand{-2, -5}, a.Negate())
	assert.True(t, b.LessEq(a))
	assert.False(t, a.LessEq(b))
	assert.False(t, a.IsZero())
	assert.True(t, Demand{0, 0}.IsZero())
}

func TestDemandCloneIsIndependent(t *testing.T) {
	a := Demand{1, 2}
	clone := a.Clone()
	clone[0] = 99
	assert.Equal(t, int64(1), a[0])
}

func TestTimeWindowContains(t *testing.T) {
	w := TimeWindow{Earliest: 100, Latest: 200}
	assert.True(t, w.Contains(100))
	assert.True(t, w.Contains(200))
	assert.True(t, w.Contains(150))
	assert.False(t, w.Contains(99))
	assert.False(t, w.Contains(201))
}

func TestPlaceFeasibleAt(t *testing.T) {
	p := Place{
		Windows: []TimeWindow{{Earliest: 0, Latest: 10}, {Earliest: 20, Latest: 30}},
	}
	assert.True(t, p.FeasibleAt(5))
	assert.True(t, p.FeasibleAt(25))
	assert.False(t, p.FeasibleAt(15))

	unrestricted := Place{}
	assert.True(t, unrestricted.FeasibleAt(123456))
}

func TestSkillExprEvaluate(t *testing.T) {
	vehicleSkills := map[string]struct{}{"refrigerated": {}, "liftgate": {}}

	allOf := SkillExpr{Kind: SkillAllOf, Skills: []string{"refrigerated", "liftgate"}}
	assert.True(t, allOf.Evaluate(vehicleSkills))

	allOfMissing := SkillExpr{Kind: SkillAllOf, Skills: []string{"refrigerated", "hazmat"}}
	assert.False(t, allOfMissing.Evaluate(vehicleSkills))

	oneOf := SkillExpr{Kind: SkillOneOf, Skills: []string{"hazmat", "liftgate"}}
	assert.True(t, oneOf.Evaluate(vehicleSkills))

	noneOf := SkillExpr{Kind: SkillNoneOf, Skills: []string{"hazmat"}}
	assert.True(t, noneOf.Evaluate(vehicleSkills))

	noneOfViolated := SkillExpr{Kind: SkillNoneOf, Skills: []string{"liftgate"}}
	assert.False(t, noneOfViolated.Evaluate(vehicleSkills))
}

func TestJobPickupDeliveryDemand(t *testing.T) {
	job := Job{
		Tasks: []Task{
			{Kind: TaskPickup, Demand: Demand{5, 0}},
			{Kind: TaskDelivery, Demand: Demand{-5, 0}},
			{Kind: TaskService, Demand: Demand{1, 0}},
		},
	}
	assert.Equal(t, Demand{5, 0}, job.PickupDemand(2))
	assert.Equal(t, Demand{5, 0}, job.DeliveryDemand(2))
}

func TestProblemUnassignmentWeight(t *testing.T) {
	p := Problem{
		Jobs:             []Job{{ID: "j1"}},
		UnassignedWeight: map[string]float64{"j1": 42},
	}
	assert.Equal(t, 42.0, p.UnassignmentWeight("j1"))
	assert.Equal(t, 1.0, p.UnassignmentWeight("unknown"))

	job, ok := p.JobByID("j1")
	assert.True(t, ok)
	assert.Equal(t, "j1", job.ID)

	_, ok = p.JobByID("nope")
	assert.False(t, ok)
}
