package bandit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectPrefersUntriedArmsDuringExploitation(t *testing.T) {
	arms := []Arm{{Ruin: "random", Recreate: "cheapest"}, {Ruin: "worst", Recreate: "regret2"}}
	b := New(arms, 0)
	b.Update(arms[0], 1)

	rng := rand.New(rand.NewSource(1))
	selected := b.Select(rng)
	assert.Equal(t, arms[1], selected)
}

func TestSelectExploitsHighestAverageReward(t *testing.T) {
	arms := []Arm{{Ruin: "random", Recreate: "cheapest"}, {Ruin: "worst", Recreate: "regret2"}}
	b := New(arms, 0)
	b.Update(arms[0], 1)
	b.Update(arms[1], 10)

	rng := rand.New(rand.NewSource(1))
	selected := b.Select(rng)
	assert.Equal(t, arms[1], selected)
}

func TestUpdateAveragesReward(t *testing.T) {
	arm := Arm{Ruin: "random", Recreate: "cheapest"}
	b := New([]Arm{arm}, 0.1)
	b.Update(arm, 1)
	b.Update(arm, 0)
	snap := b.Snapshot()
	assert.Equal(t, 0.5, snap[arm])
}

func TestUpdateAddsUnknownArm(t *testing.T) {
	b := New(nil, 0.1)
	arm := Arm{Ruin: "cluster", Recreate: "blink"}
	b.Update(arm, 1)
	snap := b.Snapshot()
	assert.Equal(t, 1.0, snap[arm])
}

func TestNewDefaultsEpsilon(t *testing.T) {
	b := New(nil, 0)
	assert.Equal(t, 0.1, b.epsilon)
}

func TestSelectEmptyArmsReturnsZeroValue(t *testing.T) {
	b := New(nil, 0.1)
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, Arm{}, b.Select(rng))
}
