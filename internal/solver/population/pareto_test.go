package population

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
)

func newSol() *Solution {
	return NewSolution(&model.Problem{})
}

func TestOfferAcceptsNonDominated(t *testing.T) {
	p := New(4)
	assert.True(t, p.Offer(newSol(), []float64{1, 5}))
	assert.True(t, p.Offer(newSol(), []float64{5, 1}))
	assert.Equal(t, 2, p.Size())
}

func TestOfferRejectsDominatedCandidate(t *testing.T) {
	p := New(4)
	p.Offer(newSol(), []float64{1, 1})
	accepted := p.Offer(newSol(), []float64{2, 2})
	assert.False(t, accepted)
	assert.Equal(t, 1, p.Size())
}

func TestOfferEvictsMembersDominatedByCandidate(t *testing.T) {
	p := New(4)
	p.Offer(newSol(), []float64{5, 5})
	accepted := p.Offer(newSol(), []float64{1, 1})
	assert.True(t, accepted)
	assert.Equal(t, 1, p.Size())
}

func TestOfferEvictsMostCrowdedWhenOverCap(t *testing.T) {
	p := New(2)
	p.Offer(newSol(), []float64{1, 10})
	p.Offer(newSol(), []float64{5, 5})
	p.Offer(newSol(), []float64{10, 1})
	assert.Equal(t, 2, p.Size())
	for _, m := range p.Members() {
		assert.NotEqual(t, []float64{5, 5}, m.Score)
	}
}

func TestSeedBypassesDominanceCheck(t *testing.T) {
	p := New(4)
	p.Seed(newSol(), []float64{10, 10})
	p.Seed(newSol(), []float64{20, 20})
	assert.Equal(t, 2, p.Size())
}

func TestDrawParentOnEmptyPopulation(t *testing.T) {
	p := New(4)
	_, ok := p.DrawParent(rand.New(rand.NewSource(1)))
	assert.False(t, ok)
}

func TestDrawParentReturnsAMember(t *testing.T) {
	p := New(4)
	s1, s2 := newSol(), newSol()
	p.Offer(s1, []float64{1, 5})
	p.Offer(s2, []float64{5, 1})

	drawn, ok := p.DrawParent(rand.New(rand.NewSource(1)))
	assert.True(t, ok)
	assert.True(t, drawn == s1 || drawn == s2)
}

func TestBestReturnsDominatingMember(t *testing.T) {
	p := New(4)
	best := newSol()
	p.Offer(newSol(), []float64{5, 5})
	p.Offer(best, []float64{1, 1})

	got, ok := p.Best()
	assert.True(t, ok)
	assert.Same(t, best, got)
}

func TestBestOnEmptyPopulation(t *testing.T) {
	p := New(4)
	_, ok := p.Best()
	assert.False(t, ok)
}
