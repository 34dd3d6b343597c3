package population

import (
	"math"
	"math/rand"
	"sync"
)

// Member is one solution held in the Pareto frontier, with its cached
// score for dominance comparisons.
type Member struct {
	Solution *Solution
	Score []float64
}

// Population holds the non-dominated set up to cap P, guarded by a
// single RWMutex: the one lock-guarded shared structure in the engine's
// worker pool.
type Population struct {
	mu sync.RWMutex
	members []Member
	cap int
}

// New builds an empty population with the given Pareto cap.
func New(cap int) *Population {
	if cap <= 0 {
		cap = 4
	}
	return &Population{cap: cap}
}

// dominates reports whether a dominates b, applying the same rule as
// objective.Dominates in a private copy.
func dominates(a, b []float64) bool {
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

// Offer proposes a candidate solution with its precomputed score. It is
// accepted iff not dominated by any current member; on
// acceptance, any member the candidate dominates is evicted, and if the
// frontier still exceeds cap, the most-crowded member is evicted.
// Returns whether the candidate was accepted.
func (p *Population) Offer(sol *Solution, score []float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range p.members {
		if dominates(m.Score, score) {
			return false
		}
	}

	kept := p.members[:0:0]
	for _, m := range p.members {
		if !dominates(score, m.Score) {
			kept = append(kept, m)
		}
	}
	kept = append(kept, Member{Solution: sol, Score: score})
	p.members = kept

	for len(p.members) > p.cap {
		idx := mostCrowded(p.members)
		p.members = append(p.members[:idx], p.members[idx+1:]...)
	}
	return true
}

// mostCrowded returns the index of the member with the smallest crowding
// distance (i.e. the most redundant member to evict).
func mostCrowded(members []Member) int {
	n := len(members)
	if n == 0 {
		return -1
	}
	if n == 1 {
		return 0
	}
	dims := len(members[0].Score)
	distances := make([]float64, n)

	for d := 0; d < dims; d++ {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sortByDim(order, members, d)

		lo, hi := members[order[0]].Score[d], members[order[n-1]].Score[d]
		span := hi - lo
		distances[order[0]] = math.Inf(1)
		distances[order[n-1]] = math.Inf(1)
		if span == 0 {
			continue
		}
		for i := 1; i < n-1; i++ {
			prev := members[order[i-1]].Score[d]
			next := members[order[i+1]].Score[d]
			distances[order[i]] += (next - prev) / span
		}
	}

	worst := 0
	for i := 1; i < n; i++ {
		if distances[i] < distances[worst] {
			worst = i
		}
	}
	return worst
}

func sortByDim(order []int, members []Member, dim int) {
	for i := 1; i < len(order); i++ {
		key := order[i]
		j := i - 1
		for j >= 0 && members[order[j]].Score[dim] > members[key].Score[dim] {
			order[j+1] = order[j]
			j--
		}
		order[j+1] = key
	}
}

// Size returns the current frontier size.
func (p *Population) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

// Seed installs an initial member unconditionally (used to bootstrap the
// population with constructive-insertion restarts, before any dominance
// comparison is meaningful).
func (p *Population) Seed(sol *Solution, score []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members = append(p.members, Member{Solution: sol, Score: score})
	for len(p.members) > p.cap {
		idx := mostCrowded(p.members)
		p.members = append(p.members[:idx], p.members[idx+1:]...)
	}
}

// DrawParent returns a random member weighted toward front-most (index 0)
// entries. rng must not be shared across goroutines without external
// synchronization; the engine gives each worker its own.
func (p *Population) DrawParent(rng *rand.Rand) (*Solution, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.members)
	if n == 0 {
		return nil, false
	}
	weights := make([]float64, n)
	var total float64
	for i := range weights {
		w := 1.0 / float64(i+1)
		weights[i] = w
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return p.members[i].Solution, true
		}
		r -= w
	}
	return p.members[n-1].Solution, true
}

// Best returns the member with the lowest first-objective score (the
// primary lexicographic criterion), used to report a final result after
// termination.
func (p *Population) Best() (*Solution, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.members) == 0 {
		return nil, false
	}
	best := p.members[0]
	for _, m := range p.members[1:] {
		for i := 0; i < len(m.Score) && i < len(best.Score); i++ {
			if m.Score[i] != best.Score[i] {
				if m.Score[i] < best.Score[i] {
					best = m
				}
				break
			}
		}
	}
	return best.Solution, true
}

// Members returns a snapshot copy of the current frontier.
func (p *Population) Members() []Member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Member, len(p.members))
	copy(out, p.members)
	return out
}
