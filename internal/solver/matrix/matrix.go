// Package matrix defines the routing-matrix provider boundary. The core
// only ever reads through Provider; acquisition
// (OSRM, a distance-matrix API, a precomputed file) is an external
// collaborator's concern. StaticProvider is the in-core implementation
// used for tests and for deployments that materialize matrices up front.
package matrix

import (
	"fmt"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
)

// Provider resolves distance and duration between two locations for a
// named profile. Implementations must be safe for concurrent read-only
// access and must not perform I/O after construction.
type Provider interface {
	Distance(profile string, from, to model.Location) int64
	Duration(profile string, from, to model.Location) int64
}

// StaticProvider holds dense, fully materialized matrices keyed by
// profile name, with a per-vehicle-type duration scale multiplier applied
// at lookup time.
type StaticProvider struct {
	distances map[string][][]int64
	durations map[string][][]int64
	scales map[string]float64
}

// NewStaticProvider builds an empty provider; LoadProfile installs each
// profile's dense distance and duration matrices.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		distances: map[string][][]int64{},
		durations: map[string][][]int64{},
		scales: map[string]float64{},
	}
}

// LoadProfile installs a profile's matrices and duration scale. Intended
// to run once at startup; panics on malformed (non-square, mismatched)
// input since that indicates a construction bug, not a runtime condition.
func (p *StaticProvider) LoadProfile(profile string, distances, durations [][]int64, scale float64) {
	n := len(distances)
	if len(durations) != n {
		panic(fmt.Sprintf("matrix: profile %q distance/duration dimension mismatch", profile))
	}
	for _, row := range distances {
		if len(row) != n {
			panic(fmt.Sprintf("matrix: profile %q distance matrix is not square", profile))
		}
	}
	for _, row := range durations {
		if len(row) != n {
			panic(fmt.Sprintf("matrix: profile %q duration matrix is not square", profile))
		}
	}
	if scale <= 0 {
		scale = 1
	}
	p.distances[profile] = distances
	p.durations[profile] = durations
	p.scales[profile] = scale
}

func (p *StaticProvider) Distance(profile string, from, to model.Location) int64 {
	m := p.distances[profile]
	if int(from) >= len(m) || int(to) >= len(m) {
		return 0
	}
	return m[from][to]
}

func (p *StaticProvider) Duration(profile string, from, to model.Location) int64 {
	m := p.durations[profile]
	if int(from) >= len(m) || int(to) >= len(m) {
		return 0
	}
	scale := p.scales[profile]
	if scale == 0 {
		scale = 1
	}
	return int64(float64(m[from][to]) * scale)
}
