package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticProviderDistanceAndDuration(t *testing.T) {
	p := NewStaticProvider()
	p.LoadProfile("car",
		[][]int64{{0, 10}, {10, 0}},
		[][]int64{{0, 5}, {5, 0}},
		2.0,
	)
	assert.Equal(t, int64(10), p.Distance("car", 0, 1))
	assert.Equal(t, int64(10), p.Duration("car", 0, 1)) // 5 * scale 2.0
}

func TestStaticProviderDefaultsScaleToOne(t *testing.T) {
	p := NewStaticProvider()
	p.LoadProfile("car", [][]int64{{0}}, [][]int64{{0}}, 0)
	assert.Equal(t, int64(0), p.Duration("car", 0, 0))
}

func TestStaticProviderOutOfRangeReturnsZero(t *testing.T) {
	p := NewStaticProvider()
	p.LoadProfile("car", [][]int64{{0}}, [][]int64{{0}}, 1)
	assert.Equal(t, int64(0), p.Distance("car", 5, 9))
	assert.Equal(t, int64(0), p.Duration("unknown-profile", 0, 0))
}

func TestLoadProfilePanicsOnDimensionMismatch(t *testing.T) {
	p := NewStaticProvider()
	assert.Panics(t, func() {
		p.LoadProfile("car", [][]int64{{0, 1}}, [][]int64{{0}}, 1)
	})
}

func TestLoadProfilePanicsOnNonSquareMatrix(t *testing.T) {
	p := NewStaticProvider()
	assert.Panics(t, func() {
		p.LoadProfile("car", [][]int64{{0, 1, 2}, {0, 1}}, [][]int64{{0, 1, 2}, {0, 1, 2}}, 1)
	})
}
