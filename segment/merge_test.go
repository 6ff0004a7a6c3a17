package segment

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	decilePropensities = []float64{0.1, 0.15, 0.25, 0.35, 0.45, 0.55, 0.65, 0.75, 0.85, 0.95}
	decilePredictions  = []float64{1, 0, 1, 1, 0, 1, 0, 1, 0, 1}
)

func TestMergeBinsUnderPopulated(t *testing.T) {
	// With one observation per decile every bin of [0,0.2,0.4,0.6,1] except
	// the last holds two samples, below the threshold of three. The first
	// three bins fold together; the final bin (four samples) survives.
	merged := MergeBins([]float64{0.2, 0.4, 0.6}, decilePropensities, decilePredictions, 3)
	assert.Equal(t, []float64{0.6, 1}, merged)
}

func TestMergeBinsKeepsSatisfiedBins(t *testing.T) {
	merged := MergeBins([]float64{0.5}, decilePropensities, decilePredictions, 1)
	assert.Equal(t, []float64{0.5, 1}, merged)
}

func TestMergeBinsAlwaysEndsWithOne(t *testing.T) {
	merged := MergeBins([]float64{0.2, 0.4, 0.6, 0.8}, decilePropensities, decilePredictions, 100)
	require.NotEmpty(t, merged)
	assert.Equal(t, 1.0, merged[len(merged)-1])
}

func TestMergeBinsOutputBoundedAndSorted(t *testing.T) {
	// Unsorted input from a search must still produce a usable boundary set.
	merged := MergeBins([]float64{0.7, 0.2, 0.4}, decilePropensities, decilePredictions, 2)
	assert.LessOrEqual(t, len(merged), 4)
	assert.True(t, sort.Float64sAreSorted(merged))
	for _, cutoff := range merged {
		assert.GreaterOrEqual(t, cutoff, 0.0)
		assert.LessOrEqual(t, cutoff, 1.0)
	}
}

func TestMergeBinsEmptyData(t *testing.T) {
	merged := MergeBins([]float64{0.5}, nil, nil, 1)
	assert.Equal(t, []float64{1}, merged)
}
