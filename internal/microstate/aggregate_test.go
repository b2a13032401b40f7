package microstate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/testutil"
)

func fourMaps(t *testing.T) MapSet {
	t.Helper()
	ms, err := NewMapSet([][]float64{
		{5, 4, 1, -2, -3, -5},
		{-4, 3, 6, 2, -1, -6},
		{1, -6, 2, 5, -3, 1},
		{3, 3, -5, -5, 2, 2},
	})
	require.NoError(t, err)
	return ms
}

func TestClusterOfClusters_IdenticalSetsRecovered(t *testing.T) {
	want := fourMaps(t)
	sets := make([]MapSet, 6)
	for i := range sets {
		sets[i] = want.Clone()
	}

	for seed := uint64(1); seed <= 5; seed++ {
		params := DefaultAggregateParams()
		params.Seed = seed
		got, err := ClusterOfClusters(sets, params)
		require.NoError(t, err)

		aligned, _, err := AlignMaps(want, got)
		require.NoError(t, err)
		testutil.AssertFloatsNear(t, aligned.Values, want.Values, 1e-12)
	}
}

func TestClusterOfClusters_SeparatesGroups(t *testing.T) {
	// Two tight groups of maps; Euclidean clustering must split them.
	a, err := NewMapSet([][]float64{{10, 0}, {10.2, 0.1}})
	require.NoError(t, err)
	b, err := NewMapSet([][]float64{{-10, 1}, {9.9, -0.1}})
	require.NoError(t, err)

	params := DefaultAggregateParams()
	params.K = 2
	got, err := ClusterOfClusters([]MapSet{a, b}, params)
	require.NoError(t, err)

	var near, far []float64
	for i := 0; i < got.K; i++ {
		if got.Map(i)[0] > 0 {
			near = got.Map(i)
		} else {
			far = got.Map(i)
		}
	}
	require.NotNil(t, near)
	require.NotNil(t, far)
	testutil.AssertFloatsNear(t, near, []float64{(10 + 10.2 + 9.9) / 3, 0}, 1e-9)
	testutil.AssertFloatsNear(t, far, []float64{-10, 1}, 1e-12)
}

func TestClusterOfClusters_Deterministic(t *testing.T) {
	sets := []MapSet{fourMaps(t), fourMaps(t)}
	sets[1].Values[0] += 0.5
	params := DefaultAggregateParams()
	params.K = 3
	first, err := ClusterOfClusters(sets, params)
	require.NoError(t, err)
	second, err := ClusterOfClusters(sets, params)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClusterOfClusters_Errors(t *testing.T) {
	params := DefaultAggregateParams()

	_, err := ClusterOfClusters(nil, params)
	assert.True(t, errors.Is(err, ErrDegenerateInput), "no sets: %v", err)

	small, err := NewMapSet([][]float64{{1, 2}, {2, 1}})
	require.NoError(t, err)
	_, err = ClusterOfClusters([]MapSet{small}, params)
	assert.True(t, errors.Is(err, ErrDegenerateInput), "too few maps: %v", err)

	wide, err := NewMapSet([][]float64{{1, 2, 3}, {3, 2, 1}})
	require.NoError(t, err)
	_, err = ClusterOfClusters([]MapSet{small, wide}, params)
	assert.True(t, errors.Is(err, ErrShape), "mixed widths: %v", err)
}
