package microstate

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelation(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, Correlation(a, a), 1e-12)
	assert.InDelta(t, -1.0, Correlation(a, []float64{-1, -2, -3, -4}), 1e-12)
	assert.Equal(t, 0.0, Correlation(a, []float64{7, 7, 7, 7}), "flat vector correlates 0")
	assert.Equal(t, 0.0, Correlation([]float64{1}, []float64{2}), "single value correlates 0")
	assert.InDelta(t, 0.0, Correlation([]float64{10, -10, 0, 0}, []float64{0, 0, 10, -10}), 1e-12)
}

func TestCorrelation_Bounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 500; trial++ {
		a := make([]float64, 16)
		b := make([]float64, 16)
		for i := range a {
			a[i] = rng.NormFloat64() * 1e3
			b[i] = a[i]*rng.Float64() + rng.NormFloat64()
		}
		r := Correlation(a, b)
		if math.IsNaN(r) || r < -1 || r > 1 {
			t.Fatalf("trial %d: correlation %v outside [-1, 1]", trial, r)
		}
	}
}

func TestCorrelationChecked(t *testing.T) {
	_, err := CorrelationChecked([]float64{1, 2, 3}, []float64{1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimension))

	r, err := CorrelationChecked([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)
}

func TestParsePolarity(t *testing.T) {
	for in, want := range map[string]Polarity{
		"signed":   PolaritySigned,
		"ABSOLUTE": PolarityAbsolute,
		" abs ":    PolarityAbsolute,
	} {
		got, err := ParsePolarity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.NotEmpty(t, got.String())
	}
	_, err := ParsePolarity("both")
	assert.Error(t, err)
}

func TestBestMap_Policies(t *testing.T) {
	ta := []float64{10, -10, 0, 0}
	tb := []float64{0, 0, 10, -10}
	maps, err := NewMapSet([][]float64{tb, ta})
	require.NoError(t, err)
	inverted := []float64{-10, 10, 0, 0}

	j, r := bestMap(inverted, maps, PolaritySigned)
	assert.Equal(t, 0, j, "signed policy prefers the uncorrelated map over the inverted one")
	assert.InDelta(t, 0.0, r, 1e-12)

	j, r = bestMap(inverted, maps, PolarityAbsolute)
	assert.Equal(t, 1, j)
	assert.InDelta(t, -1.0, r, 1e-12)

	same, err := NewMapSet([][]float64{ta, ta, ta})
	require.NoError(t, err)
	j, _ = bestMap(ta, same, PolarityAbsolute)
	assert.Equal(t, 0, j, "ties go to the lowest index")
}
