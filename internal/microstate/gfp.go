package microstate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GFP returns the Global Field Power of every sample: the population
// standard deviation of the electrode values at that instant.
func GFP(m Matrix) ([]float64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	gfp := make([]float64, len(m))
	for s, row := range m {
		gfp[s] = GFPOf(row)
	}
	return gfp, nil
}

// GFPOf returns the Global Field Power of a single topography. A flat
// topography has a GFP of exactly zero.
func GFPOf(v []float64) float64 {
	if len(v) == 0 || isFlat(v) {
		return 0
	}
	_, variance := stat.PopMeanVariance(v, nil)
	return math.Sqrt(variance)
}

// isFlat reports whether every value in v is identical. Checked explicitly
// so rounding in the mean never turns a flat vector into a non-zero GFP.
func isFlat(v []float64) bool {
	return floats.Max(v) == floats.Min(v)
}
