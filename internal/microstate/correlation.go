package microstate

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Correlation returns the Pearson correlation of a and b. A zero-variance
// vector correlates 0 with anything, which keeps clustering and labeling
// total. The result is clamped to [-1, 1]. a and b must have equal length;
// use CorrelationChecked when that is not already guaranteed.
func Correlation(a, b []float64) float64 {
	if len(a) < 2 || isFlat(a) || isFlat(b) {
		return 0
	}
	r := stat.Correlation(a, b, nil)
	switch {
	case math.IsNaN(r):
		return 0
	case r > 1:
		return 1
	case r < -1:
		return -1
	}
	return r
}

// CorrelationChecked is Correlation with a length check.
func CorrelationChecked(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, newError(ErrDimension, "correlation", "lengths %d and %d differ", len(a), len(b))
	}
	return Correlation(a, b), nil
}

// Polarity selects how the sign of a correlation is treated when picking
// the best matching map.
type Polarity int

const (
	// PolaritySigned picks the map with the largest signed correlation.
	PolaritySigned Polarity = iota
	// PolarityAbsolute picks the map with the largest absolute correlation,
	// so a map and its inverse are the same microstate.
	PolarityAbsolute
)

func (p Polarity) String() string {
	switch p {
	case PolaritySigned:
		return "signed"
	case PolarityAbsolute:
		return "absolute"
	}
	return fmt.Sprintf("Polarity(%d)", int(p))
}

// ParsePolarity accepts "signed" or "absolute".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "signed":
		return PolaritySigned, nil
	case "absolute", "abs":
		return PolarityAbsolute, nil
	}
	return 0, fmt.Errorf("unknown polarity %q (want signed or absolute)", s)
}

// score maps a correlation to the quantity being maximised.
func (p Polarity) score(r float64) float64 {
	if p == PolarityAbsolute {
		return math.Abs(r)
	}
	return r
}

// bestMap returns the index of the map in ms that best matches v under the
// polarity, with ties going to the lowest index, and the raw correlation
// with that map.
func bestMap(v []float64, ms MapSet, p Polarity) (int, float64) {
	best := 0
	bestScore := math.Inf(-1)
	bestR := 0.0
	for j := 0; j < ms.K; j++ {
		r := Correlation(v, ms.Map(j))
		if s := p.score(r); s > bestScore {
			best, bestScore, bestR = j, s, r
		}
	}
	return best, bestR
}
