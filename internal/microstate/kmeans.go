package microstate

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/monitoring"
)

// Constants for correlation k-means configuration
const (
	// DefaultClusters is the default number of canonical maps
	DefaultClusters = 4
	// DefaultIterations is the default number of k-means iterations
	DefaultIterations = 10
	// DefaultSeed is the default seed for initial centroids
	DefaultSeed = 1
	// DefaultInitAmplitude bounds the initial centroid integers to [-15, 15]
	DefaultInitAmplitude = 15
)

// KMeansParams configures CorrelationKMeans.
type KMeansParams struct {
	K          int
	Iterations int
	Seed       uint64
	// InitAmplitude bounds the uniformly drawn integer centroid values.
	InitAmplitude int
	// Polarity decides how points are assigned; absolute by default.
	Polarity Polarity
	// StopOnConvergence ends the loop early once an iteration leaves every
	// assignment unchanged.
	StopOnConvergence bool
	// InitialCentroids, when set, replaces the random initialisation.
	InitialCentroids *MapSet
}

// DefaultKMeansParams returns the parameters used when nothing is configured.
func DefaultKMeansParams() KMeansParams {
	return KMeansParams{
		K:             DefaultClusters,
		Iterations:    DefaultIterations,
		Seed:          DefaultSeed,
		InitAmplitude: DefaultInitAmplitude,
		Polarity:      PolarityAbsolute,
	}
}

// GEVTrace records Global Explained Variance after every iteration.
// PerCluster[it][j] is the GEV of cluster j over its own points; Total[it]
// is the GEV over all points.
type GEVTrace struct {
	PerCluster [][]float64
	Total      []float64
}

// Final returns the total GEV of the last iteration.
func (t GEVTrace) Final() float64 {
	if len(t.Total) == 0 {
		return 0
	}
	return t.Total[len(t.Total)-1]
}

// KMeansResult is the outcome of CorrelationKMeans.
type KMeansResult struct {
	Maps        MapSet
	Assignments []int // cluster index per input point
	GEV         GEVTrace
	Iterations  int // iterations actually run
}

// InitialCentroids draws k centroids of dim values, each an integer
// uniformly distributed in [-amplitude, amplitude], from a PCG source seeded
// with seed. Equal seeds give equal centroids.
func InitialCentroids(k, dim, amplitude int, seed uint64) MapSet {
	if amplitude <= 0 {
		amplitude = DefaultInitAmplitude
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	ms := MapSet{K: k, Dim: dim, Values: make([]float64, k*dim)}
	for i := range ms.Values {
		ms.Values[i] = float64(rng.IntN(2*amplitude+1) - amplitude)
	}
	return ms
}

// CorrelationKMeans clusters topographies into K canonical maps using
// spatial correlation as the similarity. Each iteration assigns every point
// to its best correlated centroid (lowest index on ties), replaces each
// non-empty cluster's centroid with the mean of its points, and records GEV.
// Empty clusters keep their previous centroid.
func CorrelationKMeans(points [][]float64, params KMeansParams) (*KMeansResult, error) {
	const op = "kmeans"
	if err := checkK(op, params.K); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, newError(ErrDegenerateInput, op, "no topographies to cluster")
	}
	if len(points) < params.K {
		return nil, newError(ErrDegenerateInput, op, "%d topographies for %d clusters", len(points), params.K)
	}
	if params.Iterations < 1 {
		params.Iterations = DefaultIterations
	}

	dim := len(points[0])
	var centroids MapSet
	if params.InitialCentroids != nil {
		centroids = params.InitialCentroids.Clone()
		if centroids.K != params.K {
			return nil, newError(ErrDimension, op, "%d initial centroids for %d clusters", centroids.K, params.K)
		}
		dim = centroids.Dim
	} else {
		centroids = InitialCentroids(params.K, dim, params.InitAmplitude, params.Seed)
	}

	allFlat := true
	pointGFP := make([]float64, len(points))
	for i, p := range points {
		if len(p) != dim {
			return nil, newError(ErrDimension, op, "topography %d has %d values, centroids have %d", i, len(p), dim)
		}
		pointGFP[i] = GFPOf(p)
		if pointGFP[i] > 0 {
			allFlat = false
		}
	}
	if allFlat {
		return nil, newError(ErrDegenerateCluster, op, "all %d topographies are flat", len(points))
	}

	k := params.K
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}
	sums := make([]float64, k*dim)
	counts := make([]int, k)
	res := &KMeansResult{}

	for it := 0; it < params.Iterations; it++ {
		changed := 0
		for i, p := range points {
			j, _ := bestMap(p, centroids, params.Polarity)
			if assign[i] != j {
				changed++
			}
			assign[i] = j
		}

		for i := range sums {
			sums[i] = 0
		}
		for j := range counts {
			counts[j] = 0
		}
		for i, p := range points {
			j := assign[i]
			floats.Add(sums[j*dim:(j+1)*dim], p)
			counts[j]++
		}
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				continue
			}
			c := centroids.Map(j)
			copy(c, sums[j*dim:(j+1)*dim])
			floats.Scale(1/float64(counts[j]), c)
		}

		perCluster, total := explainedVariance(points, pointGFP, assign, centroids)
		res.GEV.PerCluster = append(res.GEV.PerCluster, perCluster)
		res.GEV.Total = append(res.GEV.Total, total)
		res.Iterations = it + 1
		monitoring.Debugf("kmeans: iteration %d: %d reassigned, GEV %.4f", it+1, changed, total)

		if params.StopOnConvergence && changed == 0 {
			break
		}
	}

	res.Maps = centroids
	res.Assignments = assign
	return res, nil
}

// explainedVariance computes GEV per cluster and overall:
// Σ (GFP_j · corr_j)² / Σ GFP_j² over the points of a cluster (or all points).
func explainedVariance(points [][]float64, gfp []float64, assign []int, maps MapSet) ([]float64, float64) {
	num := make([]float64, maps.K)
	den := make([]float64, maps.K)
	for i, p := range points {
		j := assign[i]
		r := Correlation(p, maps.Map(j))
		num[j] += (gfp[i] * r) * (gfp[i] * r)
		den[j] += gfp[i] * gfp[i]
	}
	per := make([]float64, maps.K)
	var totalNum, totalDen float64
	for j := range per {
		if den[j] > 0 {
			per[j] = num[j] / den[j]
		}
		totalNum += num[j]
		totalDen += den[j]
	}
	if totalDen == 0 {
		return per, 0
	}
	return per, totalNum / totalDen
}

// GEV returns the Global Explained Variance of maps over a full recording
// when every sample is assigned to its label.
func GEV(m Matrix, maps MapSet, seq LabelSequence) (float64, error) {
	if len(seq) != len(m) {
		return 0, newError(ErrShape, "gev", "%d labels for %d samples", len(seq), len(m))
	}
	if m.Electrodes() != maps.Dim {
		return 0, newError(ErrShape, "gev", "%d electrodes, maps have %d", m.Electrodes(), maps.Dim)
	}
	assign := make([]int, len(seq))
	gfp := make([]float64, len(m))
	for i, l := range seq {
		if l.Index() < 0 || l.Index() >= maps.K {
			return 0, newError(ErrShape, "gev", "label %s has no map", l)
		}
		assign[i] = l.Index()
		gfp[i] = GFPOf(m[i])
	}
	_, total := explainedVariance(m, gfp, assign, maps)
	return total, nil
}
