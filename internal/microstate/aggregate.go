package microstate

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Defaults for the group-level clustering.
const (
	DefaultGroupRestarts      = 10
	DefaultGroupMaxIterations = 300
	DefaultGroupTolerance     = 1e-4
)

// AggregateParams configures ClusterOfClusters.
type AggregateParams struct {
	K             int
	Restarts      int
	MaxIterations int
	// Tolerance is relative to the mean per-electrode variance of the pooled
	// maps; a restart stops once the summed squared centroid shift drops
	// below it.
	Tolerance float64
	Seed      uint64
}

// DefaultAggregateParams returns the group clustering defaults.
func DefaultAggregateParams() AggregateParams {
	return AggregateParams{
		K:             DefaultClusters,
		Restarts:      DefaultGroupRestarts,
		MaxIterations: DefaultGroupMaxIterations,
		Tolerance:     DefaultGroupTolerance,
		Seed:          DefaultSeed,
	}
}

// ClusterOfClusters pools the maps of every set and clusters them with
// Euclidean k-means (k-means++ seeding). The restart with the lowest
// inertia wins. Unlike per-recording clustering this stage measures
// distance, not correlation, so map amplitude matters here.
func ClusterOfClusters(sets []MapSet, params AggregateParams) (MapSet, error) {
	const op = "aggregate"
	if err := checkK(op, params.K); err != nil {
		return MapSet{}, err
	}
	if len(sets) == 0 {
		return MapSet{}, newError(ErrDegenerateInput, op, "no map sets")
	}
	dim := sets[0].Dim
	var points [][]float64
	for i, s := range sets {
		if s.Dim != dim {
			return MapSet{}, newError(ErrShape, op, "map set %d has %d electrodes, want %d", i, s.Dim, dim)
		}
		for j := 0; j < s.K; j++ {
			points = append(points, s.Map(j))
		}
	}
	if len(points) < params.K {
		return MapSet{}, newError(ErrDegenerateInput, op, "%d pooled maps for %d clusters", len(points), params.K)
	}
	if params.Restarts < 1 {
		params.Restarts = DefaultGroupRestarts
	}
	if params.MaxIterations < 1 {
		params.MaxIterations = DefaultGroupMaxIterations
	}
	if params.Tolerance < 0 {
		params.Tolerance = DefaultGroupTolerance
	}

	tol := params.Tolerance * meanColumnVariance(points, dim)
	rng := rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15))

	var best MapSet
	bestInertia := math.Inf(1)
	for r := 0; r < params.Restarts; r++ {
		centroids := kmeansPlusPlus(points, params.K, dim, rng)
		inertia := lloyd(points, centroids, params.MaxIterations, tol)
		if inertia < bestInertia {
			best, bestInertia = centroids, inertia
		}
	}
	return best, nil
}

func meanColumnVariance(points [][]float64, dim int) float64 {
	col := make([]float64, len(points))
	var sum float64
	for d := 0; d < dim; d++ {
		for i, p := range points {
			col[i] = p[d]
		}
		_, v := stat.PopMeanVariance(col, nil)
		sum += v
	}
	return sum / float64(dim)
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// kmeansPlusPlus picks the first centroid uniformly and each following one
// with probability proportional to its squared distance from the nearest
// centroid already chosen.
func kmeansPlusPlus(points [][]float64, k, dim int, rng *rand.Rand) MapSet {
	ms := MapSet{K: k, Dim: dim, Values: make([]float64, 0, k*dim)}
	ms.Values = append(ms.Values, points[rng.IntN(len(points))]...)
	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = sqDist(p, ms.Map(0))
	}
	for c := 1; c < k; c++ {
		total := floats.Sum(dist)
		pick := 0
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				if d == 0 {
					continue
				}
				// Rounding can leave target just above zero at the end;
				// the last positive weight then wins.
				pick = i
				if target -= d; target < 0 {
					break
				}
			}
		} else {
			pick = rng.IntN(len(points))
		}
		ms.Values = append(ms.Values, points[pick]...)
		for i, p := range points {
			if d := sqDist(p, ms.Map(c)); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return ms
}

// lloyd refines centroids in place and returns the final inertia. Empty
// clusters keep their previous centroid.
func lloyd(points [][]float64, centroids MapSet, maxIter int, tol float64) float64 {
	k, dim := centroids.K, centroids.Dim
	assign := make([]int, len(points))
	sums := make([]float64, k*dim)
	counts := make([]int, k)
	for it := 0; it < maxIter; it++ {
		nearest(points, centroids, assign)
		for i := range sums {
			sums[i] = 0
		}
		for j := range counts {
			counts[j] = 0
		}
		for i, p := range points {
			floats.Add(sums[assign[i]*dim:(assign[i]+1)*dim], p)
			counts[assign[i]]++
		}
		shift := 0.0
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				continue
			}
			next := sums[j*dim : (j+1)*dim]
			floats.Scale(1/float64(counts[j]), next)
			shift += sqDist(next, centroids.Map(j))
			copy(centroids.Map(j), next)
		}
		if shift <= tol {
			break
		}
	}
	return nearest(points, centroids, assign)
}

// nearest fills assign with the closest centroid per point and returns the
// summed squared distance.
func nearest(points [][]float64, centroids MapSet, assign []int) float64 {
	var inertia float64
	for i, p := range points {
		best, bestD := 0, math.Inf(1)
		for j := 0; j < centroids.K; j++ {
			if d := sqDist(p, centroids.Map(j)); d < bestD {
				best, bestD = j, d
			}
		}
		assign[i] = best
		inertia += bestD
	}
	return inertia
}
