package microstate

import "math"

// AlignMaps reorders maps so that map i best matches reference map i.
// The pairing minimises the total cost 1 - |corr| over all pairs, solved
// exactly with the Hungarian method; maps are matched irrespective of
// polarity. It returns the reordered maps and perm, where perm[i] is the
// index in maps now stored at position i.
func AlignMaps(reference, maps MapSet) (MapSet, []int, error) {
	if reference.K != maps.K || reference.Dim != maps.Dim {
		return MapSet{}, nil, newError(ErrShape, "align",
			"reference is %dx%d, maps are %dx%d", reference.K, reference.Dim, maps.K, maps.Dim)
	}
	cost := make([][]float64, reference.K)
	for i := range cost {
		cost[i] = make([]float64, maps.K)
		for j := range cost[i] {
			cost[i][j] = 1 - math.Abs(Correlation(reference.Map(i), maps.Map(j)))
		}
	}
	perm := solveAssignment(cost)
	out := MapSet{K: maps.K, Dim: maps.Dim, Values: make([]float64, 0, len(maps.Values))}
	for _, j := range perm {
		out.Values = append(out.Values, maps.Map(j)...)
	}
	return out, perm, nil
}

// solveAssignment returns the column assigned to each row of a square cost
// matrix such that the summed cost is minimal (Kuhn-Munkres with row and
// column potentials, O(n³)).
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	inf := math.Inf(1)

	// 1-indexed; column 0 is the virtual start of each augmenting path.
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	owner := make([]int, n+1) // owner[col] = row matched to col
	prev := make([]int, n+1)
	slack := make([]float64, n+1)
	seen := make([]bool, n+1)

	for row := 1; row <= n; row++ {
		owner[0] = row
		col := 0
		for j := range slack {
			slack[j] = inf
			seen[j] = false
		}
		for {
			seen[col] = true
			r := owner[col]
			delta := inf
			next := 0
			for j := 1; j <= n; j++ {
				if seen[j] {
					continue
				}
				if cur := cost[r-1][j-1] - u[r] - v[j]; cur < slack[j] {
					slack[j] = cur
					prev[j] = col
				}
				if slack[j] < delta {
					delta = slack[j]
					next = j
				}
			}
			for j := 0; j <= n; j++ {
				if seen[j] {
					u[owner[j]] += delta
					v[j] -= delta
				} else {
					slack[j] -= delta
				}
			}
			col = next
			if owner[col] == 0 {
				break
			}
		}
		for col != 0 {
			owner[col] = owner[prev[col]]
			col = prev[col]
		}
	}

	assign := make([]int, n)
	for j := 1; j <= n; j++ {
		assign[owner[j]-1] = j - 1
	}
	return assign
}
