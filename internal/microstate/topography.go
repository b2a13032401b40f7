package microstate

// ExtractTopographies returns the electrode vector at each index, in the
// order given. The vectors are copies, so later changes to the matrix do
// not leak into clustering input.
func ExtractTopographies(m Matrix, indices []int) ([][]float64, error) {
	out := make([][]float64, len(indices))
	for i, s := range indices {
		if s < 0 || s >= len(m) {
			return nil, newError(ErrIndex, "topography", "index %d outside [0, %d)", s, len(m))
		}
		out[i] = append([]float64(nil), m[s]...)
	}
	return out, nil
}
