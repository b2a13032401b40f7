package microstate

// Labeler assigns every sample of a recording to its best matching map.
// Labels follow map order: map 0 is 'A'. The zero value uses signed
// correlation.
type Labeler struct {
	Polarity Polarity
}

// Label returns one label per sample. A flat sample correlates 0 with
// every map and so takes label 'A'.
func (l Labeler) Label(m Matrix, maps MapSet) (LabelSequence, error) {
	if err := checkK("label", maps.K); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Samples() > 0 && m.Electrodes() != maps.Dim {
		return nil, newError(ErrShape, "label", "%d electrodes, maps have %d", m.Electrodes(), maps.Dim)
	}
	seq := make(LabelSequence, len(m))
	for s, row := range m {
		j, _ := bestMap(row, maps, l.Polarity)
		seq[s] = LabelFor(j)
	}
	return seq, nil
}
