package microstate

import "fmt"

// Matrix holds one recording as samples × electrodes. Row s is the
// topography at sample s.
type Matrix [][]float64

// NewMatrix validates that every row has the same electrode count and
// returns the rows as a Matrix. The rows are not copied.
func NewMatrix(rows [][]float64) (Matrix, error) {
	m := Matrix(rows)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Samples returns the number of samples (rows).
func (m Matrix) Samples() int { return len(m) }

// Electrodes returns the electrode count, taken from the first row.
func (m Matrix) Electrodes() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Validate checks that the matrix is rectangular and has at least one
// electrode per sample.
func (m Matrix) Validate() error {
	if len(m) == 0 {
		return nil
	}
	e := len(m[0])
	if e == 0 {
		return newError(ErrShape, "matrix", "sample 0 has no electrodes")
	}
	for s, row := range m {
		if len(row) != e {
			return newError(ErrShape, "matrix", "sample %d has %d electrodes, want %d", s, len(row), e)
		}
	}
	return nil
}

// MapSet is a flat arena of K maps of Dim electrodes each. Map i occupies
// Values[i*Dim : (i+1)*Dim].
type MapSet struct {
	K      int
	Dim    int
	Values []float64
}

// NewMapSet copies rows into a MapSet. All rows must share one length.
func NewMapSet(rows [][]float64) (MapSet, error) {
	if len(rows) == 0 {
		return MapSet{}, newError(ErrDegenerateInput, "mapset", "no maps")
	}
	dim := len(rows[0])
	if dim == 0 {
		return MapSet{}, newError(ErrShape, "mapset", "map 0 is empty")
	}
	ms := MapSet{K: len(rows), Dim: dim, Values: make([]float64, 0, len(rows)*dim)}
	for i, r := range rows {
		if len(r) != dim {
			return MapSet{}, newError(ErrShape, "mapset", "map %d has %d values, want %d", i, len(r), dim)
		}
		ms.Values = append(ms.Values, r...)
	}
	return ms, nil
}

// Map returns map i as a view into the arena.
func (ms MapSet) Map(i int) []float64 {
	return ms.Values[i*ms.Dim : (i+1)*ms.Dim]
}

// Rows returns a copy of the maps as one slice per map.
func (ms MapSet) Rows() [][]float64 {
	rows := make([][]float64, ms.K)
	for i := range rows {
		rows[i] = append([]float64(nil), ms.Map(i)...)
	}
	return rows
}

// Clone returns a deep copy.
func (ms MapSet) Clone() MapSet {
	return MapSet{K: ms.K, Dim: ms.Dim, Values: append([]float64(nil), ms.Values...)}
}

// Label is a microstate letter: 'A' for map 0, 'B' for map 1, and so on.
type Label byte

// MaxLabels is the size of the label alphabet.
const MaxLabels = 26

// LabelFor returns the letter for map index i.
func LabelFor(i int) Label {
	return Label('A' + i)
}

// Index returns the map index of the label.
func (l Label) Index() int { return int(l - 'A') }

func (l Label) String() string { return string(rune(l)) }

// LabelSequence assigns one label to every sample of a recording.
type LabelSequence []Label

// ParseLabels builds a LabelSequence from a string such as "AABBA".
func ParseLabels(s string) (LabelSequence, error) {
	seq := make(LabelSequence, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'A' || c >= 'A'+MaxLabels {
			return nil, newError(ErrFormat, "labels", "invalid label %q at position %d", c, i)
		}
		seq[i] = Label(c)
	}
	return seq, nil
}

func (seq LabelSequence) String() string {
	b := make([]byte, len(seq))
	for i, l := range seq {
		b[i] = byte(l)
	}
	return string(b)
}

func checkK(op string, k int) error {
	if k < 1 || k > MaxLabels {
		return newError(ErrDegenerateInput, op, "cluster count %d outside [1, %d]", k, MaxLabels)
	}
	return nil
}

func (ms MapSet) String() string {
	return fmt.Sprintf("MapSet{K: %d, Dim: %d}", ms.K, ms.Dim)
}
