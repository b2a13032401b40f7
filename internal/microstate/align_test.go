package microstate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/testutil"
)

func TestSolveAssignment(t *testing.T) {
	tests := []struct {
		name string
		cost [][]float64
		want []int
	}{
		{"identity", [][]float64{{0, 1}, {1, 0}}, []int{0, 1}},
		{"swap", [][]float64{{1, 0}, {0, 1}}, []int{1, 0}},
		{"3x3", [][]float64{{4, 1, 3}, {2, 0, 5}, {3, 2, 2}}, []int{1, 0, 2}},
		{"single", [][]float64{{7}}, []int{0}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, solveAssignment(tt.cost)); diff != "" {
				t.Errorf("assignment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAlignMaps_RecoversPermutation(t *testing.T) {
	ref := fourMaps(t)
	// Reverse the order and invert one map; polarity is ignored.
	rows := ref.Rows()
	shuffled := [][]float64{rows[3], rows[2], rows[1], rows[0]}
	for i := range shuffled[1] {
		shuffled[1][i] = -shuffled[1][i]
	}
	maps, err := NewMapSet(shuffled)
	if err != nil {
		t.Fatal(err)
	}

	aligned, perm, err := AlignMaps(ref, maps)
	if err != nil {
		t.Fatalf("AlignMaps: %v", err)
	}
	if diff := cmp.Diff([]int{3, 2, 1, 0}, perm); diff != "" {
		t.Errorf("perm mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertFloatsNear(t, aligned.Map(0), ref.Map(0), 0)
	testutil.AssertFloatsNear(t, aligned.Map(3), ref.Map(3), 0)
	for i, v := range aligned.Map(2) {
		if v != -ref.Map(2)[i] {
			t.Fatalf("expected inverted map at position 2, got %v", aligned.Map(2))
		}
	}
}

func TestAlignMaps_ShapeMismatch(t *testing.T) {
	a := fourMaps(t)
	b, _ := NewMapSet([][]float64{{1, 2}, {2, 1}})
	if _, _, err := AlignMaps(a, b); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}
