package microstate

import (
	"errors"
	"strings"
	"testing"
)

func TestMapSet(t *testing.T) {
	ms, err := NewMapSet([][]float64{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("NewMapSet: %v", err)
	}
	if ms.K != 2 || ms.Dim != 3 || len(ms.Values) != 6 {
		t.Fatalf("unexpected shape %v", ms)
	}
	if got := ms.Map(1); got[0] != 4 || got[2] != 6 {
		t.Errorf("Map(1) = %v", got)
	}

	rows := ms.Rows()
	rows[0][0] = 100
	clone := ms.Clone()
	clone.Values[1] = 200
	if ms.Values[0] != 1 || ms.Values[1] != 2 {
		t.Error("Rows and Clone must not alias the arena")
	}
	if !strings.Contains(ms.String(), "K: 2") {
		t.Errorf("unexpected String() %q", ms.String())
	}

	if _, err := NewMapSet([][]float64{{1, 2}, {1}}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
	if _, err := NewMapSet(nil); !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("expected ErrDegenerateInput, got %v", err)
	}
}

func TestNewMatrix(t *testing.T) {
	m, err := NewMatrix([][]float64{{1, 2}, {3, 4}, {5, 6}})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	if m.Samples() != 3 || m.Electrodes() != 2 {
		t.Errorf("shape = %dx%d, want 3x2", m.Samples(), m.Electrodes())
	}
	if _, err := NewMatrix([][]float64{{}}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for empty row, got %v", err)
	}
	if Matrix(nil).Electrodes() != 0 {
		t.Error("expected 0 electrodes for empty matrix")
	}
}

func TestErrorMessage(t *testing.T) {
	err := newError(ErrIndex, "topography", "index %d", 7)
	if got := err.Error(); got != "topography: index out of range: index 7" {
		t.Errorf("unexpected message %q", got)
	}
	bare := &Error{Kind: ErrShape, Op: "label"}
	if got := bare.Error(); got != "label: shape mismatch" {
		t.Errorf("unexpected message %q", got)
	}
}
