package microstate

import (
	"errors"
	"testing"
)

func TestExtractTopographies(t *testing.T) {
	m := Matrix{{1, 2}, {3, 4}, {5, 6}}
	topos, err := ExtractTopographies(m, []int{2, 0, 2})
	if err != nil {
		t.Fatalf("ExtractTopographies: %v", err)
	}
	if len(topos) != 3 || topos[0][0] != 5 || topos[1][1] != 2 || topos[2][1] != 6 {
		t.Errorf("unexpected topographies %v", topos)
	}

	topos[0][0] = 99
	if m[2][0] != 5 {
		t.Error("expected topographies to be copies of the matrix rows")
	}

	for _, idx := range []int{-1, 3} {
		if _, err := ExtractTopographies(m, []int{idx}); !errors.Is(err, ErrIndex) {
			t.Errorf("index %d: expected ErrIndex, got %v", idx, err)
		}
	}
}
