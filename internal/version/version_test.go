package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	if s := String(); !strings.Contains(s, "1.2.3") || !strings.HasPrefix(s, "microstates ") {
		t.Errorf("unexpected version string %q", s)
	}
}
