package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	results := filepath.Join(tmpDir, "results")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{results, outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	link := filepath.Join(results, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"file in base", filepath.Join(results, "s01_microstates.csv"), false},
		{"new nested file", filepath.Join(results, "General", "general_microstates.csv"), false},
		{"base itself", results, false},
		{"parent traversal", filepath.Join(results, "..", "outside", "x.csv"), true},
		{"sibling", filepath.Join(outside, "x.csv"), true},
		{"symlink escape", filepath.Join(link, "x.csv"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, results)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	base := t.TempDir()
	p, err := OutputPath(base, "../../etc/passwd", "_microstates.csv")
	if err != nil {
		t.Fatalf("OutputPath failed: %v", err)
	}
	if filepath.Dir(p) != base {
		t.Errorf("expected %s inside %s", p, base)
	}
	if filepath.Base(p) != "etc_passwd_microstates.csv" {
		t.Errorf("unexpected file name %s", filepath.Base(p))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                "unknown",
		"S01 eyes closed": "S01_eyes_closed",
		"..":              "unknown",
		"a//b\\c":         "a_b_c",
		"rec-01.set":      "rec-01.set",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	if got := SanitizeFilename(string(long)); len(got) != 128 {
		t.Errorf("expected 128 bytes, got %d", len(got))
	}
}
