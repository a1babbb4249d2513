package fs

import "testing"

func TestNewIgnoreSetRejectsMalformedPattern(t *testing.T) {
	if _, err := NewIgnoreSet("[unclosed"); !HasCode(err, ErrInvalidData) {
		t.Errorf("error = %v, want InvalidData", err)
	}
}

func TestIgnoreSetMatch(t *testing.T) {
	set, err := NewIgnoreSet("*.log", "build/**", "docs/*.md")
	if err != nil {
		t.Fatalf("NewIgnoreSet: %v", err)
	}

	tests := []struct {
		rel  string
		want bool
	}{
		// Bare patterns match the entry name at any depth.
		{"b.log", true},
		{"sub/deep/c.log", true},
		{"a.txt", false},
		{"logfile", false},

		// Slash patterns match the full relative path.
		{"build/out.o", true},
		{"build/nested/out.o", true},
		{"builder/out.o", false},
		{"docs/readme.md", true},
		{"docs/deep/readme.md", false},
	}
	for _, tt := range tests {
		if got := set.Match(tt.rel); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestIgnoreSetNilMatchesNothing(t *testing.T) {
	var set *IgnoreSet
	if set.Match("anything") {
		t.Error("nil set matched")
	}
	if set.Patterns() != nil {
		t.Error("nil set has patterns")
	}
}
