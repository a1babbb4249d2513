package fs

import (
	"reflect"
	"testing"
)

func TestNewPathNormalizesToNFC(t *testing.T) {
	// "café" spelled with a combining acute accent.
	decomposed, err := NewPath("café")
	if err != nil {
		t.Fatalf("NewPath(decomposed): %v", err)
	}
	composed, err := NewPath("café")
	if err != nil {
		t.Fatalf("NewPath(composed): %v", err)
	}
	if decomposed.String() != composed.String() {
		t.Errorf("normalized paths differ: %q vs %q", decomposed.String(), composed.String())
	}
}

func TestNewPathRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"nul byte", "a\x00b"},
		{"invalid utf8", "\xff\xfe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPath(tt.input)
			if !HasCode(err, ErrInvalidData) {
				t.Errorf("NewPath(%q) error = %v, want InvalidData", tt.input, err)
			}
		})
	}
}

func TestMustPathPanicsOnInvalidInput(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustPath did not panic on NUL byte")
		}
	}()
	MustPath("a\x00b")
}

func TestPathComponents(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"/", nil},
		{"a", []string{"a"}},
		{"/a/b/c", []string{"a", "b", "c"}},
		{"a//b/", []string{"a", "b"}},
	}
	for _, tt := range tests {
		p := MustPath(tt.input)
		if got := p.Components(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Components(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPathJoin(t *testing.T) {
	base := MustPath("/tmp/work")

	joined, err := base.Join("out.bin")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.String() != "/tmp/work/out.bin" {
		t.Errorf("Join = %q", joined.String())
	}

	bad := []string{"", ".", "..", "a/b", "a\x00b"}
	for _, name := range bad {
		if _, err := base.Join(name); !HasCode(err, ErrInvalidData) {
			t.Errorf("Join(%q) error = %v, want InvalidData", name, err)
		}
	}
}

func TestPathBase(t *testing.T) {
	if got := MustPath("/a/b").Base(); got != "b" {
		t.Errorf("Base(/a/b) = %q", got)
	}
	if got := (Path{}).Base(); got != "" {
		t.Errorf("Base(zero) = %q", got)
	}
	if !(Path{}).IsZero() {
		t.Error("zero path IsZero() = false")
	}
}
