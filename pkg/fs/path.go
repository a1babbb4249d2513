package fs

import (
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Path is a validated filesystem path: well-formed UTF-8, no NUL bytes,
// normalized to NFC so that two spellings of the same name compare equal.
// The zero value is the empty path.
//
// Path carries no absolute-versus-relative semantics; it is passed to the
// operating system as-is.
type Path struct {
	s string
}

// NewPath validates and normalizes s. Invalid UTF-8 and embedded NUL bytes
// are rejected with InvalidData.
func NewPath(s string) (Path, error) {
	if !utf8.ValidString(s) {
		return Path{}, invalidDataError("path is not valid UTF-8", s)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return Path{}, invalidDataError("path contains NUL byte", s)
	}
	return Path{s: norm.NFC.String(s)}, nil
}

// MustPath is NewPath for compile-time-known literals. It panics on
// invalid input.
func MustPath(s string) Path {
	p, err := NewPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return p.s }

// IsZero reports whether p is the empty path.
func (p Path) IsZero() bool { return p.s == "" }

// Base returns the last component of p, or "" for the empty path.
func (p Path) Base() string {
	if p.s == "" {
		return ""
	}
	return path.Base(p.s)
}

// Components splits p on slashes, dropping empty segments. A leading slash
// is not represented as a component.
func (p Path) Components() []string {
	var out []string
	for _, c := range strings.Split(p.s, "/") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Join appends a single entry name to p. The name must be a valid entry
// name (see validateName); the result is normalized like any other path.
func (p Path) Join(name string) (Path, error) {
	if err := validateName(name); err != nil {
		return Path{}, err
	}
	return Path{s: path.Join(p.s, norm.NFC.String(name))}, nil
}

// validateName checks a single directory-entry name: non-empty, valid
// UTF-8, no NUL, no slash, and not one of the dot entries.
func validateName(name string) error {
	switch {
	case name == "":
		return invalidDataError("entry name is empty", name)
	case name == "." || name == "..":
		return invalidDataError("entry name is a dot entry", name)
	case !utf8.ValidString(name):
		return invalidDataError("entry name is not valid UTF-8", name)
	case strings.IndexByte(name, 0) >= 0:
		return invalidDataError("entry name contains NUL byte", name)
	case strings.IndexByte(name, '/') >= 0:
		return invalidDataError("entry name contains slash", name)
	}
	return nil
}
