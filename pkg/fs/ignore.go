package fs

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreSet is a glob-pattern collection excluding paths from a tree walk.
//
// Patterns containing a slash match against the full slash-joined path
// relative to the walk root ("build/**/cache" style); bare patterns match
// against the entry name alone, so "*.log" excludes log files at any
// depth. A nil IgnoreSet matches nothing.
type IgnoreSet struct {
	patterns []string
}

// NewIgnoreSet validates the patterns and builds a set. A malformed
// pattern fails with InvalidData.
func NewIgnoreSet(patterns ...string) (*IgnoreSet, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, invalidDataError("invalid ignore pattern", p)
		}
	}
	return &IgnoreSet{patterns: append([]string(nil), patterns...)}, nil
}

// Match reports whether the slash-separated relative path is excluded.
func (s *IgnoreSet) Match(rel string) bool {
	if s == nil {
		return false
	}
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range s.patterns {
		if strings.ContainsRune(p, '/') {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		} else if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the patterns the set was built from.
func (s *IgnoreSet) Patterns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.patterns...)
}
