package filetree

import (
	"sort"

	"github.com/forgebuild/forgefs/pkg/fs"
)

// Diff describes how one build of the tree differs from the previous
// one. Paths are slash-separated, relative to the watched root, in
// lexicographic order.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Len returns the total number of changed paths.
func (d Diff) Len() int {
	return len(d.Added) + len(d.Removed) + len(d.Changed)
}

// diffTrees compares two builds. A nil prev marks everything in next as
// added, which is how the very first build looks to a consumer that
// asked for a baseline.
func diffTrees[T comparable](prev, next *fs.MetadataTree[T]) Diff {
	var d Diff

	before := make(map[string]fs.Metadata[T])
	if prev != nil {
		_ = prev.Walk(func(rel string, md fs.Metadata[T]) error {
			before[rel] = md
			return nil
		})
	}

	_ = next.Walk(func(rel string, md fs.Metadata[T]) error {
		old, ok := before[rel]
		if !ok {
			d.Added = append(d.Added, rel)
			return nil
		}
		delete(before, rel)
		if !sameFile(old.Stat, md.Stat) || old.Data != md.Data {
			d.Changed = append(d.Changed, rel)
		}
		return nil
	})

	for rel := range before {
		d.Removed = append(d.Removed, rel)
	}
	sort.Strings(d.Removed)
	return d
}

// sameFile reports whether two stat snapshots describe an unchanged
// file. Change time is deliberately left out: renames and attribute
// writes bump it without touching the content a build consumes.
func sameFile(a, b fs.FileStat) bool {
	return a.Size == b.Size &&
		a.Inode == b.Inode &&
		a.Mode == b.Mode &&
		a.Kind == b.Kind &&
		a.Mtime.Equal(b.Mtime)
}
