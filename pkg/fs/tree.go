package fs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/forgebuild/forgefs/pkg/trie"
)

// Metadata is the leaf value of a metadata tree: the file's stat snapshot
// plus whatever the per-file work function computed.
type Metadata[T any] struct {
	Stat FileStat
	Data T
}

// WorkFunc computes a per-file payload during a tree walk. It runs on a
// worker goroutine with a reader over the file's contents; the same rules
// as ReadWith apply.
type WorkFunc[T any] func(FileStat, *BlockReader) (T, error)

// MetadataTree is the result of one walk: an ordered trie from relative
// path components to per-file metadata, plus the ignore set the walk was
// filtered with. Trees are immutable once built; a fresh walk produces a
// fresh, independent tree.
type MetadataTree[T any] struct {
	entries *trie.Trie[Metadata[T]]
	ignore  *IgnoreSet
}

// Len returns the number of files in the tree.
func (t *MetadataTree[T]) Len() int {
	return t.entries.Len()
}

// Get returns the metadata recorded for the slash-separated relative path.
func (t *MetadataTree[T]) Get(rel string) (Metadata[T], bool) {
	return t.entries.Get(splitRel(rel))
}

// LeafCount returns the number of files at or below rel, and whether rel
// exists in the tree at all. The empty path addresses the whole tree.
func (t *MetadataTree[T]) LeafCount(rel string) (int, bool) {
	return t.entries.LeafCount(splitRel(rel))
}

// Walk visits every file in lexicographic path order.
func (t *MetadataTree[T]) Walk(fn func(rel string, md Metadata[T]) error) error {
	return t.entries.Walk(func(path []string, md Metadata[T]) error {
		return fn(strings.Join(path, "/"), md)
	})
}

// WalkDirs visits every directory observed during the walk, in
// lexicographic path order, with its recursive file count.
func (t *MetadataTree[T]) WalkDirs(fn func(rel string, files int) error) error {
	return t.entries.WalkEdges(func(path []string, leafCount int) error {
		return fn(strings.Join(path, "/"), leafCount)
	})
}

// Ignored reports whether the build's ignore set excludes rel. Useful for
// membership queries after the fact: a path absent from the tree is either
// ignored or genuinely missing.
func (t *MetadataTree[T]) Ignored(rel string) bool {
	return t.ignore.Match(rel)
}

func splitRel(rel string) []string {
	if rel == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(rel, "/") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Tree builds a metadata tree of the subtree under dir, without per-file
// work. It takes ownership of dir and closes it, even on failure.
func Tree(ctx context.Context, dir *DirectoryHandle, ignore *IgnoreSet) (*MetadataTree[struct{}], error) {
	return TreeWithData[struct{}](ctx, dir, ignore, nil)
}

// TreeWithData builds a metadata tree of the subtree under dir, running
// work over every file's contents. It takes ownership of dir and closes
// it, even on failure.
//
// Entries are filtered against ignore before any descent; symlinks are
// skipped entirely. Siblings are processed concurrently with no ordering
// guarantee, but a directory handle is closed only after every task below
// it has finished. The first error cancels the rest of the walk and is the
// one returned; no partial tree is ever produced.
func TreeWithData[T any](ctx context.Context, dir *DirectoryHandle, ignore *IgnoreSet, work WorkFunc[T]) (*MetadataTree[T], error) {
	fsys := dir.state.fs
	start := time.Now()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &walker[T]{ignore: ignore, work: work, cancel: cancel}
	root := w.walkDir(wctx, dir, nil)
	if w.err != nil {
		fsys.walkMetrics.RecordWalk(time.Since(start), 0, w.err)
		return nil, w.err
	}

	t := &MetadataTree[T]{entries: root, ignore: ignore}
	fsys.walkMetrics.RecordWalk(time.Since(start), t.Len(), nil)
	return t, nil
}

// walker carries the per-build state shared by all walk tasks: the filter,
// the work function, and first-error-wins failure tracking. The cancel
// function tears down the rest of the build as soon as one task fails.
type walker[T any] struct {
	ignore *IgnoreSet
	work   WorkFunc[T]
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (w *walker[T]) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
		w.cancel()
	}
	w.mu.Unlock()
}

// walkDir lists dir, fans out one goroutine per surviving entry, waits for
// all of them, and only then closes dir. The returned trie holds this
// subtree's results; it is meaningless if the walker recorded an error.
func (w *walker[T]) walkDir(ctx context.Context, dir *DirectoryHandle, prefix []string) *trie.Trie[Metadata[T]] {
	tr := trie.New[Metadata[T]]()

	entries, err := dir.List(ctx)
	if err != nil {
		w.fail(err)
		if cerr := dir.Close(); cerr != nil {
			w.fail(cerr)
		}
		return tr
	}

	var wg sync.WaitGroup
	var mu sync.Mutex // guards tr
	for _, e := range entries {
		if e.Kind == KindSymlink {
			continue
		}
		comps := childComponents(prefix, e.Name)
		rel := strings.Join(comps, "/")
		if w.ignore.Match(rel) {
			continue
		}

		wg.Add(1)
		switch e.Kind {
		case KindFile:
			go func(name, rel string) {
				defer wg.Done()
				md, err := w.processFile(ctx, dir, name, rel)
				if err != nil {
					w.fail(err)
					return
				}
				mu.Lock()
				tr.Insert([]string{name}, md)
				mu.Unlock()
			}(e.Name, rel)
		case KindDirectory:
			go func(name, rel string) {
				defer wg.Done()
				child, err := dir.OpenAt(name).Tag(rel).AsDirectory(ctx)
				if err != nil {
					w.fail(err)
					return
				}
				sub := w.walkDir(ctx, child, splitRel(rel))
				mu.Lock()
				tr.Graft([]string{name}, sub)
				mu.Unlock()
			}(e.Name, rel)
		}
	}
	wg.Wait()

	if err := dir.Close(); err != nil {
		w.fail(err)
	}
	return tr
}

func (w *walker[T]) processFile(ctx context.Context, dir *DirectoryHandle, name, rel string) (Metadata[T], error) {
	h, stat, err := dir.OpenAt(name).Tag(rel).AsFile(ctx)
	if err != nil {
		return Metadata[T]{}, err
	}
	md := Metadata[T]{Stat: stat}
	if w.work != nil {
		data, err := ReadWith(ctx, h, func(r *BlockReader) (T, error) {
			return w.work(stat, r)
		})
		if err != nil {
			_ = h.Close()
			return Metadata[T]{}, err
		}
		md.Data = data
	}
	if err := h.Close(); err != nil {
		return Metadata[T]{}, err
	}
	return md, nil
}

// childComponents extends prefix with one more name into a fresh slice, so
// concurrent siblings never share backing arrays.
func childComponents(prefix []string, name string) []string {
	out := make([]string, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = name
	return out
}
