package filetree

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/forgebuild/forgefs/pkg/fs"
)

func newTestFS(t *testing.T) *fs.FS {
	t.Helper()
	f := fs.New(2, 32)
	t.Cleanup(f.Close)
	return f
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRebuildReportsDiff(t *testing.T) {
	f := newTestFS(t)
	ctx := context.Background()
	root := t.TempDir()
	write(t, root, "a.txt", "alpha")
	write(t, root, "sub/b.txt", "bravo")

	ct, err := New(ctx, f, fs.MustPath(root), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	if got := ct.Current().Len(); got != 2 {
		t.Fatalf("initial tree has %d files, want 2", got)
	}

	write(t, root, "c.txt", "charlie")
	write(t, root, "a.txt", "alpha, but longer now")
	if err := os.Remove(filepath.Join(root, "sub", "b.txt")); err != nil {
		t.Fatal(err)
	}

	diff, err := ct.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	want := Diff{
		Added:   []string{"c.txt"},
		Removed: []string{"sub/b.txt"},
		Changed: []string{"a.txt"},
	}
	if !reflect.DeepEqual(diff, want) {
		t.Errorf("diff = %+v, want %+v", diff, want)
	}
}

func TestRebuildWithoutChangesIsEmpty(t *testing.T) {
	f := newTestFS(t)
	ctx := context.Background()
	root := t.TempDir()
	write(t, root, "a.txt", "alpha")

	ct, err := New(ctx, f, fs.MustPath(root), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	diff, err := ct.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !diff.Empty() {
		t.Errorf("diff of unchanged tree = %+v, want empty", diff)
	}
}

func TestCurrentSnapshotsAreIndependent(t *testing.T) {
	f := newTestFS(t)
	ctx := context.Background()
	root := t.TempDir()
	write(t, root, "a.txt", "alpha")

	ct, err := New(ctx, f, fs.MustPath(root), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	first := ct.Current()
	write(t, root, "b.txt", "bravo")
	if _, err := ct.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	second := ct.Current()

	if first == second {
		t.Fatal("rebuild did not produce a fresh tree")
	}
	if got := first.Len(); got != 1 {
		t.Errorf("old snapshot has %d files after rebuild, want 1", got)
	}
	if got := second.Len(); got != 2 {
		t.Errorf("new snapshot has %d files, want 2", got)
	}
}

func TestIgnoredChangesProduceNoDiff(t *testing.T) {
	f := newTestFS(t)
	ctx := context.Background()
	root := t.TempDir()
	write(t, root, "a.txt", "alpha")

	ign, err := fs.NewIgnoreSet("*.log")
	if err != nil {
		t.Fatalf("NewIgnoreSet: %v", err)
	}
	ct, err := New(ctx, f, fs.MustPath(root), ign)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	write(t, root, "noise.log", "ignored")
	diff, err := ct.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !diff.Empty() {
		t.Errorf("ignored file produced diff %+v", diff)
	}
}

func TestNewWithDataAnnotates(t *testing.T) {
	f := newTestFS(t)
	ctx := context.Background()
	root := t.TempDir()
	write(t, root, "a.txt", "alpha")

	sizeOf := func(_ fs.FileStat, r *fs.BlockReader) (int64, error) {
		var n int64
		for {
			block, err := r.Next()
			if err == io.EOF {
				return n, nil
			}
			if err != nil {
				return 0, err
			}
			n += int64(len(block))
		}
	}
	ct, err := NewWithData(ctx, f, fs.MustPath(root), nil, sizeOf)
	if err != nil {
		t.Fatalf("NewWithData: %v", err)
	}
	defer ct.Close()

	md, ok := ct.Current().Get("a.txt")
	if !ok {
		t.Fatal("a.txt missing from tree")
	}
	if md.Data != int64(len("alpha")) {
		t.Errorf("computed size %d, want %d", md.Data, len("alpha"))
	}
}

func TestWatcherTriggersRebuild(t *testing.T) {
	f := newTestFS(t)
	ctx := context.Background()
	root := t.TempDir()
	write(t, root, "seed.txt", "present from the start")

	ct, err := New(ctx, f, fs.MustPath(root), nil,
		WithDebounce(50*time.Millisecond), WithRebuildLimit(0, 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	write(t, root, "hot.txt", "fresh")
	waitForAdded(t, ct.Diffs(), "hot.txt")

	// A directory created after the initial build is picked up from the
	// root watch; the rebuild then starts watching it too.
	write(t, root, "newdir/inner.txt", "nested")
	waitForAdded(t, ct.Diffs(), "newdir/inner.txt")
}

func waitForAdded(t *testing.T, diffs <-chan Diff, rel string) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case diff, ok := <-diffs:
			if !ok {
				t.Fatalf("diff channel closed before %s appeared", rel)
			}
			for _, p := range diff.Added {
				if p == rel {
					return
				}
			}
		case <-deadline:
			t.Fatalf("no diff adding %s within 10s", rel)
		}
	}
}

func TestCloseStopsDiffStream(t *testing.T) {
	f := newTestFS(t)
	root := t.TempDir()
	write(t, root, "a.txt", "alpha")

	ct, err := New(context.Background(), f, fs.MustPath(root), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ct.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ct.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case _, ok := <-ct.Diffs():
		if ok {
			t.Error("received a diff after close")
		}
	case <-time.After(5 * time.Second):
		t.Error("diff channel still open after close")
	}

	if ct.Current() == nil {
		t.Error("last tree not available after close")
	}
}
