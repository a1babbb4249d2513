// Package filetree keeps a metadata tree continually in sync with the
// filesystem. A ContinualTree owns a watcher rooted at one directory,
// coalesces bursts of change events, and rebuilds the tree through
// pkg/fs at a bounded rate, publishing the diff of every rebuild.
package filetree

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgebuild/forgefs/internal/logger"
	"github.com/forgebuild/forgefs/internal/ratelimiter"
	"github.com/forgebuild/forgefs/pkg/fs"
)

const (
	defaultDebounce          = 500 * time.Millisecond
	defaultRebuildsPerSecond = 2.0
	defaultBurst             = 1

	diffBuffer = 16
)

type config struct {
	debounce          time.Duration
	rebuildsPerSecond float64
	burst             int
}

// Option adjusts the timing behavior of a ContinualTree.
type Option func(*config)

// WithDebounce sets the quiet period that must follow a burst of change
// events before a rebuild starts.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithRebuildLimit bounds how often event-driven rebuilds run. Zero
// perSecond removes the bound.
func WithRebuildLimit(perSecond float64, burst int) Option {
	return func(c *config) {
		c.rebuildsPerSecond = perSecond
		c.burst = burst
	}
}

// ContinualTree watches a directory and keeps a metadata tree of it
// fresh. Every event-driven rebuild produces a fresh, independent tree;
// consumers holding an older snapshot from Current are never invalidated.
type ContinualTree[T comparable] struct {
	fsys   *fs.FS
	root   fs.Path
	ignore *fs.IgnoreSet
	work   fs.WorkFunc[T]

	watcher  *fsnotify.Watcher
	limiter  *ratelimiter.RateLimiter
	debounce time.Duration
	diffs    chan Diff

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu      sync.Mutex
	current *fs.MetadataTree[T]
	watched map[string]bool
}

// New starts a continual tree without per-file work.
func New(ctx context.Context, fsys *fs.FS, root fs.Path, ignore *fs.IgnoreSet, opts ...Option) (*ContinualTree[struct{}], error) {
	return NewWithData[struct{}](ctx, fsys, root, ignore, nil, opts...)
}

// NewWithData starts a continual tree whose files are annotated by work,
// as in fs.TreeWithData. The initial build runs synchronously; the
// returned tree is already populated and watching.
func NewWithData[T comparable](ctx context.Context, fsys *fs.FS, root fs.Path, ignore *fs.IgnoreSet, work fs.WorkFunc[T], opts ...Option) (*ContinualTree[T], error) {
	cfg := config{
		debounce:          defaultDebounce,
		rebuildsPerSecond: defaultRebuildsPerSecond,
		burst:             defaultBurst,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting filesystem watcher: %w", err)
	}

	c := &ContinualTree[T]{
		fsys:     fsys,
		root:     root,
		ignore:   ignore,
		work:     work,
		watcher:  watcher,
		limiter:  ratelimiter.New(cfg.rebuildsPerSecond, cfg.burst),
		debounce: cfg.debounce,
		diffs:    make(chan Diff, diffBuffer),
		watched:  make(map[string]bool),
	}

	tree, err := c.build(ctx)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}
	c.mu.Lock()
	c.current = tree
	c.mu.Unlock()
	c.syncWatches(tree)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx)

	logger.Info("continual tree watching %s (%d files)", root, tree.Len())
	return c, nil
}

func (c *ContinualTree[T]) build(ctx context.Context) (*fs.MetadataTree[T], error) {
	dir, err := c.fsys.Open(c.root).Tag("continual tree").AsDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening tree root: %w", err)
	}
	return fs.TreeWithData(ctx, dir, c.ignore, c.work)
}

// Current returns the most recent build. The returned tree is immutable
// and stays valid after later rebuilds replace it.
func (c *ContinualTree[T]) Current() *fs.MetadataTree[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Rebuild runs one build immediately and returns how it differs from the
// previous one. The event loop calls this after change bursts; callers
// can also invoke it directly to force a refresh.
func (c *ContinualTree[T]) Rebuild(ctx context.Context) (Diff, error) {
	next, err := c.build(ctx)
	if err != nil {
		return Diff{}, err
	}

	c.mu.Lock()
	prev := c.current
	c.current = next
	c.mu.Unlock()

	c.syncWatches(next)
	return diffTrees(prev, next), nil
}

// Diffs delivers the non-empty diff of every event-driven rebuild. The
// channel closes when the tree is closed. A consumer that falls behind
// loses diffs rather than stalling the event loop.
func (c *ContinualTree[T]) Diffs() <-chan Diff {
	return c.diffs
}

// Close stops watching and waits for the event loop to exit. The last
// built tree remains available through Current.
func (c *ContinualTree[T]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.watcher.Close()
		c.wg.Wait()
	})
	return err
}

func (c *ContinualTree[T]) run(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.diffs)

	// The timer marks the end of a quiet period after a burst of
	// events; it stays stopped until the first relevant event arrives.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if c.relevant(ev) {
				timer.Reset(c.debounce)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("filesystem watcher: %v", err)
		case <-timer.C:
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			diff, err := c.Rebuild(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("tree rebuild failed, retrying after the next quiet period: %v", err)
				timer.Reset(c.debounce)
				continue
			}
			c.publish(diff)
		case <-ctx.Done():
			return
		}
	}
}

// relevant filters watcher noise: chmod-only events and ignored paths do
// not trigger a rebuild.
func (c *ContinualTree[T]) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel := c.relPath(ev.Name)
	if rel == "" {
		return true
	}
	return !c.ignore.Match(rel)
}

func (c *ContinualTree[T]) relPath(name string) string {
	root := c.root.String()
	if name == root {
		return ""
	}
	return strings.TrimPrefix(name, root+"/")
}

func (c *ContinualTree[T]) publish(diff Diff) {
	if diff.Empty() {
		return
	}
	select {
	case c.diffs <- diff:
	default:
		logger.Warn("diff consumer is behind, dropping a diff with %d changes", diff.Len())
	}
}

// syncWatches aligns the watcher with the directories of the latest
// build. Watches of deleted directories are already gone at the platform
// level; the bookkeeping just forgets them.
func (c *ContinualTree[T]) syncWatches(tree *fs.MetadataTree[T]) {
	desired := map[string]bool{c.root.String(): true}
	_ = tree.WalkDirs(func(rel string, _ int) error {
		desired[c.root.String()+"/"+rel] = true
		return nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range desired {
		if c.watched[path] {
			continue
		}
		if err := c.watcher.Add(path); err != nil {
			logger.Warn("watching %s: %v", path, err)
			continue
		}
		c.watched[path] = true
	}
	for path := range c.watched {
		if desired[path] {
			continue
		}
		if err := c.watcher.Remove(path); err != nil {
			logger.Debug("unwatching %s: %v", path, err)
		}
		delete(c.watched, path)
	}
}
