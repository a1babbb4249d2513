package fs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgebuild/forgefs/internal/logger"
	"github.com/forgebuild/forgefs/pkg/metrics"
)

// Bounds applied when the caller does not pick an explicit handle cap.
const (
	minDefaultHandles = 64
	maxDefaultHandles = 65536
)

// FS is the resource-limited handle factory. It gates every handle behind
// a counting permit so the process can never exhaust its descriptor table,
// runs all platform syscalls on a dedicated worker pool, and drains
// abandoned handles through a deferred close worker.
//
// All methods are safe for concurrent use. After Close, any further
// operation panics; callers own the ordering between their last handle
// and the factory shutdown.
type FS struct {
	workers     *workerPool
	permits     chan struct{}
	drops       *dropQueue
	metrics     metrics.FSMetrics
	walkMetrics metrics.WalkMetrics

	shutdown  chan struct{}
	closeWG   sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures an FS beyond the two required limits.
type Option func(*FS)

// WithMetrics replaces the default handle-factory metrics recorder.
func WithMetrics(m metrics.FSMetrics) Option {
	return func(f *FS) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithWalkMetrics replaces the default tree-walk metrics recorder.
func WithWalkMetrics(m metrics.WalkMetrics) Option {
	return func(f *FS) {
		if m != nil {
			f.walkMetrics = m
		}
	}
}

// New builds a factory with the given worker count and open-handle cap.
// workers <= 0 selects one worker per CPU; maxHandles <= 0 selects half of
// the process descriptor limit, clamped to a sane range.
func New(workers, maxHandles int, opts ...Option) *FS {
	if maxHandles <= 0 {
		maxHandles = defaultMaxHandles()
	}
	f := &FS{
		workers:  newWorkerPool(workers),
		permits:  make(chan struct{}, maxHandles),
		drops:    newDropQueue(),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	// Defaults are created only when no option supplied a recorder, so a
	// Prometheus-backed recorder passed in is the single registration.
	if f.metrics == nil {
		f.metrics = metrics.NewFSMetrics()
	}
	if f.walkMetrics == nil {
		f.walkMetrics = metrics.NewWalkMetrics()
	}
	f.closeWG.Add(1)
	go f.closeWorker()
	logger.Debug("filesystem layer up with %d max handles", maxHandles)
	return f
}

func defaultMaxHandles() int {
	limit := sysFileHandleMax() / 2
	if limit < minDefaultHandles {
		return minDefaultHandles
	}
	if limit > maxDefaultHandles {
		return maxDefaultHandles
	}
	return int(limit)
}

// Open starts building a handle for path. The returned builder selects
// options and is finished with AsFile or AsDirectory.
func (f *FS) Open(path Path) *OpenBuilder {
	return &OpenBuilder{fs: f, path: path}
}

// Stat reads metadata for path without opening a descriptor, so it is not
// subject to the permit limit. Symlinks are reported as themselves, never
// followed.
func (f *FS) Stat(ctx context.Context, path Path) (FileStat, error) {
	f.ensureOpen()
	p := path.String()
	return runTask(ctx, f.workers, func(*blockPool) (FileStat, error) {
		return sysStat(p)
	})
}

// Mkdir creates a directory at path with default permissions (0o777 before
// umask).
func (f *FS) Mkdir(ctx context.Context, path Path) error {
	f.ensureOpen()
	p := path.String()
	_, err := runTask(ctx, f.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysMkdir(p, 0o777)
	})
	return err
}

// Rename atomically moves from to to. Both paths must live on the same
// filesystem; a cross-filesystem rename fails with the platform's error.
func (f *FS) Rename(ctx context.Context, from, to Path) error {
	f.ensureOpen()
	src, dst := from.String(), to.String()
	_, err := runTask(ctx, f.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysRename(src, dst)
	})
	return err
}

// AvailablePermits reports how many handles can still be opened before
// callers start queueing. Diagnostic only; the value may be stale by the
// time it is read.
func (f *FS) AvailablePermits() int {
	return cap(f.permits) - len(f.permits)
}

// Close shuts the factory down: the worker pool stops after in-flight
// syscalls finish, then the close worker drains whatever reached the drop
// queue and exits. Handles still open at this point are a caller bug;
// their descriptors survive until process exit. Close is idempotent.
func (f *FS) Close() {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		f.workers.close()
		close(f.shutdown)
		f.closeWG.Wait()
	})
}

func (f *FS) ensureOpen() {
	if f.closed.Load() {
		panic("fs: use of closed FS")
	}
}

func (f *FS) acquirePermit(ctx context.Context) error {
	start := time.Now()
	select {
	case f.permits <- struct{}{}:
		f.metrics.RecordPermitWait(time.Since(start))
		f.metrics.SetPermitsInUse(len(f.permits))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FS) releasePermit() {
	select {
	case <-f.permits:
		f.metrics.SetPermitsInUse(len(f.permits))
	default:
		panic("fs: permit released twice")
	}
}
