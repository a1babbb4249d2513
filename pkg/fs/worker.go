package fs

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"

	"github.com/forgebuild/forgefs/internal/logger"
)

// isContextError distinguishes the two values Context.Err can return from
// errors produced by a task itself, which tells open callers whether the
// abandon path already took ownership of cleanup.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// workerPool owns the goroutines that execute platform syscalls. The rest
// of the package never calls the platform adapter directly; every operation
// is marshalled onto a worker and awaited through a one-shot channel, so a
// blocking syscall never stalls the caller's scheduler thread beyond the
// goroutine that asked for it.
type workerPool struct {
	tasks chan func(*blockPool)
	wg    sync.WaitGroup
}

func newWorkerPool(n int) *workerPool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &workerPool{tasks: make(chan func(*blockPool))}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

// worker executes tasks one at a time. The block pool is owned by this
// goroutine and never shared.
func (p *workerPool) worker() {
	defer p.wg.Done()
	blocks := newBlockPool()
	for task := range p.tasks {
		task(blocks)
	}
}

// close stops accepting tasks and waits for in-flight ones to finish.
func (p *workerPool) close() {
	close(p.tasks)
	p.wg.Wait()
}

// taskResult carries one completed syscall back to its submitter.
type taskResult[R any] struct {
	val R
	err error
}

// runTask marshals fn onto a worker and waits for completion. The result
// channel is buffered so a worker never blocks on a submitter that has gone
// away. Use runOpenTask instead for anything that produces a descriptor.
func runTask[R any](ctx context.Context, p *workerPool, fn func(*blockPool) (R, error)) (R, error) {
	res := make(chan taskResult[R], 1)
	wrapped := func(blocks *blockPool) {
		v, err := fn(blocks)
		res <- taskResult[R]{val: v, err: err}
	}
	select {
	case p.tasks <- wrapped:
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
	select {
	case r := <-res:
		return r.val, r.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// runOpenTask is runTask for syscalls that produce a descriptor. When the
// submitter is cancelled, the task may still complete and its result can no
// longer be returned; abandon is then invoked exactly once with whatever
// the task produced, so the descriptor and its permit are recovered rather
// than leaked. When runOpenTask returns a non-context error or succeeds,
// abandon is never called.
func runOpenTask[R any](ctx context.Context, p *workerPool, fn func(*blockPool) (R, error), abandon func(R, error)) (R, error) {
	res := make(chan taskResult[R], 1)
	wrapped := func(blocks *blockPool) {
		v, err := fn(blocks)
		res <- taskResult[R]{val: v, err: err}
	}
	select {
	case p.tasks <- wrapped:
	case <-ctx.Done():
		var zero R
		abandon(zero, ctx.Err())
		return zero, ctx.Err()
	}
	select {
	case r := <-res:
		return r.val, r.err
	case <-ctx.Done():
		go func() {
			r := <-res
			abandon(r.val, r.err)
		}()
		var zero R
		return zero, ctx.Err()
	}
}

// droppedHandle is the descriptor and diagnostic tag extracted from a
// handle abandoned without an explicit Close. A dropped handle still holds
// its permit; the close worker releases it after closing the descriptor.
type droppedHandle struct {
	fd  int
	tag string
}

func (dh droppedHandle) describe() string {
	if dh.tag != "" {
		return dh.tag + " (fd " + strconv.Itoa(dh.fd) + ")"
	}
	return "untagged handle (fd " + strconv.Itoa(dh.fd) + ")"
}

// dropQueue is the multi-producer, single-consumer hand-off between
// abandoned handles and the close worker. Pushes never block, which matters
// because one producer is the runtime's cleanup goroutine.
type dropQueue struct {
	mu      sync.Mutex
	pending []droppedHandle
	signal  chan struct{}
}

func newDropQueue() *dropQueue {
	return &dropQueue{signal: make(chan struct{}, 1)}
}

func (q *dropQueue) push(dh droppedHandle) {
	q.mu.Lock()
	q.pending = append(q.pending, dh)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *dropQueue) drain() []droppedHandle {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	return batch
}

// closeWorker drains the drop queue in batches, closing each abandoned
// descriptor and releasing its permit regardless of the close outcome. The
// close runs directly on this goroutine rather than the worker pool, so the
// queue still drains during pool shutdown.
func (f *FS) closeWorker() {
	defer f.closeWG.Done()
	for {
		select {
		case <-f.drops.signal:
			f.closeDropped(f.drops.drain())
		case <-f.shutdown:
			f.closeDropped(f.drops.drain())
			return
		}
	}
}

func (f *FS) closeDropped(batch []droppedHandle) {
	for _, dh := range batch {
		if err := sysClose(dh.fd); err != nil {
			logger.Warn("deferred close of %s failed: %v", dh.describe(), err)
		} else {
			logger.Debug("deferred close released %s", dh.describe())
		}
		f.releasePermit()
		f.metrics.RecordClose("dropped")
	}
}
