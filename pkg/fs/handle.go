package fs

import (
	"context"
	"runtime"
	"sync/atomic"
	"unicode/utf8"
)

// Typed handles wrap one open descriptor and the permit reserved for it.
// The two travel together: a handle is created only after the open syscall
// succeeded under an acquired permit, and both are released together by
// exactly one of
//
//   - an explicit Close, which closes the descriptor on a worker and
//     returns the permit, or
//   - garbage collection of an unclosed handle, which hands descriptor and
//     permit to the deferred close worker.
//
// Using a handle after Close, or closing it twice, is a programming error
// and panics. Handle methods are safe for concurrent use as long as Close
// is not concurrent with other calls.
//
// Every method marshals its syscall onto the factory's worker pool; the
// task closure keeps the handle reachable, so the cleanup cannot close the
// descriptor while a call is still using it.

// handleState is the inner state shared by both handle kinds. It is a
// separate allocation from the handle so the GC cleanup can hold it
// without keeping the handle itself alive.
type handleState struct {
	fs     *FS
	fd     int
	path   string
	tag    string
	closed atomic.Bool
}

// dropOnCleanup runs on the runtime's cleanup goroutine when a handle
// became unreachable without Close.
func dropOnCleanup(st *handleState) {
	st.fs.drops.push(droppedHandle{fd: st.fd, tag: st.tag})
}

func (s *handleState) ensureUsable() {
	if s.closed.Load() {
		panic("fs: use of closed handle")
	}
	s.fs.ensureOpen()
}

// close consumes the handle: descriptor back to the platform, permit back
// to the limiter. The permit is released even when the close itself fails,
// since the descriptor is gone either way.
func (s *handleState) close(c *runtime.Cleanup) error {
	if !s.closed.CompareAndSwap(false, true) {
		panic("fs: handle closed twice")
	}
	c.Stop()
	s.fs.ensureOpen()
	fd := s.fd
	_, err := runTask(context.Background(), s.fs.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysClose(fd)
	})
	s.fs.releasePermit()
	s.fs.metrics.RecordClose("explicit")
	return err
}

// FileHandle is a typed handle to a regular file. Produced by
// OpenBuilder.AsFile, which also verifies the target's kind.
type FileHandle struct {
	state     *handleState
	blockSize int64
	cleanup   runtime.Cleanup
}

func newFileHandle(f *FS, fd int, path, tag string, blockSize int64) *FileHandle {
	st := &handleState{fs: f, fd: fd, path: path, tag: tag}
	h := &FileHandle{state: st, blockSize: blockSize}
	h.cleanup = runtime.AddCleanup(h, dropOnCleanup, st)
	return h
}

// Close releases the handle. See the lifecycle contract above.
func (h *FileHandle) Close() error {
	defer runtime.KeepAlive(h)
	return h.state.close(&h.cleanup)
}

// Tag returns the diagnostic tag given at open time.
func (h *FileHandle) Tag() string { return h.state.tag }

// BlockSize returns the filesystem's preferred I/O size for this file, as
// captured by the open-time stat.
func (h *FileHandle) BlockSize() int64 { return h.blockSize }

// Stat reads the file's current metadata.
func (h *FileHandle) Stat(ctx context.Context) (FileStat, error) {
	h.state.ensureUsable()
	return runTask(ctx, h.state.fs.workers, func(*blockPool) (FileStat, error) {
		return sysFstat(h.state.fd, h.state.path)
	})
}

// Sync flushes written data to the storage device's buffer. This is the
// platform's fsync; durability beyond the device cache is not implied.
func (h *FileHandle) Sync(ctx context.Context) error {
	h.state.ensureUsable()
	_, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysFsync(h.state.fd)
	})
	return err
}

// Path recovers the file's current path from the descriptor. Best effort:
// a concurrent rename can change the answer between syscall and return.
func (h *FileHandle) Path(ctx context.Context) (Path, error) {
	h.state.ensureUsable()
	raw, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (string, error) {
		return sysFgetpath(h.state.fd)
	})
	if err != nil {
		return Path{}, err
	}
	return NewPath(raw)
}

// Write writes p at the given offset and reports how many bytes the
// platform accepted. Offsets are caller-managed; there is no cursor.
func (h *FileHandle) Write(ctx context.Context, p []byte, offset int64) (int, error) {
	h.state.ensureUsable()
	n, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (int, error) {
		return sysPwrite(h.state.fd, p, offset)
	})
	if err == nil {
		h.state.fs.metrics.RecordBytesTransferred("write", int64(n))
	}
	return n, err
}

// Read fills p from the given offset and reports how many bytes were read.
// Zero with no error means end of file was reached at offset. For
// streaming reads prefer ReadWith, which reuses pooled buffers.
func (h *FileHandle) Read(ctx context.Context, p []byte, offset int64) (int, error) {
	h.state.ensureUsable()
	n, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (int, error) {
		return sysPread(h.state.fd, p, offset)
	})
	if err == nil {
		h.state.fs.metrics.RecordBytesTransferred("read", int64(n))
	}
	return n, err
}

// Setxattr writes the extended attribute attr.
func (h *FileHandle) Setxattr(ctx context.Context, attr string, data []byte) error {
	h.state.ensureUsable()
	_, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysFsetxattr(h.state.fd, attr, data)
	})
	return err
}

// Getxattr reads the extended attribute attr into buf and reports its
// length. A buffer too small for the value fails with ResultTooLarge.
func (h *FileHandle) Getxattr(ctx context.Context, attr string, buf []byte) (int, error) {
	h.state.ensureUsable()
	return runTask(ctx, h.state.fs.workers, func(*blockPool) (int, error) {
		return sysFgetxattr(h.state.fd, attr, buf)
	})
}

// DirectoryHandle is a typed handle to a directory. Produced by
// OpenBuilder.AsDirectory. It can open children under the same global
// permit limit, so a directory handle is also a capability to descend.
type DirectoryHandle struct {
	state   *handleState
	cleanup runtime.Cleanup
}

func newDirectoryHandle(f *FS, fd int, path, tag string) *DirectoryHandle {
	st := &handleState{fs: f, fd: fd, path: path, tag: tag}
	h := &DirectoryHandle{state: st}
	h.cleanup = runtime.AddCleanup(h, dropOnCleanup, st)
	return h
}

// Close releases the handle. See the lifecycle contract above.
func (h *DirectoryHandle) Close() error {
	defer runtime.KeepAlive(h)
	return h.state.close(&h.cleanup)
}

// Tag returns the diagnostic tag given at open time.
func (h *DirectoryHandle) Tag() string { return h.state.tag }

// Stat reads the directory's current metadata.
func (h *DirectoryHandle) Stat(ctx context.Context) (FileStat, error) {
	h.state.ensureUsable()
	return runTask(ctx, h.state.fs.workers, func(*blockPool) (FileStat, error) {
		return sysFstat(h.state.fd, h.state.path)
	})
}

// Sync flushes the directory itself, making freshly persisted entries
// durable against the directory's metadata.
func (h *DirectoryHandle) Sync(ctx context.Context) error {
	h.state.ensureUsable()
	_, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysFsync(h.state.fd)
	})
	return err
}

// Path recovers the directory's current path from the descriptor. Best
// effort, like FileHandle.Path.
func (h *DirectoryHandle) Path(ctx context.Context) (Path, error) {
	h.state.ensureUsable()
	raw, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (string, error) {
		return sysFgetpath(h.state.fd)
	})
	if err != nil {
		return Path{}, err
	}
	return NewPath(raw)
}

// List enumerates the directory's entries, excluding the dot entries. The
// handle stays valid and a later List sees the directory afresh. Order is
// whatever the platform returned.
func (h *DirectoryHandle) List(ctx context.Context) ([]DirEntry, error) {
	h.state.ensureUsable()
	entries, err := runTask(ctx, h.state.fs.workers, func(*blockPool) ([]DirEntry, error) {
		return sysListDir(h.state.fd, h.state.path)
	})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !utf8.ValidString(e.Name) {
			return nil, invalidDataError("directory entry name is not valid UTF-8", h.state.path)
		}
	}
	return entries, nil
}

// OpenAt starts building a handle for the named entry of this directory.
// The open resolves relative to this handle's descriptor and acquires its
// own permit, so a directory can have any number of still-capped children.
func (h *DirectoryHandle) OpenAt(name string) *OpenBuilder {
	return &OpenBuilder{fs: h.state.fs, dir: h, name: name, err: validateName(name)}
}

// StatAt reads metadata for the named entry without opening it. Symlinks
// are reported as themselves.
func (h *DirectoryHandle) StatAt(ctx context.Context, name string) (FileStat, error) {
	if err := validateName(name); err != nil {
		return FileStat{}, err
	}
	h.state.ensureUsable()
	return runTask(ctx, h.state.fs.workers, func(*blockPool) (FileStat, error) {
		return sysFstatAt(h.state.fd, name)
	})
}

// MkdirAt creates a subdirectory with default permissions (0o777 before
// umask).
func (h *DirectoryHandle) MkdirAt(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	h.state.ensureUsable()
	_, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysMkdirAt(h.state.fd, name, 0o777)
	})
	return err
}

// RenameAt atomically moves this directory's entry oldName to newName
// under to. Both directories must be on the same filesystem.
func (h *DirectoryHandle) RenameAt(ctx context.Context, oldName string, to *DirectoryHandle, newName string) error {
	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}
	h.state.ensureUsable()
	to.state.ensureUsable()
	_, err := runTask(ctx, h.state.fs.workers, func(*blockPool) (struct{}, error) {
		return struct{}{}, sysRenameAt(h.state.fd, oldName, to.state.fd, newName)
	})
	return err
}
