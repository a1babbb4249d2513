package fs

import "context"

// OpenBuilder accumulates options for one open and is finished with AsFile
// or AsDirectory. Builders come from FS.Open (path-based) or
// DirectoryHandle.OpenAt (descriptor-relative) and are single-shot.
//
// The terminal call acquires a permit, runs the open on a worker, and
// verifies the target's kind; a failure at any point releases the permit
// before returning. A terminal call abandoned through context
// cancellation never leaks either: if the open had already completed, the
// descriptor is routed to the deferred close worker.
type OpenBuilder struct {
	fs   *FS
	path Path
	dir  *DirectoryHandle
	name string
	opts openOptions
	mode uint32
	tag  string
	err  error
}

// ReadWrite opens for reading and writing instead of read-only.
func (b *OpenBuilder) ReadWrite() *OpenBuilder {
	b.opts |= optReadWrite
	return b
}

// Append makes every write land at end of file.
func (b *OpenBuilder) Append() *OpenBuilder {
	b.opts |= optAppend
	return b
}

// Create creates the file if it does not exist, with 0o666 permissions
// before umask.
func (b *OpenBuilder) Create() *OpenBuilder {
	b.opts |= optCreate
	b.mode = 0o666
	return b
}

// CreateNew creates the file and fails if it already exists.
func (b *OpenBuilder) CreateNew() *OpenBuilder {
	b.opts |= optCreate | optExclusive
	b.mode = 0o666
	return b
}

// Truncate empties the file on open.
func (b *OpenBuilder) Truncate() *OpenBuilder {
	b.opts |= optTruncate
	return b
}

// Tag attaches a diagnostic tag carried by the resulting handle and
// reported if the handle is ever drained by the deferred close worker.
func (b *OpenBuilder) Tag(tag string) *OpenBuilder {
	b.tag = tag
	return b
}

// openResult carries a completed open syscall and its companion stat back
// from the worker.
type openResult struct {
	fd   int
	stat FileStat
}

// abandon recovers the resources of an open whose submitter was cancelled:
// a completed descriptor goes to the drop queue still holding its permit,
// a failed open just gives the permit back.
func (b *OpenBuilder) abandon(r openResult, err error) {
	if err != nil {
		b.fs.releasePermit()
		return
	}
	b.fs.drops.push(droppedHandle{fd: r.fd, tag: b.tag})
}

// AsFile finishes the open expecting a regular file. The returned FileStat
// is the open-time snapshot that confirmed the kind; anything else closes
// the fresh descriptor and fails with NotAFile.
func (b *OpenBuilder) AsFile(ctx context.Context) (*FileHandle, FileStat, error) {
	if b.err != nil {
		return nil, FileStat{}, b.err
	}
	f := b.fs
	f.ensureOpen()
	if b.dir != nil {
		b.dir.state.ensureUsable()
	}
	if err := f.acquirePermit(ctx); err != nil {
		return nil, FileStat{}, err
	}

	dir, path, name := b.dir, b.path.String(), b.name
	opts, mode := b.opts, b.mode
	res, err := runOpenTask(ctx, f.workers, func(*blockPool) (openResult, error) {
		var fd int
		var err error
		ref := path
		if dir != nil {
			ref = name
			fd, err = sysOpenAt(dir.state.fd, name, opts, mode)
		} else {
			fd, err = sysOpen(path, opts, mode)
		}
		if err != nil {
			return openResult{}, err
		}
		stat, err := sysFstat(fd, ref)
		if err != nil {
			_ = sysClose(fd)
			return openResult{}, err
		}
		if stat.Kind != KindFile {
			_ = sysClose(fd)
			return openResult{}, notAFileError("expected regular file, found "+stat.Kind.String(), ref)
		}
		return openResult{fd: fd, stat: stat}, nil
	}, b.abandon)
	if err != nil {
		if !isContextError(err) {
			f.releasePermit()
		}
		f.metrics.RecordOpen("file", err)
		return nil, FileStat{}, err
	}

	f.metrics.RecordOpen("file", nil)
	h := newFileHandle(f, res.fd, b.fullPath(), b.tag, res.stat.BlockSize)
	return h, res.stat, nil
}

// AsDirectory finishes the open expecting a directory. A regular file at
// the target fails with the kind-mismatch error.
func (b *OpenBuilder) AsDirectory(ctx context.Context) (*DirectoryHandle, error) {
	if b.err != nil {
		return nil, b.err
	}
	f := b.fs
	f.ensureOpen()
	if b.dir != nil {
		b.dir.state.ensureUsable()
	}
	if err := f.acquirePermit(ctx); err != nil {
		return nil, err
	}

	dir, path, name := b.dir, b.path.String(), b.name
	opts := b.opts | optDirectory
	mode := b.mode
	res, err := runOpenTask(ctx, f.workers, func(*blockPool) (openResult, error) {
		var fd int
		var err error
		if dir != nil {
			fd, err = sysOpenAt(dir.state.fd, name, opts, mode)
		} else {
			fd, err = sysOpen(path, opts, mode)
		}
		if err != nil {
			return openResult{}, err
		}
		return openResult{fd: fd}, nil
	}, b.abandon)
	if err != nil {
		if !isContextError(err) {
			f.releasePermit()
		}
		f.metrics.RecordOpen("directory", err)
		return nil, err
	}

	f.metrics.RecordOpen("directory", nil)
	return newDirectoryHandle(f, res.fd, b.fullPath(), b.tag), nil
}

// fullPath is the opening path recorded on the handle for diagnostics.
func (b *OpenBuilder) fullPath() string {
	if b.dir == nil {
		return b.path.String()
	}
	return b.dir.state.path + "/" + b.name
}
