package fs

// platform.go defines the internal platform adapter contract: the narrow set
// of blocking system-call wrappers the rest of the package is written
// against. Exactly one build-tagged file provides the implementation:
//
//   - platform_linux.go   Linux (openat/getdents64/statx-free fast path)
//   - platform_darwin.go  macOS (libc wrappers via golang.org/x/sys/unix)
//   - platform_stub.go    everything else; every call fails explicitly
//
// Required functions (signatures shared across all three):
//
//	sysOpen(path string, opts openOptions, mode uint32) (int, error)
//	sysOpenAt(dirfd int, name string, opts openOptions, mode uint32) (int, error)
//	sysClose(fd int) error
//	sysMkdir(path string, mode uint32) error
//	sysMkdirAt(dirfd int, name string, mode uint32) error
//	sysStat(path string) (FileStat, error)
//	sysFstat(fd int, path string) (FileStat, error)
//	sysFstatAt(dirfd int, name string) (FileStat, error)
//	sysFsync(fd int) error
//	sysListDir(fd int, path string) ([]DirEntry, error)
//	sysPread(fd int, buf []byte, offset int64) (int, error)
//	sysPwrite(fd int, buf []byte, offset int64) (int, error)
//	sysRename(from, to string) error
//	sysRenameAt(fromDirfd int, fromName string, toDirfd int, toName string) error
//	sysFsetxattr(fd int, attr string, data []byte) error
//	sysFgetxattr(fd int, attr string, buf []byte) (int, error)
//	sysFgetpath(fd int) (string, error)
//	sysFileHandleMax() uint64
//
// Conventions every implementation follows:
//
//   - Symlinks are never followed: opens carry O_NOFOLLOW and stats use
//     AT_SYMLINK_NOFOLLOW (or lstat).
//   - Calls retry on EINTR without an upper bound, matching the standard
//     library.
//   - Failures are returned as *FilesystemError with the errno mapped onto
//     the taxonomy in errors.go.
//   - sysListDir duplicates the descriptor before opening a directory
//     stream, so the caller's descriptor stays valid, and always closes the
//     stream it opened.
//
// Every call here blocks the calling OS thread; the worker pool in worker.go
// is the only place these functions are invoked from (construction-time
// queries like sysFileHandleMax excepted).

import "time"

// Kind classifies a filesystem object.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileStat is an immutable snapshot of one filesystem object's metadata,
// produced by the stat family of calls. It is never mutated after creation.
type FileStat struct {
	// Size is the object's size in bytes
	Size int64

	// Kind is the object classification (file, directory, symlink)
	Kind Kind

	// Inode is the platform inode number
	Inode uint64

	// Mode is the permission bits (type bits stripped)
	Mode uint32

	// UID is the owning user id
	UID uint32

	// GID is the owning group id
	GID uint32

	// Mtime is the last content modification time
	Mtime time.Time

	// Ctime is the last status change time
	Ctime time.Time

	// BlockSize is the optimal I/O block size in bytes, or 0 when the
	// platform did not report one
	BlockSize int64
}

// DirEntry is one entry observed while listing a directory. Entries are
// produced only during a listing and are never persisted.
type DirEntry struct {
	// Inode is the entry's inode number
	Inode uint64

	// Name is the entry's name within its directory
	Name string

	// Kind is the entry classification
	Kind Kind
}

// openOptions is the bit-set of open(2) behaviors a builder can request.
// The zero value means read-only.
type openOptions uint8

const (
	optReadWrite openOptions = 1 << iota
	optAppend
	optCreate
	optExclusive
	optTruncate
	optDirectory
)

// defaultBlockSize is assumed when the platform does not report an optimal
// I/O block size.
const defaultBlockSize = 4096

// readBlockMultiple scales the stat-reported block size into the pooled
// read buffer size.
const readBlockMultiple = 8
