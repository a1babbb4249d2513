//go:build linux || darwin

package fs

// platform_unix.go holds the adapter pieces Linux and macOS share: the
// option-to-flag translation, S_IFMT classification, positioned I/O, rename,
// mkdir, fsync, xattr and rlimit wrappers. Everything here follows the same
// conventions as the per-OS files (EINTR retry, errno mapping, O_NOFOLLOW).

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/forgebuild/forgefs/internal/logger"
)

// openFlags translates the option bit-set into open(2) flags. Read-only is
// the default; O_CLOEXEC and O_NOFOLLOW are always set.
func openFlags(opts openOptions) int {
	flags := unix.O_RDONLY | unix.O_CLOEXEC | unix.O_NOFOLLOW
	if opts&optReadWrite != 0 {
		flags |= unix.O_RDWR
	}
	if opts&optAppend != 0 {
		flags |= unix.O_APPEND
	}
	if opts&optCreate != 0 {
		flags |= unix.O_CREAT
	}
	if opts&optExclusive != 0 {
		flags |= unix.O_EXCL
	}
	if opts&optTruncate != 0 {
		flags |= unix.O_TRUNC
	}
	if opts&optDirectory != 0 {
		flags |= unix.O_DIRECTORY
	}
	return flags
}

// kindFromMode classifies S_IFMT bits. An unrecognized pattern (socket,
// fifo, device) reports ok=false; callers treat it as a regular file and
// log, rather than failing the operation.
func kindFromMode(mode uint32) (Kind, bool) {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return KindFile, true
	case unix.S_IFDIR:
		return KindDirectory, true
	case unix.S_IFLNK:
		return KindSymlink, true
	default:
		return KindFile, false
	}
}

// warnUnknownKind records the defaulting decision for an unclassifiable
// mode. Split out so the per-OS stat converters share the message.
func warnUnknownKind(mode uint32, path string) {
	logger.Warn("unrecognized file type bits %#o for %q, treating as regular file", mode&unix.S_IFMT, path)
}

func sysClose(fd int) error {
	// close(2) is intentionally not retried on EINTR: the descriptor state
	// is unspecified after an interrupted close and a retry could close an
	// unrelated, freshly reused descriptor.
	if err := unix.Close(fd); err != nil {
		return sysError("close", "", err)
	}
	return nil
}

func sysMkdir(path string, mode uint32) error {
	for {
		err := unix.Mkdir(path, mode)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return sysError("mkdir", path, err)
		}
		return nil
	}
}

func sysMkdirAt(dirfd int, name string, mode uint32) error {
	for {
		err := unix.Mkdirat(dirfd, name, mode)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return sysError("mkdirat", name, err)
		}
		return nil
	}
}

func sysFsync(fd int) error {
	for {
		err := unix.Fsync(fd)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return sysError("fsync", "", err)
		}
		return nil
	}
}

func sysPread(fd int, buf []byte, offset int64) (int, error) {
	for {
		n, err := unix.Pread(fd, buf, offset)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return 0, sysError("pread", "", err)
		}
		return n, nil
	}
}

func sysPwrite(fd int, buf []byte, offset int64) (int, error) {
	for {
		n, err := unix.Pwrite(fd, buf, offset)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return 0, sysError("pwrite", "", err)
		}
		return n, nil
	}
}

func sysRename(from, to string) error {
	for {
		err := unix.Rename(from, to)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return sysError("rename", from, err)
		}
		return nil
	}
}

func sysRenameAt(fromDirfd int, fromName string, toDirfd int, toName string) error {
	for {
		err := unix.Renameat(fromDirfd, fromName, toDirfd, toName)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return sysError("renameat", fromName, err)
		}
		return nil
	}
}

func sysFsetxattr(fd int, attr string, data []byte) error {
	for {
		err := unix.Fsetxattr(fd, attr, data, 0)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return sysError("fsetxattr "+attr, "", err)
		}
		return nil
	}
}

func sysFgetxattr(fd int, attr string, buf []byte) (int, error) {
	for {
		n, err := unix.Fgetxattr(fd, attr, buf)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return 0, sysError("fgetxattr "+attr, "", err)
		}
		return n, nil
	}
}

// sysFileHandleMax reports the soft limit on open descriptors for this
// process.
func sysFileHandleMax() uint64 {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		logger.Warn("getrlimit(RLIMIT_NOFILE) failed: %v, assuming 1024", err)
		return 1024
	}
	return uint64(rl.Cur)
}

// dupFD duplicates a descriptor with close-on-exec set, for operations that
// need a private descriptor (directory streams).
func dupFD(fd int) (int, error) {
	nfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, sysError("dup", "", err)
	}
	return nfd, nil
}

func indexNul(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
