//go:build darwin

package fs

import (
	"errors"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// darwinMaxPathLen matches MAXPATHLEN from sys/param.h, the buffer size
// F_GETPATH expects.
const darwinMaxPathLen = 1024

func sysOpen(path string, opts openOptions, mode uint32) (int, error) {
	flags := openFlags(opts)
	for {
		fd, err := unix.Open(path, flags, mode)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return -1, sysError("open", path, err)
		}
		return fd, nil
	}
}

func sysOpenAt(dirfd int, name string, opts openOptions, mode uint32) (int, error) {
	flags := openFlags(opts)
	for {
		fd, err := unix.Openat(dirfd, name, flags, mode)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return -1, sysError("openat", name, err)
		}
		return fd, nil
	}
}

func sysStat(path string) (FileStat, error) {
	var st unix.Stat_t
	for {
		err := unix.Lstat(path, &st)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return FileStat{}, sysError("lstat", path, err)
		}
		return statFromUnix(&st, path), nil
	}
}

func sysFstat(fd int, path string) (FileStat, error) {
	var st unix.Stat_t
	for {
		err := unix.Fstat(fd, &st)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return FileStat{}, sysError("fstat", path, err)
		}
		return statFromUnix(&st, path), nil
	}
}

func sysFstatAt(dirfd int, name string) (FileStat, error) {
	var st unix.Stat_t
	for {
		err := unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return FileStat{}, sysError("fstatat", name, err)
		}
		return statFromUnix(&st, name), nil
	}
}

func statFromUnix(st *unix.Stat_t, path string) FileStat {
	kind, ok := kindFromMode(uint32(st.Mode))
	if !ok {
		warnUnknownKind(uint32(st.Mode), path)
	}
	msec, mnsec := st.Mtim.Unix()
	csec, cnsec := st.Ctim.Unix()
	return FileStat{
		Size:      st.Size,
		Kind:      kind,
		Inode:     st.Ino,
		Mode:      uint32(st.Mode) & 0o7777,
		UID:       st.Uid,
		GID:       st.Gid,
		Mtime:     time.Unix(msec, mnsec),
		Ctime:     time.Unix(csec, cnsec),
		BlockSize: int64(st.Blksize),
	}
}

// sysListDir enumerates a directory through the runtime's readdir on a
// private duplicate of fd, so the caller's descriptor stays usable and
// repeated listings each see the full directory.
func sysListDir(fd int, path string) ([]DirEntry, error) {
	nfd, err := dupFD(fd)
	if err != nil {
		return nil, err
	}
	// The directory position is part of the shared file description;
	// rewind so every listing starts from the beginning.
	if _, err := unix.Seek(nfd, 0, 0); err != nil {
		unix.Close(nfd)
		return nil, sysError("lseek", path, err)
	}

	f := os.NewFile(uintptr(nfd), path)
	defer f.Close()

	dirents, err := f.ReadDir(-1)
	if err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) {
			return nil, sysError("readdir", path, errno)
		}
		return nil, sysError("readdir", path, err)
	}

	entries := make([]DirEntry, 0, len(dirents))
	for _, e := range dirents {
		var kind Kind
		known := true
		switch {
		case e.Type()&os.ModeSymlink != 0:
			kind = KindSymlink
		case e.IsDir():
			kind = KindDirectory
		case e.Type() == 0:
			kind = KindFile
		default:
			kind = KindFile
			known = false
		}

		// The dirent itself does not surface the inode; stat the entry.
		// Entries removed between readdir and stat are dropped.
		info, ierr := e.Info()
		if ierr != nil {
			if errors.Is(ierr, os.ErrNotExist) {
				continue
			}
			entries = append(entries, DirEntry{Name: e.Name(), Kind: kind})
			continue
		}
		var ino uint64
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			ino = st.Ino
			if !known {
				kind, known = kindFromMode(uint32(st.Mode))
			}
		}
		if !known {
			warnUnknownKind(uint32(info.Mode()), path+"/"+e.Name())
		}
		entries = append(entries, DirEntry{Inode: ino, Name: e.Name(), Kind: kind})
	}
	return entries, nil
}

// sysFgetpath recovers the path a descriptor was opened under via
// fcntl(F_GETPATH). The result reflects the current name and may differ
// from the opening path after a rename.
func sysFgetpath(fd int) (string, error) {
	buf := make([]byte, darwinMaxPathLen)
	_, _, errno := syscall.Syscall(syscall.SYS_FCNTL, uintptr(fd), uintptr(unix.F_GETPATH), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", sysError("fcntl F_GETPATH", "", errno)
	}
	if i := indexNul(buf); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}
