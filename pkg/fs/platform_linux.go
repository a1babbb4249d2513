//go:build linux

package fs

import (
	"encoding/binary"
	"errors"
	"os"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Offsets into a raw linux_dirent64 record. The layout is fixed by the
// kernel ABI: d_ino at 0, d_off at 8, d_reclen at 16, d_type at 18, and the
// NUL-terminated name starting at 19.
const (
	direntRecLenOffset = 16
	direntTypeOffset   = 18
	direntNameOffset   = 19
)

// direntBufSize is the scratch buffer handed to getdents64 per call. Large
// enough that most directories drain in one syscall.
const direntBufSize = 32 * 1024

func sysOpen(path string, opts openOptions, mode uint32) (int, error) {
	flags := openFlags(opts) | unix.O_LARGEFILE
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
	flags := openFlags(opts) | unix.O_LARGEFILE
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

// sysListDir enumerates a directory via getdents64 on a private duplicate
// of fd, so the caller's descriptor stays usable and repeated listings each
// see the full directory.
func sysListDir(fd int, path string) ([]DirEntry, error) {
	nfd, err := dupFD(fd)
	if err != nil {
		return nil, err
	}
	defer unix.Close(nfd)

	// The directory position is part of the shared file description;
	// rewind so every listing starts from the beginning.
	if _, err := unix.Seek(nfd, 0, 0); err != nil {
		return nil, sysError("lseek", path, err)
	}

	var entries []DirEntry
	buf := make([]byte, direntBufSize)
	for {
		n, err := unix.Getdents(nfd, buf)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return nil, sysError("getdents64", path, err)
		}
		if n == 0 {
			return entries, nil
		}
		for off := 0; off < n; {
			ino := binary.LittleEndian.Uint64(buf[off : off+8])
			reclen := int(binary.LittleEndian.Uint16(buf[off+direntRecLenOffset : off+direntTypeOffset]))
			if reclen <= 0 || off+reclen > n {
				return nil, invalidDataError("malformed dirent record", path)
			}
			typ := buf[off+direntTypeOffset]
			nameBytes := buf[off+direntNameOffset : off+reclen]
			if i := indexNul(nameBytes); i >= 0 {
				nameBytes = nameBytes[:i]
			}
			name := string(nameBytes)
			off += reclen

			if name == "." || name == ".." {
				continue
			}
			var kind Kind
			switch typ {
			case unix.DT_REG:
				kind = KindFile
			case unix.DT_DIR:
				kind = KindDirectory
			case unix.DT_LNK:
				kind = KindSymlink
			default:
				// DT_UNKNOWN, or a kind outside the model. Some
				// filesystems never fill d_type, so stat the entry
				// before defaulting to regular file.
				var ok bool
				kind, ok = classifyAt(nfd, name)
				if !ok {
					warnUnknownKind(uint32(typ), path+"/"+name)
				}
			}
			entries = append(entries, DirEntry{Inode: ino, Name: name, Kind: kind})
		}
	}
}

// classifyAt resolves an entry's kind with fstatat when d_type was not
// usable. Failure to stat is reported as a regular file rather than failing
// the whole listing; the entry may have been removed concurrently.
func classifyAt(dirfd int, name string) (Kind, bool) {
	var st unix.Stat_t
	for {
		err := unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return KindFile, false
		}
		return kindFromMode(uint32(st.Mode))
	}
}

// sysFgetpath recovers the path a descriptor was opened under via procfs.
// The result reflects the current name and may differ from the opening path
// after a rename.
func sysFgetpath(fd int) (string, error) {
	p, err := os.Readlink("/proc/self/fd/" + strconv.Itoa(fd))
	if err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) {
			return "", sysError("readlink /proc/self/fd", "", errno)
		}
		return "", sysError("readlink /proc/self/fd", "", err)
	}
	return p, nil
}
