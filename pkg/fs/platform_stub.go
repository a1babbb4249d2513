//go:build !linux && !darwin

package fs

// Stub adapter for platforms without a native backend. Every operation
// fails with a descriptive error so the package still compiles and callers
// get a deterministic failure instead of a build break.

func errUnsupported(op string) error {
	return &FilesystemError{
		Code:   ErrUnknown,
		Detail: op + " is not supported on this platform",
	}
}

func sysOpen(path string, opts openOptions, mode uint32) (int, error) {
	return -1, errUnsupported("open")
}

func sysOpenAt(dirfd int, name string, opts openOptions, mode uint32) (int, error) {
	return -1, errUnsupported("openat")
}

func sysClose(fd int) error {
	return errUnsupported("close")
}

func sysMkdir(path string, mode uint32) error {
	return errUnsupported("mkdir")
}

func sysMkdirAt(dirfd int, name string, mode uint32) error {
	return errUnsupported("mkdirat")
}

func sysStat(path string) (FileStat, error) {
	return FileStat{}, errUnsupported("stat")
}

func sysFstat(fd int, path string) (FileStat, error) {
	return FileStat{}, errUnsupported("fstat")
}

func sysFstatAt(dirfd int, name string) (FileStat, error) {
	return FileStat{}, errUnsupported("fstatat")
}

func sysFsync(fd int) error {
	return errUnsupported("fsync")
}

func sysListDir(fd int, path string) ([]DirEntry, error) {
	return nil, errUnsupported("listdir")
}

func sysPread(fd int, buf []byte, offset int64) (int, error) {
	return 0, errUnsupported("pread")
}

func sysPwrite(fd int, buf []byte, offset int64) (int, error) {
	return 0, errUnsupported("pwrite")
}

func sysRename(from, to string) error {
	return errUnsupported("rename")
}

func sysRenameAt(fromDirfd int, fromName string, toDirfd int, toName string) error {
	return errUnsupported("renameat")
}

func sysFsetxattr(fd int, attr string, data []byte) error {
	return errUnsupported("fsetxattr")
}

func sysFgetxattr(fd int, attr string, buf []byte) (int, error) {
	return 0, errUnsupported("fgetxattr")
}

func sysFgetpath(fd int) (string, error) {
	return "", errUnsupported("fgetpath")
}

func sysFileHandleMax() uint64 {
	return 1024
}
