package fs

import (
	"errors"
	"fmt"
	"syscall"
)

// FilesystemError represents a typed failure from a filesystem operation.
//
// These are the domain errors of the access layer (missing file, permission
// refused, kind mismatch, ...) as opposed to programming errors, which panic
// (see the handle lifecycle contract in handle.go).
//
// Callers branch on Code; Detail and Path carry human-readable context and
// Errno preserves the raw platform code for unmapped failures.
type FilesystemError struct {
	// Code is the error category
	Code ErrorCode

	// Detail is a human-readable description of what failed
	Detail string

	// Path is the filesystem path related to the error (if applicable)
	Path string

	// Errno is the raw platform error code, retained for diagnostics.
	// Only meaningful for errors that originate in a system call.
	Errno int
}

// Error implements the error interface.
func (e *FilesystemError) Error() string {
	msg := e.Code.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Code == ErrUnknown && e.Errno != 0 {
		msg += fmt.Sprintf(" (errno %d)", e.Errno)
	}
	return msg
}

// ErrorCode represents the category of a filesystem error.
type ErrorCode int

const (
	// ErrPermissionDenied indicates the platform refused access (EPERM, EACCES)
	ErrPermissionDenied ErrorCode = iota

	// ErrNotFound indicates the path or name does not exist (ENOENT)
	ErrNotFound

	// ErrNoProcess indicates the referenced process does not exist (ESRCH)
	ErrNoProcess

	// ErrInvalidData indicates malformed data from the platform or caller
	// Examples: non-UTF-8 filename, NUL byte in a path, negative size
	ErrInvalidData

	// ErrNotAFile indicates a kind mismatch on an operation that requires
	// a regular file (or, for directory-only opens, a directory)
	ErrNotAFile

	// ErrResultTooLarge indicates a result did not fit the provided buffer
	// Used for extended attribute reads (ERANGE)
	ErrResultTooLarge

	// ErrUnknown indicates an unmapped platform error; Errno carries the
	// raw code for diagnostics
	ErrUnknown
)

// String returns the category name.
func (c ErrorCode) String() string {
	switch c {
	case ErrPermissionDenied:
		return "permission denied"
	case ErrNotFound:
		return "not found"
	case ErrNoProcess:
		return "no such process"
	case ErrInvalidData:
		return "invalid data"
	case ErrNotAFile:
		return "not a file"
	case ErrResultTooLarge:
		return "result too large"
	default:
		return "unknown error"
	}
}

// HasCode reports whether err is a FilesystemError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var fe *FilesystemError
	return errors.As(err, &fe) && fe.Code == code
}

// errorCodeOf translates a raw platform errno into the taxonomy.
func errorCodeOf(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EPERM, syscall.EACCES:
		return ErrPermissionDenied
	case syscall.ENOENT:
		return ErrNotFound
	case syscall.ESRCH:
		return ErrNoProcess
	case syscall.ERANGE:
		return ErrResultTooLarge
	case syscall.EISDIR, syscall.ENOTDIR:
		return ErrNotAFile
	default:
		return ErrUnknown
	}
}

// errnoError wraps a failed system call into a FilesystemError, mapping the
// errno onto the taxonomy and preserving the raw code.
func errnoError(op string, path string, errno syscall.Errno) *FilesystemError {
	return &FilesystemError{
		Code:   errorCodeOf(errno),
		Detail: op,
		Path:   path,
		Errno:  int(errno),
	}
}

// sysError converts an error returned by a system call wrapper into a
// FilesystemError. Non-errno errors map to ErrUnknown with the message
// preserved in Detail.
func sysError(op string, path string, err error) *FilesystemError {
	if errno, ok := err.(syscall.Errno); ok {
		return errnoError(op, path, errno)
	}
	return &FilesystemError{
		Code:   ErrUnknown,
		Detail: op + ": " + err.Error(),
		Path:   path,
	}
}

// invalidDataError reports malformed platform or caller data.
func invalidDataError(detail string, path string) *FilesystemError {
	return &FilesystemError{Code: ErrInvalidData, Detail: detail, Path: path}
}

// notAFileError reports a kind mismatch on a regular-file operation.
func notAFileError(detail string, path string) *FilesystemError {
	return &FilesystemError{Code: ErrNotAFile, Detail: detail, Path: path}
}
