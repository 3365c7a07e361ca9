// This is a compatibility shim for POSIX-defined errno codes across platforms.
// The syscall package doesn't define the same values on all systems, so the
// codes used by the file system are defined here.

package errors

import (
	"fmt"
)

type Errno int

const (
	EOK Errno = iota
	EPERM
	ENOENT
	EIO
	EACCES
	EEXIST
	ENOTDIR
	EISDIR
	EINVAL
	EFBIG
	ENOSPC
	EDOM
	ENAMETOOLONG
	ENOSYS
	ENOTSUP
)

// The five error kinds the file system reports for its own checks.
var ErrNotFound = New(ENOENT)
var ErrExists = New(EEXIST)
var ErrNoSpaceOnDevice = New(ENOSPC)
var ErrInvalidArgument = New(EINVAL)
var ErrPermissionDenied = New(EACCES)

var ErrNotPermitted = New(EPERM)
var ErrIOFailed = New(EIO)
var ErrNotADirectory = New(ENOTDIR)
var ErrIsADirectory = New(EISDIR)
var ErrFileTooLarge = New(EFBIG)
var ErrArgumentOutOfRange = New(EDOM)
var ErrNameTooLong = New(ENAMETOOLONG)
var ErrNotImplemented = New(ENOSYS)
var ErrNotSupported = New(ENOTSUP)

var errorMessagesByCode = map[Errno]string{
	EOK:          "Success",
	EPERM:        "Operation not permitted",
	ENOENT:       "No such file or directory",
	EIO:          "Input/output error",
	EACCES:       "Permission denied",
	EEXIST:       "File exists",
	ENOTDIR:      "Not a directory",
	EISDIR:       "Is a directory",
	EINVAL:       "Invalid argument",
	EFBIG:        "File too large",
	ENOSPC:       "No space left on device",
	EDOM:         "Numerical argument out of domain",
	ENAMETOOLONG: "File name too long",
	ENOSYS:       "Function not implemented",
	ENOTSUP:      "Operation not supported",
}

var errnoNames = map[Errno]string{
	EOK:          "EOK",
	EPERM:        "EPERM",
	ENOENT:       "ENOENT",
	EIO:          "EIO",
	EACCES:       "EACCES",
	EEXIST:       "EEXIST",
	ENOTDIR:      "ENOTDIR",
	EISDIR:       "EISDIR",
	EINVAL:       "EINVAL",
	EFBIG:        "EFBIG",
	ENOSPC:       "ENOSPC",
	EDOM:         "EDOM",
	ENAMETOOLONG: "ENAMETOOLONG",
	ENOSYS:       "ENOSYS",
	ENOTSUP:      "ENOTSUP",
}

func StrError(code Errno) string {
	message, ok := errorMessagesByCode[code]
	if ok {
		return message
	}
	return fmt.Sprintf("error %d not recognized.", int(code))
}

// String gives the symbolic name of the code, e.g. "ENOENT".
func (code Errno) String() string {
	name, ok := errnoNames[code]
	if ok {
		return name
	}
	return fmt.Sprintf("Errno(%d)", int(code))
}
