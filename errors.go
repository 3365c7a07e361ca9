package quotafs

import "github.com/dargueta/quotafs/errors"

// Every error returned by the file system is an [errors.DriverError]; these
// are the ones callers are likely to check for with [errors.Is].
var (
	ErrNotFound         = errors.ErrNotFound
	ErrAlreadyExists    = errors.ErrExists
	ErrDiskFull         = errors.ErrNoSpaceOnDevice
	ErrInvalidPath      = errors.ErrInvalidArgument
	ErrPermissionDenied = errors.ErrPermissionDenied
	ErrBadOffset        = errors.ErrArgumentOutOfRange
	ErrIOFailed         = errors.ErrIOFailed
)
