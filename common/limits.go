package common

import (
	"fmt"

	"github.com/dargueta/quotafs/errors"
)

const (
	// DefaultMaxFilenameLength is the exclusive upper bound on the length of a
	// single path component.
	DefaultMaxFilenameLength = 256
	// DefaultMaxPathLength is the exclusive upper bound on the length of a path.
	DefaultMaxPathLength          = 1024
	DefaultMaxEntriesPerDirectory = 100
	DefaultMaxFileSize            = 1048576
	DefaultBlockSize              = 4096
)

// Limits holds the capacity policies of a file system. All of them are
// enforced as policies; none of them is a buffer size.
type Limits struct {
	// MaxFilenameLength is exclusive: a name must be strictly shorter.
	MaxFilenameLength int
	// MaxPathLength is exclusive: a path must be strictly shorter.
	MaxPathLength          int
	MaxEntriesPerDirectory int
	// MaxFileSize is the largest size a single file may reach, in bytes.
	MaxFileSize int64
	BlockSize   uint
	// TotalBlocks is the size of the shared block budget. If zero, it's
	// derived as MaxFileSize / BlockSize.
	TotalBlocks uint
}

// DefaultLimits returns the stock limits: 256-byte names, 1024-byte paths,
// 100 entries per directory, 1 MiB files and a budget of 256 blocks of 4 KiB.
func DefaultLimits() Limits {
	return Limits{
		MaxFilenameLength:      DefaultMaxFilenameLength,
		MaxPathLength:          DefaultMaxPathLength,
		MaxEntriesPerDirectory: DefaultMaxEntriesPerDirectory,
		MaxFileSize:            DefaultMaxFileSize,
		BlockSize:              DefaultBlockSize,
		TotalBlocks:            DefaultMaxFileSize / DefaultBlockSize,
	}
}

// BlockBudget gives the total number of blocks that can be allocated.
func (l Limits) BlockBudget() uint {
	if l.TotalBlocks != 0 {
		return l.TotalBlocks
	}
	if l.BlockSize == 0 {
		return 0
	}
	return uint(l.MaxFileSize / int64(l.BlockSize))
}

// Validate checks that every limit is usable.
func (l Limits) Validate() error {
	switch {
	case l.MaxFilenameLength < 2:
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("max filename length must be at least 2, got %d", l.MaxFilenameLength))
	case l.MaxPathLength < 2:
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("max path length must be at least 2, got %d", l.MaxPathLength))
	case l.MaxEntriesPerDirectory < 1:
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"max entries per directory must be positive, got %d",
				l.MaxEntriesPerDirectory,
			),
		)
	case l.MaxFileSize < 0:
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("max file size can't be negative, got %d", l.MaxFileSize))
	case l.BlockSize == 0:
		return errors.ErrInvalidArgument.WithMessage("block size must be non-zero")
	}
	return nil
}
