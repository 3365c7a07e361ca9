// Package common contains definitions of fundamental types and functions used
// across the file system's layers.
package common

import "math"

// LogicalBlock is the index of a block relative to the start of one object,
// e.g. the third block of a file.
type LogicalBlock uint

// PhysicalBlock is the index of a block in the block store.
type PhysicalBlock uint

const InvalidLogicalBlock = LogicalBlock(math.MaxUint)
const InvalidPhysicalBlock = PhysicalBlock(math.MaxUint)

// BlocksForBytes gives the minimum number of blocks of `bytesPerBlock` bytes
// required to hold `size` bytes.
func BlocksForBytes(size int64, bytesPerBlock uint) uint {
	if size <= 0 {
		return 0
	}
	return uint((size + int64(bytesPerBlock) - 1) / int64(bytesPerBlock))
}
