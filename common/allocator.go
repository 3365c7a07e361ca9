// Bitmap allocator

package common

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/quotafs/errors"
)

// Allocator hands out runs of blocks from a fixed budget. Allocation is
// monotonic: runs are taken from a cursor that only moves forward, and there is
// no way to give blocks back. Once the cursor reaches the end of the budget,
// every further allocation fails with ENOSPC.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	allocationBitmap bitmap.Bitmap
	nextFreeBlock    PhysicalBlock
	totalBlocks      uint
}

// NewAllocator creates a new allocator over `totalBlocks` blocks, all free.
func NewAllocator(totalBlocks uint) *Allocator {
	return &Allocator{
		allocationBitmap: bitmap.New(int(totalBlocks)),
		totalBlocks:      totalBlocks,
	}
}

// Allocate reserves `count` contiguous blocks and returns the index of the
// first one. If fewer than `count` blocks remain, it fails with ENOSPC and the
// allocator is not modified.
//
// Allocating zero blocks always succeeds and returns the cursor unchanged.
func (alloc *Allocator) Allocate(count uint) (PhysicalBlock, error) {
	start := alloc.nextFreeBlock
	if uint(start)+count > alloc.totalBlocks {
		msg := fmt.Sprintf(
			"can't allocate %d blocks: only %d of %d left",
			count,
			alloc.Free(),
			alloc.totalBlocks,
		)
		return InvalidPhysicalBlock, errors.ErrNoSpaceOnDevice.WithMessage(msg)
	}

	for i := uint(0); i < count; i++ {
		alloc.allocationBitmap.Set(int(uint(start)+i), true)
	}
	alloc.nextFreeBlock += PhysicalBlock(count)
	return start, nil
}

// IsAllocated tells whether a block has been handed out. Blocks outside the
// budget are never allocated.
func (alloc *Allocator) IsAllocated(block PhysicalBlock) bool {
	if uint(block) >= alloc.totalBlocks {
		return false
	}
	return alloc.allocationBitmap.Get(int(block))
}

// Total returns the size of the budget, in blocks.
func (alloc *Allocator) Total() uint {
	return alloc.totalBlocks
}

// Used returns the number of blocks handed out so far.
func (alloc *Allocator) Used() uint {
	return uint(alloc.nextFreeBlock)
}

// Free returns the number of blocks that can still be allocated.
func (alloc *Allocator) Free() uint {
	return alloc.totalBlocks - uint(alloc.nextFreeBlock)
}

// Bitmap returns a copy of the allocation bitmap. Bit i is set if block i has
// been allocated.
func (alloc *Allocator) Bitmap() []byte {
	return alloc.allocationBitmap.Data(true)
}
