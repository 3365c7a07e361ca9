// Package blockcache provides a block-oriented cache that can be used for
// providing a linear view of a single object scattered across discontiguous
// blocks in the block store.
//
// All block indices begin at 0.

package blockcache

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	c "github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/noxer/bytewriter"
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

// FlushBlockCallback is a pointer to a function that writes the contents of the
// given buffer to a block in the backing storage. All restrictions and
// guarantees in [FetchBlockCallback] apply here too.
type FlushBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

type BlockCache struct {
	loadedBlocks  bitmap.Bitmap
	dirtyBlocks   bitmap.Bitmap
	fetch         FetchBlockCallback
	flush         FlushBlockCallback
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new BlockCache of a fixed size. Blocks are fetched lazily the
// first time they're touched.
func New(
	bytesPerBlock uint,
	totalBlocks uint,
	fetchCb FetchBlockCallback,
	flushCb FlushBlockCallback,
) *BlockCache {
	return &BlockCache{
		loadedBlocks:  bitmap.New(int(totalBlocks)),
		dirtyBlocks:   bitmap.New(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		fetch:         fetchCb,
		flush:         flushCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *BlockCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the size of the cache, in blocks.
func (cache *BlockCache) TotalBlocks() uint {
	return cache.totalBlocks
}

// Size gives the size of the cache, in bytes (not blocks!).
func (cache *BlockCache) Size() int64 {
	return int64(cache.bytesPerBlock) * int64(cache.totalBlocks)
}

// checkBlockRange verifies that the blocks [start, start + count) all exist.
func (cache *BlockCache) checkBlockRange(start c.LogicalBlock, count uint) error {
	if uint(start)+count > cache.totalBlocks {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"can't access %d blocks from block %d; range not in [0, %d)",
				count,
				start,
				cache.totalBlocks,
			),
		)
	}
	return nil
}

// checkByteRange verifies that `length` bytes starting at byte `offset` are
// inside the cache.
func (cache *BlockCache) checkByteRange(offset int64, length int) error {
	if offset < 0 || offset+int64(length) > cache.Size() {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"can't access %d bytes at offset %d; range not in [0, %d)",
				length,
				offset,
				cache.Size(),
			),
		)
	}
	return nil
}

// blockSpan gives the first block and number of blocks covering `length` bytes
// starting at byte `offset`. `length` must be positive.
func (cache *BlockCache) blockSpan(offset int64, length int) (c.LogicalBlock, uint) {
	first := c.LogicalBlock(offset / int64(cache.bytesPerBlock))
	last := c.LogicalBlock((offset + int64(length) - 1) / int64(cache.bytesPerBlock))
	return first, uint(last-first) + 1
}

// GetSlice returns a slice pointing to the cache's storage, beginning at block
// `start` and continuing for `count` blocks. Missing blocks are loaded first.
//
// If the returned slice is modified, the modified blocks MUST be marked as
// dirty.
func (cache *BlockCache) GetSlice(start c.LogicalBlock, count uint) ([]byte, error) {
	err := cache.loadBlockRange(start, count)
	if err != nil {
		return nil, err
	}
	return cache.rawSlice(start, count), nil
}

func (cache *BlockCache) rawSlice(start c.LogicalBlock, count uint) []byte {
	startOffset := uint(start) * cache.bytesPerBlock
	endOffset := startOffset + (count * cache.bytesPerBlock)
	return cache.data[startOffset:endOffset]
}

// loadBlockRange ensures that all blocks in the range [start, start + count) are
// present in the cache, and loads any missing ones from storage.
func (cache *BlockCache) loadBlockRange(start c.LogicalBlock, count uint) error {
	err := cache.checkBlockRange(start, count)
	if err != nil {
		return err
	}

	for blockIndex := int(start); uint(blockIndex) < uint(start)+count; blockIndex++ {
		// Dirty blocks are present by definition, so we only need to check one
		// bitmap.
		if cache.loadedBlocks.Get(blockIndex) {
			continue
		}

		err = cache.fetch(c.LogicalBlock(blockIndex), cache.rawSlice(c.LogicalBlock(blockIndex), 1))
		if err != nil {
			return errors.ErrIOFailed.WithMessage(
				fmt.Sprintf("failed to load block %d from source: %s", blockIndex, err.Error()),
			)
		}

		cache.loadedBlocks.Set(blockIndex, true)
		cache.dirtyBlocks.Set(blockIndex, false)
	}
	return nil
}

// flushBlockRange writes out all dirty blocks (and only dirty blocks) to the
// underlying storage and marks them as clean.
func (cache *BlockCache) flushBlockRange(start c.LogicalBlock, count uint) error {
	err := cache.checkBlockRange(start, count)
	if err != nil {
		return err
	}

	for blockIndex := int(start); uint(blockIndex) < uint(start)+count; blockIndex++ {
		if !cache.dirtyBlocks.Get(blockIndex) {
			continue
		}

		err = cache.flush(c.LogicalBlock(blockIndex), cache.rawSlice(c.LogicalBlock(blockIndex), 1))
		if err != nil {
			return errors.ErrIOFailed.WithMessage(
				fmt.Sprintf("failed to flush block %d to storage: %s", blockIndex, err.Error()),
			)
		}
		cache.dirtyBlocks.Set(blockIndex, false)
	}
	return nil
}

// LoadAll ensures all missing blocks are loaded from storage into the cache.
func (cache *BlockCache) LoadAll() error {
	return cache.loadBlockRange(0, cache.totalBlocks)
}

// Flush writes all dirty blocks from the cache into storage, and marks them
// as clean.
func (cache *BlockCache) Flush() error {
	return cache.flushBlockRange(0, cache.totalBlocks)
}

// ReadAt fills `buffer` with the bytes starting at byte `offset` in the cache,
// loading any missing blocks first.
//
// Attempting to read past the end of the cache will result in an error, and
// `buffer` will be left unmodified.
func (cache *BlockCache) ReadAt(buffer []byte, offset int64) (int, error) {
	err := cache.checkByteRange(offset, len(buffer))
	if err != nil {
		return 0, err
	}
	if len(buffer) == 0 {
		return 0, nil
	}

	first, count := cache.blockSpan(offset, len(buffer))
	err = cache.loadBlockRange(first, count)
	if err != nil {
		return 0, err
	}

	start := offset - int64(first)*int64(cache.bytesPerBlock)
	source := cache.rawSlice(first, count)
	return copy(buffer, source[start:]), nil
}

// WriteAt copies `buffer` into the cache starting at byte `offset`. Blocks only
// partially covered by `buffer` are loaded first so their other bytes survive.
// All modified blocks are marked as dirty.
//
// Attempting to write past the end of the cache will result in an error, and
// the cache will be left unmodified.
func (cache *BlockCache) WriteAt(buffer []byte, offset int64) (int, error) {
	err := cache.checkByteRange(offset, len(buffer))
	if err != nil {
		return 0, err
	}
	if len(buffer) == 0 {
		return 0, nil
	}

	first, count := cache.blockSpan(offset, len(buffer))
	start := offset - int64(first)*int64(cache.bytesPerBlock)

	// Only the first and last blocks can be partially overwritten.
	if start != 0 {
		err = cache.loadBlockRange(first, 1)
		if err != nil {
			return 0, err
		}
	}
	end := start + int64(len(buffer))
	if end%int64(cache.bytesPerBlock) != 0 {
		err = cache.loadBlockRange(first+c.LogicalBlock(count-1), 1)
		if err != nil {
			return 0, err
		}
	}

	target := cache.rawSlice(first, count)
	written, err := bytewriter.New(target[start:]).Write(buffer)
	if err != nil {
		return written, errors.ErrIOFailed.Wrap(err)
	}

	err = cache.MarkBlockRangeDirty(first, count)
	return written, err
}

// MarkBlockRangeDirty marks a range of blocks as modified. They will be written
// out to the backing storage on the next call to [BlockCache.Flush].
func (cache *BlockCache) MarkBlockRangeDirty(start c.LogicalBlock, count uint) error {
	err := cache.checkBlockRange(start, count)
	if err != nil {
		return err
	}

	for i := uint(0); i < count; i++ {
		bitIndex := int(start) + int(i)
		cache.dirtyBlocks.Set(bitIndex, true)
		cache.loadedBlocks.Set(bitIndex, true)
	}
	return nil
}
